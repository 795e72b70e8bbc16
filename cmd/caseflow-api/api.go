// Package main provides the Caseflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/urbanite/caseflow/pkg/authz"
	"github.com/urbanite/caseflow/pkg/cases"
	"github.com/urbanite/caseflow/pkg/definitions"
	"github.com/urbanite/caseflow/pkg/eventbus"
	"github.com/urbanite/caseflow/pkg/inventory"
	"github.com/urbanite/caseflow/pkg/locks"
	"github.com/urbanite/caseflow/pkg/persistence"
	"github.com/urbanite/caseflow/pkg/validation"
	"github.com/urbanite/caseflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	locker      locks.Locker
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	locker locks.Locker,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		locker:      locker,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	definitionService := definitions.NewService(a.persistence, a.logger)

	// Identity arrives pre-authenticated from the gateway; capability
	// checks stay permissive until the platform's policy tables are
	// wired in.
	caseService := cases.NewService(
		a.persistence,
		definitionService,
		validation.NewValidator(inventory.NewMemoryStore()),
		authz.AllowAll{},
		a.locker,
		a.eventBus,
		a.logger,
	)

	handlers := web.NewAPIHandlers(caseService, definitionService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Caseflow API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
