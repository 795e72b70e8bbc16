// Package eventbus publishes and consumes case lifecycle events over a
// watermill channel.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/urbanite/caseflow/pkg/events"
	"github.com/urbanite/caseflow/pkg/otelhelper"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

type EventHandler func(ctx context.Context, event events.Event) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// eventFactories maps the wire event type tag to a decoder target.
var eventFactories = map[events.EventType]func() events.Event{
	events.CaseCreatedEvent:     func() events.Event { return &events.CaseCreated{} },
	events.CaseStepSubmitted:    func() events.Event { return &events.StepSubmitted{} },
	events.CaseStepUpdated:      func() events.Event { return &events.StepUpdated{} },
	events.CaseStepsDisabled:    func() events.Event { return &events.StepsDisabled{} },
	events.CaseFinishedEvent:    func() events.Event { return &events.CaseFinished{} },
	events.CaseTransferredEvent: func() events.Event { return &events.CaseTransferred{} },
	events.CaseDeletedEvent:     func() events.Event { return &events.CaseDeleted{} },
	events.CaseRestoredEvent:    func() events.Event { return &events.CaseRestored{} },
}

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish serializes an event onto the case topic, tagging the message with
// its event type so subscribers can decode it.
func (eb *WatermillEventBus) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.GetType(), err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))
	msg.SetContext(ctx)

	return eb.publisher.Publish(events.Topic, msg)
}

// Subscribe consumes the case topic, decoding each message by its event type
// tag. Messages with an unknown tag or a failing handler are nacked.
func (eb *WatermillEventBus) Subscribe(ctx context.Context, handler EventHandler) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	tracer := otel.Tracer("caseflow-eventbus")

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			msgCtx, span := otelhelper.StartSpan(ctx, tracer, "eventbus.consume",
				attribute.String(otelhelper.EventIDKey, msg.UUID),
				attribute.String("caseflow.event.type", string(eventType)),
			)

			factory, ok := eventFactories[eventType]
			if !ok {
				otelhelper.SetError(span, fmt.Errorf("unknown event type %q", eventType))
				span.End()
				msg.Nack()

				continue
			}

			event := factory()
			if err := json.Unmarshal(msg.Payload, event); err != nil {
				otelhelper.SetError(span, err)
				span.End()
				msg.Nack()

				continue
			}

			if err := handler(msgCtx, event); err != nil {
				otelhelper.SetError(span, err)
				span.End()
				msg.Nack()

				continue
			}

			span.End()
			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}
