// Package validation type-checks and coerces submitted field values against
// field requirements, collecting every failure instead of stopping at the
// first, and propagates mirrored values into the inventory store.
package validation

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/urbanite/caseflow/pkg/inventory"
	"github.com/urbanite/caseflow/pkg/models"
)

// Validation failure messages, keyed off the platform's own phrasing.
const (
	msgBlank        = "can't be blank"
	msgInvalid      = "is invalid"
	msgNotNumber    = "is not a number"
	msgNotInList    = "is not included in the list"
	msgSingleValue  = "must be a single value"
	msgMultiValue   = "must be a list of values"
	msgTooSmallFmt  = "must be greater than or equal to %v"
	msgTooLargeFmt  = "must be less than or equal to %v"
	msgBadExtension = "file extension is not allowed"
)

// FieldErrors collects validation failures keyed by field title. All fields
// are validated; nothing short-circuits.
type FieldErrors map[string][]string

func (e FieldErrors) Error() string {
	titles := make([]string, 0, len(e))
	for title := range e {
		titles = append(titles, title)
	}

	sort.Strings(titles)

	parts := make([]string, 0, len(e))
	for _, title := range titles {
		parts = append(parts, title+" "+strings.Join(e[title], ", "))
	}

	return "invalid fields: " + strings.Join(parts, "; ")
}

func (e FieldErrors) add(fieldTitle, message string) {
	e[fieldTitle] = append(e[fieldTitle], message)
}

// SubmittedValue is one raw (field id, value) pair of a step submission.
type SubmittedValue struct {
	FieldID string `json:"id"    validate:"required"`
	Value   any    `json:"value"`
}

// Validator coerces and checks submitted values for a step.
type Validator struct {
	validate  *validator.Validate
	inventory inventory.Store
}

// NewValidator creates a validator that writes mirrored fields into store.
func NewValidator(store inventory.Store) *Validator {
	return &Validator{
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		inventory: store,
	}
}

// Validate checks every submitted value against the step's active fields
// and returns the coerced case step field values. On failure it returns a
// FieldErrors carrying one entry per failing field; no inventory write
// happens unless the whole submission is valid.
func (v *Validator) Validate(ctx context.Context, step *models.Step, submitted []SubmittedValue) ([]*models.CaseStepField, error) {
	failures := make(FieldErrors)
	coerced := make([]*models.CaseStepField, 0, len(submitted))
	byField := make(map[string]any, len(submitted))
	seen := make(map[string]bool, len(submitted))

	for _, sv := range submitted {
		field := step.FieldByID(sv.FieldID)
		if field == nil || !field.Active {
			failures.add(sv.FieldID, "field not found")

			continue
		}

		seen[field.ID] = true

		value, ok := v.coerceField(field, sv.Value, failures)
		if !ok {
			continue
		}

		coerced = append(coerced, &models.CaseStepField{FieldID: field.ID, Value: value})
		byField[field.ID] = value
	}

	for _, field := range step.ActiveFields() {
		if seen[field.ID] {
			continue
		}

		if field.Requirements.Presence {
			failures.add(field.Title, msgBlank)
		}
	}

	if len(failures) > 0 {
		return nil, failures
	}

	if err := v.mirrorInventoryFields(ctx, step, byField); err != nil {
		return nil, err
	}

	return coerced, nil
}

// coerceField normalizes one raw value. Scalars come back as canonical
// strings, multi-value fields as []string, uploads as attachment lists.
func (v *Validator) coerceField(field *models.Field, raw any, failures FieldErrors) (any, bool) {
	if isBlank(raw) {
		if field.Requirements.Presence {
			failures.add(field.Title, msgBlank)

			return nil, false
		}

		return nil, false
	}

	switch field.Type {
	case models.FieldTypeInteger:
		return v.coerceNumeric(field, raw, true, failures)
	case models.FieldTypeDecimal:
		return v.coerceNumeric(field, raw, false, failures)
	case models.FieldTypeText:
		return scalar(raw), true
	case models.FieldTypeEmail:
		value := scalar(raw)
		if v.validate.Var(value, "email") != nil {
			failures.add(field.Title, msgInvalid)

			return nil, false
		}

		return value, true
	case models.FieldTypeCPF:
		value := scalar(raw)
		if !ValidCPF(value) {
			failures.add(field.Title, msgInvalid)

			return nil, false
		}

		return value, true
	case models.FieldTypeDate:
		value := scalar(raw)
		if _, err := time.Parse("2006-01-02", value); err != nil {
			failures.add(field.Title, msgInvalid)

			return nil, false
		}

		return value, true
	case models.FieldTypeImage, models.FieldTypeAttachment:
		return v.coerceUploads(field, raw, failures)
	case models.FieldTypeSelect, models.FieldTypeRadio:
		value := scalar(raw)
		if !field.AllowedOption(value) {
			failures.add(field.Title, msgNotInList)

			return nil, false
		}

		return value, true
	case models.FieldTypeCheckbox:
		values, ok := stringList(raw)
		if !ok {
			failures.add(field.Title, msgMultiValue)

			return nil, false
		}

		for _, value := range values {
			if !field.AllowedOption(value) {
				failures.add(field.Title, msgNotInList)

				return nil, false
			}
		}

		return values, true
	case models.FieldTypeInventoryItem:
		return v.coerceInventoryItems(field, raw, failures)
	case models.FieldTypeInventoryField:
		// Mirrored values keep their raw scalar form; the inventory
		// store owns any further typing.
		return scalar(raw), true
	}

	failures.add(field.Title, msgInvalid)

	return nil, false
}

func (v *Validator) coerceNumeric(field *models.Field, raw any, integer bool, failures FieldErrors) (any, bool) {
	value := scalar(raw)

	number, err := strconv.ParseFloat(value, 64)
	if err != nil || (integer && number != float64(int64(number))) {
		failures.add(field.Title, msgNotNumber)

		return nil, false
	}

	if minimum := field.Requirements.Minimum; minimum != nil && number < *minimum {
		failures.add(field.Title, fmt.Sprintf(msgTooSmallFmt, formatBound(*minimum)))

		return nil, false
	}

	if maximum := field.Requirements.Maximum; maximum != nil && number > *maximum {
		failures.add(field.Title, fmt.Sprintf(msgTooLargeFmt, formatBound(*maximum)))

		return nil, false
	}

	if integer {
		return strconv.FormatInt(int64(number), 10), true
	}

	return strconv.FormatFloat(number, 'f', -1, 64), true
}

func (v *Validator) coerceUploads(field *models.Field, raw any, failures FieldErrors) (any, bool) {
	items, ok := raw.([]any)
	if !ok {
		failures.add(field.Title, msgMultiValue)

		return nil, false
	}

	uploads := make([]models.AttachmentValue, 0, len(items))

	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			failures.add(field.Title, msgInvalid)

			return nil, false
		}

		upload := models.AttachmentValue{
			FileName: scalar(entry["file_name"]),
			Content:  scalar(entry["content"]),
		}

		if upload.FileName == "" || upload.Content == "" {
			failures.add(field.Title, msgInvalid)

			return nil, false
		}

		if len(field.Filter) > 0 && !allowedExtension(upload.FileName, field.Filter) {
			failures.add(field.Title, msgBadExtension)

			return nil, false
		}

		uploads = append(uploads, upload)
	}

	return uploads, true
}

func (v *Validator) coerceInventoryItems(field *models.Field, raw any, failures FieldErrors) (any, bool) {
	if field.Multiple {
		values, ok := stringList(raw)
		if !ok {
			failures.add(field.Title, msgMultiValue)

			return nil, false
		}

		return values, true
	}

	if _, isList := raw.([]any); isList {
		failures.add(field.Title, msgSingleValue)

		return nil, false
	}

	return scalar(raw), true
}

// mirrorInventoryFields writes every inventory_field value through to the
// store, keyed off the sibling inventory_item field that selects which
// item(s) this submission concerns.
func (v *Validator) mirrorInventoryFields(ctx context.Context, step *models.Step, byField map[string]any) error {
	if v.inventory == nil {
		return nil
	}

	itemIDs := selectedItems(step, byField)
	if len(itemIDs) == 0 {
		return nil
	}

	for _, field := range step.ActiveFields() {
		if field.Type != models.FieldTypeInventoryField || field.OriginFieldID == "" {
			continue
		}

		value, present := byField[field.ID]
		if !present {
			continue
		}

		for _, itemID := range itemIDs {
			if err := v.inventory.UpdateItemFieldValue(ctx, itemID, field.OriginFieldID, value); err != nil {
				return fmt.Errorf("failed to mirror field %s to inventory item %s: %w", field.Title, itemID, err)
			}
		}
	}

	return nil
}

func selectedItems(step *models.Step, byField map[string]any) []string {
	for _, field := range step.ActiveFields() {
		if field.Type != models.FieldTypeInventoryItem {
			continue
		}

		value, present := byField[field.ID]
		if !present {
			continue
		}

		if list, ok := stringList(value); ok {
			return list
		}
	}

	return nil
}

func isBlank(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(value) == ""
	case []any:
		return len(value) == 0
	case []string:
		return len(value) == 0
	default:
		return false
	}
}

func scalar(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func stringList(v any) ([]string, bool) {
	switch values := v.(type) {
	case []string:
		return values, true
	case []any:
		list := make([]string, 0, len(values))
		for _, item := range values {
			list = append(list, scalar(item))
		}

		return list, true
	case string, int, int64, float64:
		return []string{scalar(v)}, true
	default:
		return nil, false
	}
}

func allowedExtension(fileName string, filter []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")

	for _, allowed := range filter {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}

	return false
}

func formatBound(f float64) any {
	if f == float64(int64(f)) {
		return int64(f)
	}

	return f
}
