package models

// FieldType enumerates the value types a field can collect.
type FieldType string

const (
	FieldTypeInteger    FieldType = "integer"
	FieldTypeDecimal    FieldType = "decimal"
	FieldTypeText       FieldType = "text"
	FieldTypeEmail      FieldType = "email"
	FieldTypeCPF        FieldType = "cpf"
	FieldTypeDate       FieldType = "date"
	FieldTypeImage      FieldType = "image"
	FieldTypeAttachment FieldType = "attachment"
	FieldTypeSelect     FieldType = "select"
	FieldTypeRadio      FieldType = "radio"
	FieldTypeCheckbox   FieldType = "checkbox"

	// FieldTypeInventoryItem selects which inventory item a step concerns.
	FieldTypeInventoryItem FieldType = "inventory_item"

	// FieldTypeInventoryField mirrors a field of the selected inventory
	// item; submitted values are written through to the inventory store.
	FieldTypeInventoryField FieldType = "inventory_field"
)

// Requirements constrains the values a field accepts.
type Requirements struct {
	Presence bool     `json:"presence,omitempty"`
	Minimum  *float64 `json:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty"`
}

// Field is a single typed input collected by a form step.
type Field struct {
	ID           string            `json:"id"`
	StepID       string            `json:"step_id"`
	Title        string            `json:"title"      validate:"required"`
	Type         FieldType         `json:"field_type" validate:"required"`
	Requirements Requirements      `json:"requirements,omitzero"`
	Values       map[string]string `json:"values,omitempty"`
	Multiple     bool              `json:"multiple,omitempty"`
	Filter       []string          `json:"filter,omitempty"`
	Order        int               `json:"order"`
	Active       bool              `json:"active"`

	// CategoryID binds inventory_item fields to an inventory category.
	CategoryID string `json:"category_id,omitempty"`

	// OriginFieldID names the mirrored inventory field for
	// inventory_field fields.
	OriginFieldID string `json:"origin_field_id,omitempty"`
}

// AllowedOption reports whether key is one of the field's enumerated
// option keys.
func (f *Field) AllowedOption(key string) bool {
	_, ok := f.Values[key]

	return ok
}

// AttachmentValue is one uploaded file in an image or attachment field
// submission, carrying the base64 payload handed off to the uploader.
type AttachmentValue struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}
