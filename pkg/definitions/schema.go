package definitions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/urbanite/caseflow/pkg/models"
)

// flowDocumentSchema constrains imported flow documents before they are
// unmarshaled. It checks shape and enumerations; semantic validation
// (action values, required titles) happens in CreateFlow.
const flowDocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "steps"],
  "properties": {
    "title": {"type": "string", "minLength": 3},
    "description": {"type": "string"},
    "initial": {"type": "boolean"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "kind": {"enum": ["form", "subflow"]},
          "child_flow_id": {"type": "string"},
          "fields": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["title", "field_type"],
              "properties": {
                "title": {"type": "string", "minLength": 1},
                "field_type": {
                  "enum": [
                    "integer", "decimal", "text", "email", "cpf", "date",
                    "image", "attachment", "select", "radio", "checkbox",
                    "inventory_item", "inventory_field"
                  ]
                },
                "requirements": {
                  "type": "object",
                  "properties": {
                    "presence": {"type": "boolean"},
                    "minimum": {"type": "number"},
                    "maximum": {"type": "number"}
                  }
                },
                "values": {"type": "object", "additionalProperties": {"type": "string"}},
                "multiple": {"type": "boolean"},
                "filter": {"type": "array", "items": {"type": "string"}},
                "category_id": {"type": "string"},
                "origin_field_id": {"type": "string"}
              }
            }
          },
          "triggers": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["title", "action_type", "action_values"],
              "properties": {
                "title": {"type": "string", "minLength": 1},
                "action_type": {"enum": ["disable_steps", "finish_flow", "transfer_flow"]},
                "action_values": {"type": "array", "items": {"type": "string"}, "minItems": 1},
                "conditions": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["field_id", "condition_type", "values"],
                    "properties": {
                      "field_id": {"type": "string"},
                      "condition_type": {
                        "enum": [
                          "equals", "not_equals", "greater_than",
                          "lesser_than", "includes", "excludes"
                        ]
                      },
                      "values": {"type": "array", "items": {"type": "string"}, "minItems": 1}
                    }
                  }
                }
              }
            }
          }
        }
      }
    },
    "resolution_states": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "default": {"type": "boolean"}
        }
      }
    }
  }
}`

// ImportFlow validates a raw JSON flow document against the flow schema and
// stores it as a new flow definition.
func (s *Service) ImportFlow(ctx context.Context, document []byte, actorID string) (*models.Flow, error) {
	if err := validateFlowDocument(document); err != nil {
		return nil, err
	}

	var flow models.Flow
	if err := json.Unmarshal(document, &flow); err != nil {
		return nil, fmt.Errorf("failed to parse flow document: %w", err)
	}

	return s.CreateFlow(ctx, &flow, actorID)
}

func validateFlowDocument(document []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(flowDocumentSchema)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate flow document: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid flow document: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
