package planner

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/orbitplan/orbit/internal/models"
)

// documentSchema enforces the shape of a generated plan document before it
// is persisted: array-typed sections with their required sub-fields. The
// stored document is trusted on read, so this is the only validation gate.
const documentSchema = `{
	"type": "object",
	"properties": {
		"summary": {"type": "string"},
		"milestones": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["label", "description", "targetWeek"],
				"properties": {
					"label": {"type": "string"},
					"description": {"type": "string"},
					"targetWeek": {"type": "integer"}
				}
			}
		},
		"weeklyRhythm": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["week", "focus", "actions"],
				"properties": {
					"week": {"type": "integer"},
					"focus": {"type": "string"},
					"actions": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"startingSteps": {"type": "array", "items": {"type": "string"}},
		"obstaclesAndSafeties": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["obstacle", "workaround"],
				"properties": {
					"obstacle": {"type": "string"},
					"workaround": {"type": "string"}
				}
			}
		},
		"notes": {"type": "string"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// validateDocument checks raw generation content against the document schema.
func validateDocument(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidJSON, err)
	}
	if !result.Valid() {
		first := ""
		if errs := result.Errors(); len(errs) > 0 {
			first = errs[0].String()
		}
		return fmt.Errorf("%w: %s", models.ErrInvalidJSON, first)
	}
	return nil
}
