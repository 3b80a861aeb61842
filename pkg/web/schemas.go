package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// graphImportSchema constrains the bulk graph import payload. Referential
// checks (edge endpoints, entry, exits naming declared nodes) happen in the
// service; the schema only pins the shape.
const graphImportSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["nodes", "entry", "exits"],
	"additionalProperties": false,
	"properties": {
		"nodes": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name"],
				"additionalProperties": false,
				"properties": {
					"name": {"type": "string", "minLength": 1}
				}
			}
		},
		"edges": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["from", "to"],
				"additionalProperties": false,
				"properties": {
					"from": {"type": "string", "minLength": 1},
					"to": {"type": "string", "minLength": 1}
				}
			}
		},
		"entry": {"type": "string", "minLength": 1},
		"exits": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		}
	}
}`

var graphImportLoader = gojsonschema.NewStringLoader(graphImportSchema)

// validateGraphImport checks the raw request body against the import schema
// and flattens any violations into one error.
func validateGraphImport(body []byte) error {
	result, err := gojsonschema.Validate(graphImportLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		details = append(details, violation.String())
	}

	return errors.New(strings.Join(details, "; "))
}
