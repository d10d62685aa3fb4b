package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// createComparisonSchema rejects malformed bodies before any model is
// invoked. The prompt bound matches comparison.MaxPromptLength.
const createComparisonSchema = `{
	"type": "object",
	"required": ["prompt"],
	"additionalProperties": false,
	"properties": {
		"prompt":   {"type": "string", "minLength": 1, "maxLength": 10000},
		"modelIds": {"type": "array", "items": {"type": "string", "minLength": 1}}
	}
}`

var createComparisonLoader = gojsonschema.NewStringLoader(createComparisonSchema)

// validateCreateComparison checks a raw request body against the schema and
// returns a single human-readable error listing every violation.
func validateCreateComparison(body []byte) error {
	result, err := gojsonschema.Validate(createComparisonLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(problems, "; "))
}
