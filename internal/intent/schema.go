package intent

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// Schema returns the JSON schema intents are validated against.
func Schema() string {
	return schemaJSON
}

// ValidateRaw checks a raw intent document against the schema.
func ValidateRaw(raw map[string]any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("validate intent schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return failure.Validation(decodeOp, "schema: "+strings.Join(errs, "; "))
}
