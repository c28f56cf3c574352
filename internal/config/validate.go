package config

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// ValidateSettings validates raw config settings against the JSON schema.
func ValidateSettings(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("config schema validation failed: %s", strings.Join(errs, "; "))
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	if c.Dispatch.RetryAttempts < 1 {
		return errors.New("dispatch.retry_attempts must be > 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if !strings.HasPrefix(c.TickTick.BaseURL, "http://") && !strings.HasPrefix(c.TickTick.BaseURL, "https://") {
		return errors.New("ticktick.base_url must be an http(s) URL")
	}
	return nil
}
