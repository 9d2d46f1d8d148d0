package paygate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// httpInputSchema describes the "input" half of a resource's outputSchema
const httpInputSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"type": {"const": "http"},
		"method": {"enum": ["GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"]},
		"discoverable": {"type": "boolean"},
		"bodyType": {"enum": ["json", "form-data", "multipart-form-data", "text", "binary"]},
		"queryParams": {"type": "object"},
		"bodyFields": {"type": "object"},
		"headerFields": {"type": "object"}
	},
	"required": ["type"]
}`

// ValidationResult represents the result of validating a configuration
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err returns nil for a valid result and a combined error otherwise
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("paygate: invalid configuration: %s", strings.Join(r.Errors, "; "))
}

// Validate checks that the configuration can serve payments
func (m *Middleware) Validate() ValidationResult {
	var errs []string

	if m.facilitator == nil {
		errs = append(errs, "facilitator is required")
	}
	if len(m.priceTags) == 0 {
		errs = append(errs, "at least one price tag is required")
	}
	if m.maxTimeoutSeconds <= 0 {
		errs = append(errs, "maxTimeoutSeconds must be positive")
	}
	if m.resource == nil && (m.baseURL == nil || m.baseURL.Host == "") {
		errs = append(errs, "base URL must be absolute when no resource is set")
	}
	if m.inputSchema != nil {
		errs = append(errs, validateDocument("inputSchema", httpInputSchema, m.inputSchema)...)
	}
	if m.outputSchema != nil {
		if err := compileSchema(m.outputSchema); err != nil {
			errs = append(errs, fmt.Sprintf("outputSchema: %v", err))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateDocument(name, schema string, doc interface{}) []string {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return []string{fmt.Sprintf("%s: failed to marshal: %v", name, err)}
	}

	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(docJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return []string{fmt.Sprintf("%s: schema validation failed: %v", name, err)}
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s: %s", name, desc.Context().String(), desc.Description()))
	}
	return errs
}

func compileSchema(schema map[string]interface{}) error {
	if len(schema) == 0 {
		return errors.New("schema is empty")
	}
	_, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	return err
}
