// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema that can be reused across jobs.
type Schema struct {
	schema *gojsonschema.Schema
}

// MustCompile compiles a JSON schema literal and panics on a malformed schema.
func MustCompile(schemaJSON string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("validation: invalid schema: %v", err))
	}
	return &Schema{schema: s}
}

// ValidateJSON validates a raw JSON document.
func (s *Schema) ValidateJSON(doc []byte) *ValidationResult {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateValue validates an already decoded Go value.
func (s *Schema) ValidateValue(doc interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(doc))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "MALFORMED_DOCUMENT",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// Err flattens a failed result into one error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
