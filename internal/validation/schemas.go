package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	RecommendationRequestSchema = "recommendation-request"
	ErrorResponseSchema         = "error-response"

	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidMode      = "INVALID_MODE"
	CodeLimitOutOfRange  = "LIMIT_OUT_OF_RANGE"
	CodeInvalidID        = "INVALID_ID"
	CodeInvalidJSON      = "INVALID_JSON"
	codeSchemaNotFound   = "SCHEMA_NOT_FOUND"
	codeJSONMarshalError = "JSON_MARSHAL_ERROR"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

var schemaFiles = map[string]string{
	RecommendationRequestSchema: "recommendation-request.json",
	ErrorResponseSchema:         "error-response.json",
}

// SchemaValidator handles JSON schema validation for API requests and responses
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// NewEmbeddedSchemaValidator returns a validator loaded with the schemas
// compiled into the binary.
func NewEmbeddedSchemaValidator() (*SchemaValidator, error) {
	sv := NewSchemaValidator()
	if err := sv.LoadSchemaFromFS(embeddedSchemas, "schemas"); err != nil {
		return nil, err
	}
	return sv, nil
}

// LoadSchemaFromFS loads schemas from an embedded filesystem
func (sv *SchemaValidator) LoadSchemaFromFS(fsys fs.FS, schemaDir string) error {
	for name, filename := range schemaFiles {
		schemaPath := path.Join(schemaDir, filename)

		schemaBytes, err := fs.ReadFile(fsys, schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", schemaPath, err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return fmt.Errorf("failed to load schema %s: %w", name, err)
		}

		sv.schemas[name] = schema
	}

	return nil
}

func (sv *SchemaValidator) ValidateRecommendationRequest(data interface{}) *ValidationResult {
	return sv.validate(RecommendationRequestSchema, data)
}

func (sv *SchemaValidator) ValidateErrorResponse(data interface{}) *ValidationResult {
	return sv.validate(ErrorResponseSchema, data)
}

// Validate checks data (a JSON string, raw bytes or a Go value) against a
// named schema.
func (sv *SchemaValidator) Validate(schemaName string, data interface{}) *ValidationResult {
	return sv.validate(schemaName, data)
}

func (sv *SchemaValidator) SchemaExists(name string) bool {
	_, exists := sv.schemas[name]
	return exists
}

func (sv *SchemaValidator) validate(schemaName string, data interface{}) *ValidationResult {
	schema, exists := sv.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Message: fmt.Sprintf("Schema '%s' not found", schemaName),
				Code:    codeSchemaNotFound,
			}},
		}
	}

	var documentLoader gojsonschema.JSONLoader
	switch v := data.(type) {
	case string:
		documentLoader = gojsonschema.NewStringLoader(v)
	case []byte:
		documentLoader = gojsonschema.NewBytesLoader(v)
	default:
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return &ValidationResult{
				Valid: false,
				Errors: []ValidationError{{
					Field:   "data",
					Message: fmt.Sprintf("Failed to marshal data to JSON: %v", err),
					Code:    codeJSONMarshalError,
				}},
			}
		}
		documentLoader = gojsonschema.NewBytesLoader(jsonBytes)
	}

	result, err := schema.Validate(documentLoader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "body",
				Message: fmt.Sprintf("Malformed JSON: %v", err),
				Code:    CodeInvalidJSON,
			}},
		}
	}

	validationResult := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}

	if !result.Valid() {
		for _, re := range result.Errors() {
			field := re.Field()
			if re.Type() == "additional_property_not_allowed" {
				if prop, ok := re.Details()["property"].(string); ok {
					field = prop
				}
			}
			validationResult.Errors = append(validationResult.Errors, ValidationError{
				Field:   field,
				Message: re.Description(),
				Code:    CodeForField(field),
				Value:   re.Value(),
				Context: re.Context().String(),
			})
		}
	}

	return validationResult
}

// CodeForField maps a request field to its client-facing error code.
func CodeForField(field string) string {
	switch {
	case field == "mode":
		return CodeInvalidMode
	case field == "limit":
		return CodeLimitOutOfRange
	case field == "reference_id", field == "viewer_id", strings.HasPrefix(field, "exclude"):
		return CodeInvalidID
	default:
		return CodeValidation
	}
}

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Value   interface{} `json:"value,omitempty"`
	Context string      `json:"context,omitempty"`
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// Invalid builds a failed result holding a single field error.
func Invalid(field, message string) *ValidationResult {
	return &ValidationResult{
		Valid: false,
		Errors: []ValidationError{{
			Field:   field,
			Message: message,
			Code:    CodeForField(field),
		}},
	}
}

// ToAPIError converts validation errors to API error format
func (vr *ValidationResult) ToAPIError() map[string]interface{} {
	if vr.Valid {
		return nil
	}

	errorDetails := make(map[string]interface{})
	errorDetails["validationErrors"] = vr.Errors

	fieldErrors := make(map[string][]string)
	for _, err := range vr.Errors {
		if err.Field != "" {
			fieldErrors[err.Field] = append(fieldErrors[err.Field], err.Code+": "+err.Message)
		}
	}

	if len(fieldErrors) > 0 {
		errorDetails["fieldErrors"] = fieldErrors
	}

	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    CodeValidation,
			"message": "Request validation failed",
			"details": errorDetails,
		},
	}
}
