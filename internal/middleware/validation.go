package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/temcen/folio/internal/validation"
)

const (
	validatedBodyKey = "validatedBody"
	maxBodyBytes     = 64 << 10
)

// ValidationMiddleware checks request bodies against the embedded JSON schemas
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

func (vm *ValidationMiddleware) ValidateRecommendationRequest() gin.HandlerFunc {
	return vm.validateRequestBody(validation.RecommendationRequestSchema)
}

// validateRequestBody rejects bodies that do not match schemaName and leaves
// the raw bytes in the context for the handler. An empty body is treated as {}.
func (vm *ValidationMiddleware) validateRequestBody(schemaName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			vm.sendValidationError(c, validation.Invalid("body", "failed to read request body"))
			return
		}
		if len(bytes.TrimSpace(bodyBytes)) == 0 {
			bodyBytes = []byte("{}")
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		result := vm.validator.Validate(schemaName, bodyBytes)
		if !result.Valid {
			vm.sendValidationError(c, result)
			return
		}

		c.Set(validatedBodyKey, bodyBytes)
		c.Next()
	}
}

func (vm *ValidationMiddleware) sendValidationError(c *gin.Context, result *validation.ValidationResult) {
	apiError := result.ToAPIError()
	if errorObj, ok := apiError["error"].(map[string]interface{}); ok {
		errorObj["timestamp"] = time.Now().UTC().Format(time.RFC3339)
		errorObj["request_id"] = GetRequestID(c)
		errorObj["path"] = c.Request.URL.Path
		errorObj["method"] = c.Request.Method
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, apiError)
}

// ValidatedBody returns the body bytes accepted by the validation middleware.
func ValidatedBody(c *gin.Context) ([]byte, bool) {
	v, exists := c.Get(validatedBodyKey)
	if !exists {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}
