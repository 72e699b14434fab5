package testing

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/folio/internal/middleware"
	"github.com/temcen/folio/internal/validation"
)

// ContractTester runs requests through a router and checks responses against
// the published error schema and header conventions.
type ContractTester struct {
	validator *validation.SchemaValidator
	router    *gin.Engine
}

func NewContractTester(validator *validation.SchemaValidator, router *gin.Engine) *ContractTester {
	return &ContractTester{
		validator: validator,
		router:    router,
	}
}

// TestCase is one request/response expectation. Body may be a raw string,
// which is sent as-is, or any value that is JSON encoded.
type TestCase struct {
	Name           string
	Method         string
	Path           string
	Headers        map[string]string
	Body           interface{}
	ExpectedStatus int
	ExpectedCode   string
	ValidateBody   func(t *testing.T, body map[string]interface{})
}

func (ct *ContractTester) APIContractTest(t *testing.T, testCases []TestCase) {
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			ct.runTestCase(t, tc)
		})
	}
}

func (ct *ContractTester) runTestCase(t *testing.T, tc TestCase) {
	var bodyReader io.Reader
	switch b := tc.Body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		bodyBytes, err := json.Marshal(b)
		require.NoError(t, err, "Failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(tc.Method, tc.Path, bodyReader)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range tc.Headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	ct.router.ServeHTTP(w, req)

	assert.Equal(t, tc.ExpectedStatus, w.Code, "Unexpected status code, body: %s", w.Body.String())
	ct.validateResponseHeaders(t, w)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "Response is not a JSON object")

	if w.Code >= 400 {
		ct.validateErrorResponse(t, body, tc.ExpectedCode)
	}
	if tc.ValidateBody != nil {
		tc.ValidateBody(t, body)
	}
}

func (ct *ContractTester) validateResponseHeaders(t *testing.T, w *httptest.ResponseRecorder) {
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), "Missing request id header")

	if remaining := w.Header().Get("X-RateLimit-Remaining"); remaining != "" {
		_, err := strconv.Atoi(remaining)
		assert.NoError(t, err, "X-RateLimit-Remaining must be numeric")
	}
}

func (ct *ContractTester) validateErrorResponse(t *testing.T, body map[string]interface{}, expectedCode string) {
	result := ct.validator.ValidateErrorResponse(body)
	assert.True(t, result.Valid, "Error response does not match schema: %v", result.Errors)

	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "Error response must carry an error object")
	if expectedCode != "" {
		assert.Equal(t, expectedCode, errBody["code"])
	}
}

func httptestGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}
