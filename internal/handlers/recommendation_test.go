package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/folio/internal/middleware"
	"github.com/temcen/folio/internal/services"
	"github.com/temcen/folio/internal/validation"
	"github.com/temcen/folio/pkg/models"
)

// MockRecommendationEngine is a mock implementation
type MockRecommendationEngine struct {
	mock.Mock
}

func (m *MockRecommendationEngine) Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*models.RecommendationResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestRouter(t *testing.T, engine services.RecommendationEngineInterface) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	schemas, err := validation.NewEmbeddedSchemaValidator()
	require.NoError(t, err)

	handler := NewRecommendationHandler(engine, schemas, logger)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		// Stand-in for the JWT middleware.
		if raw := c.GetHeader("X-Test-Viewer"); raw != "" {
			var id int64
			fmt.Sscan(raw, &id)
			c.Set("viewer_id", id)
		}
		c.Next()
	})
	router.GET("/api/v1/recommendations", handler.Get)
	router.POST("/api/v1/recommendations", handler.Post)
	router.GET("/api/v1/content/:id/related", handler.Related)
	return router
}

func sampleResponse(mode models.Mode) *models.RecommendationResponse {
	return &models.RecommendationResponse{
		RequestID: "req-1",
		Mode:      mode,
		Items: []models.RecommendationItem{
			{ID: 7, Title: "Seven", Reason: "trending this week", Strategy: models.StrategyTrending, Tags: []models.TagSummary{}},
		},
		Algorithms:  []models.Strategy{models.StrategyTrending},
		GeneratedAt: time.Now(),
	}
}

func errorCode(t *testing.T, body []byte) (string, map[string]interface{}) {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	errObj, ok := payload["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object: %s", body)
	details, _ := errObj["details"].(map[string]interface{})
	return errObj["code"].(string), details
}

func TestRecommendationHandler_Get(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.MatchedBy(func(req *models.RecommendationRequest) bool {
		return req.Mode == models.ModeHybrid &&
			req.Limit == models.DefaultLimit &&
			req.ViewerID == nil &&
			req.ReferenceContentID == nil
	})).Return(sampleResponse(models.ModeHybrid), nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.RecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, []models.Strategy{models.StrategyTrending}, resp.Algorithms)
	assert.NotContains(t, w.Body.String(), `"score"`)
	engine.AssertExpectations(t)
}

func TestRecommendationHandler_GetParsesQuery(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.MatchedBy(func(req *models.RecommendationRequest) bool {
		return req.Mode == models.ModeContent &&
			req.Limit == 5 &&
			req.ReferenceContentID != nil && *req.ReferenceContentID == 42 &&
			req.ViewerID != nil && *req.ViewerID == 9 &&
			assert.ObjectsAreEqual([]int64{3, 4}, req.ExcludeIDs)
	})).Return(sampleResponse(models.ModeContent), nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?mode=content&limit=5&reference_id=42&viewer_id=9&exclude=3,4", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	engine.AssertExpectations(t)
}

func TestRecommendationHandler_ViewerFromToken(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.MatchedBy(func(req *models.RecommendationRequest) bool {
		return req.ViewerID != nil && *req.ViewerID == 77
	})).Return(sampleResponse(models.ModeBehavioral), nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?mode=behavioral", nil)
	req.Header.Set("X-Test-Viewer", "77")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	engine.AssertExpectations(t)
}

func TestRecommendationHandler_GetRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantField string
		wantCode  string
	}{
		{name: "limit zero", query: "?limit=0", wantField: "limit", wantCode: validation.CodeLimitOutOfRange},
		{name: "limit above maximum", query: "?limit=25", wantField: "limit", wantCode: validation.CodeLimitOutOfRange},
		{name: "limit not a number", query: "?limit=ten", wantField: "limit", wantCode: validation.CodeLimitOutOfRange},
		{name: "unknown mode", query: "?mode=random", wantField: "mode", wantCode: validation.CodeInvalidMode},
		{name: "bad reference", query: "?reference_id=abc", wantField: "reference_id", wantCode: validation.CodeInvalidID},
		{name: "negative viewer", query: "?viewer_id=-1", wantField: "viewer_id", wantCode: validation.CodeInvalidID},
		{name: "bad exclusion", query: "?exclude=1,x", wantField: "exclude", wantCode: validation.CodeInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockRecommendationEngine)
			router := newTestRouter(t, engine)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations"+tt.query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			code, details := errorCode(t, w.Body.Bytes())
			assert.Equal(t, validation.CodeValidation, code)

			fieldErrors := details["fieldErrors"].(map[string]interface{})
			require.Contains(t, fieldErrors, tt.wantField)
			assert.Contains(t, fmt.Sprint(fieldErrors[tt.wantField]), tt.wantCode)

			engine.AssertNotCalled(t, "Recommend", mock.Anything, mock.Anything)
		})
	}
}

func TestRecommendationHandler_StorageFailure(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("3 of 3 strategies failed: %w", services.ErrStorageUnavailable)).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?mode=trending", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	code, _ := errorCode(t, w.Body.Bytes())
	assert.Equal(t, "RECOMMENDATION_GENERATION_FAILED", code)
}

func TestRecommendationHandler_EngineValidationError(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: 15 not in [1, 12]", services.ErrLimitOutOfRange)).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?limit=15", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationHandler_EngineIdentifierErrorNamesField(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		field string
	}{
		{name: "viewer", err: &services.InvalidIdentifierError{Field: "viewer_id", ID: -2}, field: "viewer_id"},
		{name: "exclusion", err: &services.InvalidIdentifierError{Field: "exclude_ids[1]", ID: 0}, field: "exclude_ids[1]"},
		{name: "bare sentinel", err: services.ErrInvalidIdentifier, field: "reference_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockRecommendationEngine)
			router := newTestRouter(t, engine)
			engine.On("Recommend", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/recommendations", nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			code, details := errorCode(t, w.Body.Bytes())
			assert.Equal(t, validation.CodeValidation, code)
			fieldErrors := details["fieldErrors"].(map[string]interface{})
			require.Contains(t, fieldErrors, tt.field)
			assert.Contains(t, fieldErrors[tt.field].([]interface{})[0], validation.CodeInvalidID)
		})
	}
}

func TestRecommendationHandler_Post(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.MatchedBy(func(req *models.RecommendationRequest) bool {
		return req.Mode == models.ModeHybrid &&
			req.Limit == 4 &&
			req.ViewerID != nil && *req.ViewerID == 9 &&
			assert.ObjectsAreEqual([]int64{1}, req.ExcludeIDs)
	})).Return(sampleResponse(models.ModeHybrid), nil).Once()

	w := httptest.NewRecorder()
	body := `{"viewer_id": 9, "limit": 4, "exclude_ids": [1]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	engine.AssertExpectations(t)
}

func TestRecommendationHandler_PostEmptyBodyUsesDefaults(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.MatchedBy(func(req *models.RecommendationRequest) bool {
		return req.Mode == models.ModeHybrid && req.Limit == models.DefaultLimit
	})).Return(sampleResponse(models.ModeHybrid), nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	engine.AssertExpectations(t)
}

func TestRecommendationHandler_PostSchemaViolation(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"limit": 25}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, details := errorCode(t, w.Body.Bytes())
	assert.Contains(t, details["fieldErrors"], "limit")
	engine.AssertNotCalled(t, "Recommend", mock.Anything, mock.Anything)
}

func TestRecommendationHandler_PostBehindValidationMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	schemas, err := validation.NewEmbeddedSchemaValidator()
	require.NoError(t, err)

	engine := new(MockRecommendationEngine)
	engine.On("Recommend", mock.Anything, mock.MatchedBy(func(req *models.RecommendationRequest) bool {
		return req.Mode == models.ModeTrending && req.Limit == 3
	})).Return(sampleResponse(models.ModeTrending), nil).Once()

	handler := NewRecommendationHandler(engine, schemas, logger)
	router := gin.New()
	router.POST("/api/v1/recommendations",
		middleware.NewValidationMiddleware(schemas).ValidateRecommendationRequest(),
		handler.Post)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"mode": "trending", "limit": 3}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"mode": "random"}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	engine.AssertExpectations(t)
}

func TestRecommendationHandler_Related(t *testing.T) {
	engine := new(MockRecommendationEngine)
	router := newTestRouter(t, engine)

	engine.On("Recommend", mock.Anything, mock.MatchedBy(func(req *models.RecommendationRequest) bool {
		return req.Mode == models.ModeContent &&
			req.ReferenceContentID != nil && *req.ReferenceContentID == 12 &&
			req.Limit == 3
	})).Return(sampleResponse(models.ModeContent), nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/content/12/related?limit=3", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/content/zero/related", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	engine.AssertExpectations(t)
}
