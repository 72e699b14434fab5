package testing

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/internal/handlers"
	"github.com/temcen/folio/internal/middleware"
	"github.com/temcen/folio/internal/services"
	"github.com/temcen/folio/internal/validation"
	"github.com/temcen/folio/pkg/models"
)

const failingReference = 404

// stubEngine answers every request with a single trending item and fails
// for failingReference.
type stubEngine struct {
	mu   sync.Mutex
	last *models.RecommendationRequest
}

func (s *stubEngine) Recommend(_ context.Context, req *models.RecommendationRequest) (*models.RecommendationResponse, error) {
	s.mu.Lock()
	copied := *req
	s.last = &copied
	s.mu.Unlock()

	if req.ReferenceContentID != nil && *req.ReferenceContentID == failingReference {
		return nil, services.ErrStorageUnavailable
	}
	return &models.RecommendationResponse{
		RequestID:   "contract",
		Mode:        req.Mode,
		Items:       []models.RecommendationItem{{ID: 12, Title: "Twelve", Reason: "trending this week", Strategy: models.StrategyTrending, Tags: []models.TagSummary{}}},
		Algorithms:  []models.Strategy{models.StrategyTrending},
		GeneratedAt: time.Now(),
	}, nil
}

func (s *stubEngine) lastRequest() *models.RecommendationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func setupContractRouter(t *testing.T, engine services.RecommendationEngineInterface, auth *services.AuthService) (*gin.Engine, *validation.SchemaValidator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	schemas, err := validation.NewEmbeddedSchemaValidator()
	require.NoError(t, err)

	rateLimit := services.NewRateLimitService(config.RateLimitConfig{
		Enabled: true,
		Default: 100,
		Window:  time.Hour,
	}, logger, nil)

	handler := handlers.NewRecommendationHandler(engine, schemas, logger)
	bodyValidator := middleware.NewValidationMiddleware(schemas)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))

	api := router.Group("/api/v1")
	api.Use(middleware.OptionalViewer(auth, logger))
	api.Use(middleware.RateLimit(rateLimit, logger))
	api.GET("/recommendations", handler.Get)
	api.POST("/recommendations", bodyValidator.ValidateRecommendationRequest(), handler.Post)
	api.GET("/content/:id/related", handler.Related)

	return router, schemas
}

func TestAPIContractCompliance(t *testing.T) {
	engine := &stubEngine{}
	auth := services.NewAuthService(&config.Config{Auth: config.AuthConfig{JWTSecret: "contract-secret"}}, logrus.New())
	router, schemas := setupContractRouter(t, engine, auth)
	contractTester := NewContractTester(schemas, router)

	token, err := auth.IssueToken(31, time.Hour)
	require.NoError(t, err)

	hasItems := func(t *testing.T, body map[string]interface{}) {
		items, ok := body["items"].([]interface{})
		require.True(t, ok, "items must be an array")
		assert.Len(t, items, 1)
		assert.NotEmpty(t, body["request_id"])
		assert.NotContains(t, items[0], "score")
	}

	t.Run("RecommendationContracts", func(t *testing.T) {
		contractTester.APIContractTest(t, []TestCase{
			{
				Name:           "trending with explicit limit",
				Method:         http.MethodGet,
				Path:           "/api/v1/recommendations?mode=trending&limit=5",
				ExpectedStatus: http.StatusOK,
				ValidateBody:   hasItems,
			},
			{
				Name:           "limit out of range",
				Method:         http.MethodGet,
				Path:           "/api/v1/recommendations?limit=50",
				ExpectedStatus: http.StatusBadRequest,
				ExpectedCode:   validation.CodeValidation,
			},
			{
				Name:           "unknown mode",
				Method:         http.MethodGet,
				Path:           "/api/v1/recommendations?mode=random",
				ExpectedStatus: http.StatusBadRequest,
				ExpectedCode:   validation.CodeValidation,
			},
			{
				Name:           "malformed exclusion list",
				Method:         http.MethodGet,
				Path:           "/api/v1/recommendations?exclude=1,x",
				ExpectedStatus: http.StatusBadRequest,
				ExpectedCode:   validation.CodeValidation,
			},
			{
				Name:           "viewer resolved from bearer token",
				Method:         http.MethodGet,
				Path:           "/api/v1/recommendations?mode=behavioral",
				Headers:        map[string]string{"Authorization": "Bearer " + token},
				ExpectedStatus: http.StatusOK,
				ValidateBody: func(t *testing.T, body map[string]interface{}) {
					last := engine.lastRequest()
					require.NotNil(t, last)
					require.NotNil(t, last.ViewerID)
					assert.Equal(t, int64(31), *last.ViewerID)
				},
			},
			{
				Name:           "post body",
				Method:         http.MethodPost,
				Path:           "/api/v1/recommendations",
				Body:           map[string]interface{}{"mode": "content", "reference_id": 3, "limit": 4},
				ExpectedStatus: http.StatusOK,
				ValidateBody: func(t *testing.T, body map[string]interface{}) {
					hasItems(t, body)
					last := engine.lastRequest()
					require.NotNil(t, last.ReferenceContentID)
					assert.Equal(t, int64(3), *last.ReferenceContentID)
					assert.Equal(t, 4, last.Limit)
				},
			},
			{
				Name:           "post body over limit",
				Method:         http.MethodPost,
				Path:           "/api/v1/recommendations",
				Body:           map[string]interface{}{"limit": 25},
				ExpectedStatus: http.StatusBadRequest,
				ExpectedCode:   validation.CodeValidation,
			},
			{
				Name:           "post malformed json",
				Method:         http.MethodPost,
				Path:           "/api/v1/recommendations",
				Body:           `{"limit": `,
				ExpectedStatus: http.StatusBadRequest,
				ExpectedCode:   validation.CodeValidation,
			},
			{
				Name:           "related content",
				Method:         http.MethodGet,
				Path:           "/api/v1/content/8/related?limit=3",
				ExpectedStatus: http.StatusOK,
				ValidateBody: func(t *testing.T, body map[string]interface{}) {
					hasItems(t, body)
					assert.Equal(t, string(models.ModeContent), body["mode"])
				},
			},
			{
				Name:           "related with bad id",
				Method:         http.MethodGet,
				Path:           "/api/v1/content/abc/related",
				ExpectedStatus: http.StatusBadRequest,
				ExpectedCode:   validation.CodeValidation,
			},
			{
				Name:           "engine failure",
				Method:         http.MethodGet,
				Path:           "/api/v1/content/404/related",
				ExpectedStatus: http.StatusInternalServerError,
				ExpectedCode:   "RECOMMENDATION_GENERATION_FAILED",
				ValidateBody: func(t *testing.T, body map[string]interface{}) {
					errBody := body["error"].(map[string]interface{})
					assert.NotEmpty(t, errBody["request_id"])
				},
			},
		})
	})
}

func TestRateLimitHeadersPresent(t *testing.T) {
	auth := services.NewAuthService(&config.Config{}, logrus.New())
	router, schemas := setupContractRouter(t, &stubEngine{}, auth)
	contractTester := NewContractTester(schemas, router)

	contractTester.APIContractTest(t, []TestCase{
		{
			Name:           "anonymous trending",
			Method:         http.MethodGet,
			Path:           "/api/v1/recommendations?mode=trending",
			ExpectedStatus: http.StatusOK,
		},
	})

	w := httptestGet(router, "/api/v1/recommendations?mode=trending")
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Remaining"))
}
