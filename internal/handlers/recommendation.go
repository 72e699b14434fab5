package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/middleware"
	"github.com/temcen/folio/internal/services"
	"github.com/temcen/folio/internal/validation"
	"github.com/temcen/folio/pkg/models"
)

const maxExcludeIDs = 200

type RecommendationHandler struct {
	engine    services.RecommendationEngineInterface
	schemas   *validation.SchemaValidator
	validator *validation.RequestValidator
	logger    *logrus.Logger
}

func NewRecommendationHandler(
	engine services.RecommendationEngineInterface,
	schemas *validation.SchemaValidator,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		engine:    engine,
		schemas:   schemas,
		validator: validation.NewRequestValidator(),
		logger:    logger,
	}
}

// Get serves GET /api/v1/recommendations.
func (h *RecommendationHandler) Get(c *gin.Context) {
	req := &models.RecommendationRequest{Limit: models.DefaultLimit}

	mode, err := models.ParseMode(c.Query("mode"))
	if err != nil {
		h.badRequest(c, validation.Invalid("mode", err.Error()))
		return
	}
	req.Mode = mode

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, validation.Invalid("limit", "must be an integer"))
			return
		}
		req.Limit = limit
	}

	if req.ReferenceContentID, err = optionalID(c.Query("reference_id")); err != nil {
		h.badRequest(c, validation.Invalid("reference_id", err.Error()))
		return
	}
	if req.ViewerID, err = optionalID(c.Query("viewer_id")); err != nil {
		h.badRequest(c, validation.Invalid("viewer_id", err.Error()))
		return
	}
	if req.ExcludeIDs, err = parseIDList(c.Query("exclude")); err != nil {
		h.badRequest(c, validation.Invalid("exclude", err.Error()))
		return
	}

	h.serve(c, req)
}

// Post serves POST /api/v1/recommendations. The body has already passed the
// JSON schema check in the validation middleware when mounted behind it.
func (h *RecommendationHandler) Post(c *gin.Context) {
	body, ok := middleware.ValidatedBody(c)
	if !ok {
		raw, err := c.GetRawData()
		if err != nil {
			h.badRequest(c, validation.Invalid("body", "failed to read request body"))
			return
		}
		if len(strings.TrimSpace(string(raw))) == 0 {
			raw = []byte("{}")
		}
		if result := h.schemas.ValidateRecommendationRequest(raw); !result.Valid {
			h.badRequest(c, result)
			return
		}
		body = raw
	}

	var payload models.RecommendationRequestBody
	if err := json.Unmarshal(body, &payload); err != nil {
		h.badRequest(c, &validation.ValidationResult{
			Errors: []validation.ValidationError{{
				Field:   "body",
				Message: "Invalid request body format",
				Code:    validation.CodeInvalidJSON,
			}},
		})
		return
	}

	mode, err := models.ParseMode(payload.Mode)
	if err != nil {
		h.badRequest(c, validation.Invalid("mode", err.Error()))
		return
	}
	req := &models.RecommendationRequest{
		ReferenceContentID: payload.ReferenceID,
		ViewerID:           payload.ViewerID,
		Mode:               mode,
		Limit:              models.DefaultLimit,
		ExcludeIDs:         payload.ExcludeIDs,
	}
	if payload.Limit != nil {
		req.Limit = *payload.Limit
	}

	h.serve(c, req)
}

// Related serves GET /api/v1/content/:id/related, a content-mode shortcut.
func (h *RecommendationHandler) Related(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, validation.Invalid("reference_id", "must be a positive integer"))
		return
	}

	req := &models.RecommendationRequest{
		ReferenceContentID: &id,
		Mode:               models.ModeContent,
		Limit:              models.DefaultLimit,
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, validation.Invalid("limit", "must be an integer"))
			return
		}
		req.Limit = limit
	}
	if req.ExcludeIDs, err = parseIDList(c.Query("exclude")); err != nil {
		h.badRequest(c, validation.Invalid("exclude", err.Error()))
		return
	}

	h.serve(c, req)
}

func (h *RecommendationHandler) serve(c *gin.Context, req *models.RecommendationRequest) {
	if req.ViewerID == nil {
		if viewerID, ok := middleware.ViewerFromContext(c); ok {
			req.ViewerID = &viewerID
		}
	}

	if result := h.validator.Validate(*req); !result.Valid {
		h.badRequest(c, result)
		return
	}

	resp, err := h.engine.Recommend(c.Request.Context(), req)
	if err != nil {
		h.engineError(c, req, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *RecommendationHandler) engineError(c *gin.Context, req *models.RecommendationRequest, err error) {
	var idErr *services.InvalidIdentifierError
	switch {
	case errors.As(err, &idErr):
		h.badRequest(c, validation.Invalid(idErr.Field, err.Error()))
	case errors.Is(err, services.ErrInvalidMode):
		h.badRequest(c, validation.Invalid("mode", err.Error()))
	case errors.Is(err, services.ErrLimitOutOfRange):
		h.badRequest(c, validation.Invalid("limit", err.Error()))
	case errors.Is(err, services.ErrInvalidIdentifier):
		h.badRequest(c, validation.Invalid("reference_id", err.Error()))
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"mode":       req.Mode,
			"request_id": middleware.GetRequestID(c),
		}).Error("Failed to generate recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":       "RECOMMENDATION_GENERATION_FAILED",
				"message":    "Failed to generate recommendations",
				"request_id": middleware.GetRequestID(c),
			},
		})
	}
}

func (h *RecommendationHandler) badRequest(c *gin.Context, result *validation.ValidationResult) {
	c.JSON(http.StatusBadRequest, result.ToAPIError())
}

func optionalID(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("must be a positive integer")
	}
	return &id, nil
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) > maxExcludeIDs {
		return nil, errors.New("too many ids")
	}
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.New("must be a comma separated list of positive integers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
