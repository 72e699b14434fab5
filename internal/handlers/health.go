package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/middleware"
	"github.com/temcen/folio/internal/services"
)

type HealthHandler struct {
	logger        *logrus.Logger
	healthService *services.HealthService
}

func NewHealthHandler(logger *logrus.Logger, healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{
		logger:        logger,
		healthService: healthService,
	}
}

// Check serves GET /health. Degraded answers 200 and the strategies map shows
// which recommendation modes are affected.
func (h *HealthHandler) Check(c *gin.Context) {
	status := h.healthService.CheckHealth(c.Request.Context())
	status.RequestID = middleware.GetRequestID(c)

	httpStatus := http.StatusOK
	switch status.Status {
	case "healthy":
	case "degraded":
		h.logger.WithFields(logrus.Fields{
			"failing":    status.NonCritical,
			"strategies": status.Strategies,
		}).Warn("Recommendation service degraded")
	default:
		httpStatus = http.StatusServiceUnavailable
		h.logger.WithFields(logrus.Fields{
			"failing":    status.Critical,
			"strategies": status.Strategies,
		}).Error("Recommendation service unhealthy")
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(httpStatus, status)
}
