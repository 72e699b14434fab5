package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/services"
	"github.com/temcen/folio/internal/validation"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
}

func New(logger *logrus.Logger, svc *services.Services, schemas *validation.SchemaValidator) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Recommendation: NewRecommendationHandler(svc.Engine, schemas, logger),
	}
}
