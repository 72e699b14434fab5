package services

import (
	"context"

	"github.com/temcen/folio/pkg/models"
)

// ContentRepository is the read-only view of published content.
type ContentRepository interface {
	// FindPublished returns published, non-deleted items matching filter that
	// are not in excludeIDs, ordered per filter.OrderBy, at most limit long.
	FindPublished(ctx context.Context, filter models.ContentFilter, excludeIDs []int64, limit int) ([]models.ContentItem, error)
	// FindByID returns nil, nil when the item is missing or deleted.
	FindByID(ctx context.Context, id int64) (*models.ContentItem, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.ContentItem, error)
}

// InteractionRepository returns a viewer's recent events of one kind,
// most recent first.
type InteractionRepository interface {
	RecentEvents(ctx context.Context, viewerID int64, kind models.InteractionKind, windowDays, maxCount int) ([]models.InteractionEvent, error)
}

// AuditSink persists impression batches.
type AuditSink interface {
	Record(ctx context.Context, entries []models.AuditEntry) error
}

// CandidateFetcher nominates candidates for one strategy.
type CandidateFetcher interface {
	Strategy() models.Strategy
	Fetch(ctx context.Context, req *FetchRequest) ([]models.ScoredCandidate, error)
}

// ImpressionLogger accepts impression batches without blocking the caller.
type ImpressionLogger interface {
	Log(entries []models.AuditEntry)
}

// RecommendationEngineInterface is what the HTTP layer depends on.
type RecommendationEngineInterface interface {
	Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResponse, error)
}
