package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/pkg/models"
)

// AuditSink writes impressions to recommendation_logs in one statement per
// batch.
type AuditSink struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewAuditSink(db DatabaseQuerier, logger *logrus.Logger) *AuditSink {
	return &AuditSink{
		db:     db,
		logger: logger,
	}
}

func (s *AuditSink) Record(ctx context.Context, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	requestIDs := make([]string, len(entries))
	viewerIDs := make([]*int64, len(entries))
	contentIDs := make([]int64, len(entries))
	strategies := make([]string, len(entries))
	scores := make([]float64, len(entries))
	positions := make([]int32, len(entries))
	shownAt := make([]time.Time, len(entries))

	for i, e := range entries {
		requestIDs[i] = e.RequestID
		viewerIDs[i] = e.ViewerID
		contentIDs[i] = e.ContentID
		strategies[i] = string(e.Strategy)
		scores[i] = e.Score
		positions[i] = int32(e.Position)
		shownAt[i] = e.ShownAt
	}

	query := `
		INSERT INTO recommendation_logs (
			request_id, user_id, post_id, strategy, score, position, shown_at
		)
		SELECT * FROM unnest(
			$1::text[], $2::bigint[], $3::bigint[], $4::text[],
			$5::float8[], $6::int[], $7::timestamptz[]
		)`

	tag, err := s.db.Exec(ctx, query,
		requestIDs, viewerIDs, contentIDs, strategies, scores, positions, shownAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation logs: %w", err)
	}

	s.logger.WithField("rows", tag.RowsAffected()).Debug("Recommendation logs inserted")
	return nil
}
