package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/pkg/models"
)

// InteractionRepository reads viewer events from the post_interactions table.
type InteractionRepository struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewInteractionRepository(db DatabaseQuerier, logger *logrus.Logger) *InteractionRepository {
	return &InteractionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *InteractionRepository) RecentEvents(
	ctx context.Context,
	viewerID int64,
	kind models.InteractionKind,
	windowDays, maxCount int,
) ([]models.InteractionEvent, error) {
	if maxCount <= 0 {
		return nil, nil
	}

	query := `
		SELECT user_id, post_id, kind, created_at
		FROM post_interactions
		WHERE user_id = $1 AND kind = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4`

	since := time.Now().AddDate(0, 0, -windowDays)
	rows, err := r.db.Query(ctx, query, viewerID, string(kind), since, maxCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s interactions: %w", kind, err)
	}
	defer rows.Close()

	var events []models.InteractionEvent
	for rows.Next() {
		var (
			e   models.InteractionEvent
			raw string
		)
		if err := rows.Scan(&e.ViewerID, &e.ContentID, &raw, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		parsed, err := models.ParseInteractionKind(raw)
		if err != nil {
			r.logger.WithError(err).WithField("viewer_id", viewerID).Warn("Skipping interaction with unknown kind")
			continue
		}
		e.Kind = parsed
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}

	return events, nil
}

// relationshipTypes maps each kind to the edge written by the social graph
// projector.
var relationshipTypes = map[models.InteractionKind]string{
	models.InteractionView:     "VIEWED",
	models.InteractionLike:     "LIKED",
	models.InteractionFavorite: "FAVORITED",
}

// GraphInteractionRepository reads viewer events from the Neo4j social graph.
type GraphInteractionRepository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *logrus.Logger
}

func NewGraphInteractionRepository(driver neo4j.DriverWithContext, database string, logger *logrus.Logger) *GraphInteractionRepository {
	return &GraphInteractionRepository{
		driver:   driver,
		database: database,
		logger:   logger,
	}
}

func (r *GraphInteractionRepository) RecentEvents(
	ctx context.Context,
	viewerID int64,
	kind models.InteractionKind,
	windowDays, maxCount int,
) ([]models.InteractionEvent, error) {
	relType, ok := relationshipTypes[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported interaction kind %q", kind)
	}
	if maxCount <= 0 {
		return nil, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	cypher := fmt.Sprintf(`
		MATCH (u:User {id: $viewer_id})-[r:%s]->(p:Post)
		WHERE r.at >= $since
		RETURN p.id AS post_id, r.at AS at
		ORDER BY r.at DESC
		LIMIT $limit`, relType)

	since := time.Now().AddDate(0, 0, -windowDays)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, map[string]interface{}{
			"viewer_id": viewerID,
			"since":     since,
			"limit":     maxCount,
		})
		if err != nil {
			return nil, err
		}

		var events []models.InteractionEvent
		for result.Next(ctx) {
			record := result.Record()
			postID, _, err := neo4j.GetRecordValue[int64](record, "post_id")
			if err != nil {
				return nil, err
			}
			at, _, err := neo4j.GetRecordValue[time.Time](record, "at")
			if err != nil {
				return nil, err
			}
			events = append(events, models.InteractionEvent{
				ViewerID:   viewerID,
				ContentID:  postID,
				Kind:       kind,
				OccurredAt: at,
			})
		}

		return events, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s interactions from graph: %w", kind, err)
	}

	events, _ := result.([]models.InteractionEvent)
	return events, nil
}
