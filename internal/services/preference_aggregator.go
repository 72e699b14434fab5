package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

// PreferenceAggregator derives a viewer's tag and category affinities from
// their recent interactions.
type PreferenceAggregator struct {
	interactions InteractionRepository
	content      ContentRepository
	config       config.ProfileConfig
	logger       *logrus.Logger
}

func NewPreferenceAggregator(
	interactions InteractionRepository,
	content ContentRepository,
	cfg config.ProfileConfig,
	logger *logrus.Logger,
) *PreferenceAggregator {
	return &PreferenceAggregator{
		interactions: interactions,
		content:      content,
		config:       cfg,
		logger:       logger,
	}
}

type kindQuota struct {
	kind models.InteractionKind
	max  int
}

// BuildProfile returns an empty profile, not an error, for a viewer with no
// recent history.
func (a *PreferenceAggregator) BuildProfile(ctx context.Context, viewerID int64) (*models.PreferenceProfile, error) {
	quotas := []kindQuota{
		{kind: models.InteractionView, max: a.config.MaxViews},
		{kind: models.InteractionFavorite, max: a.config.MaxFavorites},
		{kind: models.InteractionLike, max: a.config.MaxLikes},
	}

	var events []models.InteractionEvent
	for _, q := range quotas {
		if q.max <= 0 {
			continue
		}
		batch, err := a.interactions.RecentEvents(ctx, viewerID, q.kind, a.config.WindowDays, q.max)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s events: %w", q.kind, err)
		}
		events = append(events, batch...)
	}

	if len(events) == 0 {
		return models.NewPreferenceProfile(viewerID, nil, nil), nil
	}

	ids := make([]int64, 0, len(events))
	seen := make(map[int64]struct{}, len(events))
	for _, e := range events {
		if _, ok := seen[e.ContentID]; ok {
			continue
		}
		seen[e.ContentID] = struct{}{}
		ids = append(ids, e.ContentID)
	}

	items, err := a.content.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load interacted content: %w", err)
	}
	byID := make(map[int64]*models.ContentItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	tagWeights := make(map[int64]float64)
	categoryWeights := make(map[int64]float64)
	for _, e := range events {
		item, ok := byID[e.ContentID]
		if !ok {
			continue
		}
		w := e.Kind.Weight()
		for _, tagID := range item.TagIDs() {
			tagWeights[tagID] += w
		}
		if item.CategoryID != nil {
			categoryWeights[*item.CategoryID] += w
		}
	}

	a.logger.WithFields(logrus.Fields{
		"viewer_id":  viewerID,
		"events":     len(events),
		"tags":       len(tagWeights),
		"categories": len(categoryWeights),
	}).Debug("Preference profile aggregated")

	return models.NewPreferenceProfile(
		viewerID,
		topWeighted(tagWeights, a.config.TopTags),
		topWeighted(categoryWeights, a.config.TopCategories),
	), nil
}

// topWeighted orders by weight descending, lower id first on ties.
func topWeighted(weights map[int64]float64, n int) []models.WeightedID {
	out := make([]models.WeightedID, 0, len(weights))
	for id, w := range weights {
		out = append(out, models.WeightedID{ID: id, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
