package models

import (
	"fmt"
	"time"
)

// InteractionKind is the closed set of viewer events the engine reads.
type InteractionKind string

const (
	InteractionView     InteractionKind = "view"
	InteractionLike     InteractionKind = "like"
	InteractionFavorite InteractionKind = "favorite"
)

// Weight is the contribution of one event of this kind to a preference profile.
func (k InteractionKind) Weight() float64 {
	switch k {
	case InteractionFavorite:
		return 3
	case InteractionLike:
		return 2
	case InteractionView:
		return 1
	default:
		return 0
	}
}

func ParseInteractionKind(s string) (InteractionKind, error) {
	switch InteractionKind(s) {
	case InteractionView, InteractionLike, InteractionFavorite:
		return InteractionKind(s), nil
	default:
		return "", fmt.Errorf("unknown interaction kind %q", s)
	}
}

type InteractionEvent struct {
	ViewerID   int64           `json:"viewer_id" db:"user_id"`
	ContentID  int64           `json:"content_id" db:"post_id"`
	Kind       InteractionKind `json:"kind" db:"kind"`
	OccurredAt time.Time       `json:"occurred_at" db:"created_at"`
}

type WeightedID struct {
	ID     int64   `json:"id"`
	Weight float64 `json:"weight"`
}

// PreferenceProfile is derived per request from recent interactions and is
// never persisted.
type PreferenceProfile struct {
	ViewerID        int64             `json:"viewer_id"`
	TopTags         []WeightedID      `json:"top_tags"`
	TopCategories   []WeightedID      `json:"top_categories"`
	TagWeights      map[int64]float64 `json:"-"`
	CategoryWeights map[int64]float64 `json:"-"`
}

func NewPreferenceProfile(viewerID int64, tags, categories []WeightedID) *PreferenceProfile {
	p := &PreferenceProfile{
		ViewerID:        viewerID,
		TopTags:         tags,
		TopCategories:   categories,
		TagWeights:      make(map[int64]float64, len(tags)),
		CategoryWeights: make(map[int64]float64, len(categories)),
	}
	for _, t := range tags {
		p.TagWeights[t.ID] = t.Weight
	}
	for _, c := range categories {
		p.CategoryWeights[c.ID] = c.Weight
	}
	return p
}

func (p *PreferenceProfile) IsEmpty() bool {
	return p == nil || (len(p.TopTags) == 0 && len(p.TopCategories) == 0)
}

func (p *PreferenceProfile) TagIDs() []int64 {
	ids := make([]int64, 0, len(p.TopTags))
	for _, t := range p.TopTags {
		ids = append(ids, t.ID)
	}
	return ids
}

func (p *PreferenceProfile) CategoryIDs() []int64 {
	ids := make([]int64, 0, len(p.TopCategories))
	for _, c := range p.TopCategories {
		ids = append(ids, c.ID)
	}
	return ids
}
