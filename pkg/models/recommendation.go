package models

import (
	"fmt"
	"time"
)

const (
	DefaultLimit = 10
	MinLimit     = 1
	MaxLimit     = 20
)

// Strategy identifies the fetcher that nominated a candidate.
type Strategy string

const (
	StrategyContentBased Strategy = "content-based"
	StrategyBehavioral   Strategy = "behavioral"
	StrategyTrending     Strategy = "trending"
)

// Mode selects which strategies a request runs.
type Mode string

const (
	ModeContent    Mode = "content"
	ModeBehavioral Mode = "behavioral"
	ModeTrending   Mode = "trending"
	ModeHybrid     Mode = "hybrid"
)

// ParseMode maps the wire value to a Mode. The empty string means hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeHybrid, nil
	case ModeContent, ModeBehavioral, ModeTrending, ModeHybrid:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// ScoredCandidate is one fetcher's nomination. Scores are strategy-local.
type ScoredCandidate struct {
	ContentID int64        `json:"content_id"`
	Score     float64      `json:"score"`
	Reason    string       `json:"reason"`
	Strategy  Strategy     `json:"strategy"`
	Item      *ContentItem `json:"-"`
}

// RecommendationRequest is the validated engine input.
type RecommendationRequest struct {
	ReferenceContentID *int64  `json:"reference_id,omitempty" validate:"omitempty,gt=0"`
	ViewerID           *int64  `json:"viewer_id,omitempty" validate:"omitempty,gt=0"`
	Mode               Mode    `json:"mode" validate:"required,oneof=content behavioral trending hybrid"`
	Limit              int     `json:"limit" validate:"min=1,max=20"`
	ExcludeIDs         []int64 `json:"exclude_ids,omitempty" validate:"max=200,dive,gt=0"`
}

// RecommendationRequestBody is the JSON body accepted by the POST endpoint.
type RecommendationRequestBody struct {
	ReferenceID *int64  `json:"reference_id"`
	ViewerID    *int64  `json:"viewer_id"`
	Mode        string  `json:"mode"`
	Limit       *int    `json:"limit"`
	ExcludeIDs  []int64 `json:"exclude_ids"`
}

type TagSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type CategorySummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type AuthorSummary struct {
	ID          int64   `json:"id"`
	DisplayName string  `json:"display_name"`
	Avatar      *string `json:"avatar,omitempty"`
}

// RecommendationItem is the public view of a ranked candidate, without its
// internal score.
type RecommendationItem struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Summary     string           `json:"summary"`
	Slug        string           `json:"slug"`
	CoverImage  *string          `json:"cover_image,omitempty"`
	Views       int64            `json:"views"`
	Likes       int64            `json:"likes"`
	Comments    int64            `json:"comments"`
	ReadingTime int              `json:"reading_time"`
	PublishedAt time.Time        `json:"published_at"`
	Author      AuthorSummary    `json:"author"`
	Category    *CategorySummary `json:"category,omitempty"`
	Tags        []TagSummary     `json:"tags"`
	Reason      string           `json:"reason"`
	Strategy    Strategy         `json:"strategy"`
}

func NewRecommendationItem(c ScoredCandidate) RecommendationItem {
	item := RecommendationItem{
		ID:       c.ContentID,
		Reason:   c.Reason,
		Strategy: c.Strategy,
		Tags:     []TagSummary{},
	}
	if c.Item == nil {
		return item
	}

	src := c.Item
	item.Title = src.Title
	item.Summary = src.Summary
	item.Slug = src.Slug
	item.CoverImage = src.CoverImage
	item.Views = src.Views
	item.Likes = src.Likes
	item.Comments = src.Comments
	item.ReadingTime = src.ReadingTimeMinutes()
	item.PublishedAt = src.PublishedAt
	item.Author = AuthorSummary{
		ID:          src.Author.ID,
		DisplayName: src.Author.DisplayName,
		Avatar:      src.Author.Avatar,
	}
	if src.Category != nil {
		item.Category = &CategorySummary{
			ID:   src.Category.ID,
			Name: src.Category.Name,
			Slug: src.Category.Slug,
		}
	}
	for _, tag := range src.Tags {
		item.Tags = append(item.Tags, TagSummary{ID: tag.ID, Name: tag.Name, Slug: tag.Slug})
	}
	return item
}

type RecommendationResponse struct {
	RequestID   string               `json:"request_id"`
	Mode        Mode                 `json:"mode"`
	Items       []RecommendationItem `json:"items"`
	Algorithms  []Strategy           `json:"algorithms"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// AuditEntry records one impression for offline evaluation.
type AuditEntry struct {
	RequestID string    `json:"request_id"`
	ViewerID  *int64    `json:"viewer_id,omitempty"`
	ContentID int64     `json:"content_id"`
	Strategy  Strategy  `json:"strategy"`
	Score     float64   `json:"score"`
	Position  int       `json:"position"`
	ShownAt   time.Time `json:"shown_at"`
}
