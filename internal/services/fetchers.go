package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

const (
	reasonRelated       = "related content"
	reasonTrending      = "trending this week"
	maxReasonTagNames   = 2
	defaultPoolMultiple = 3
)

// FetchRequest carries one strategy's share of a recommendation request.
type FetchRequest struct {
	ReferenceID *int64
	ViewerID    *int64
	Limit       int
	ExcludeIDs  []int64
	Now         time.Time
}

func poolSize(limit, multiplier int) int {
	if multiplier <= 0 {
		multiplier = defaultPoolMultiple
	}
	return limit * multiplier
}

// rankCandidates sorts by score descending, id ascending, and truncates.
func rankCandidates(candidates []models.ScoredCandidate, limit int) []models.ScoredCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ContentID < candidates[j].ContentID
	})
	if limit >= 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func displayName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func joinNames(names []string) string {
	if len(names) > maxReasonTagNames {
		names = names[:maxReasonTagNames]
	}
	for i := range names {
		names[i] = displayName(names[i])
	}
	return strings.Join(names, ", ")
}

// ContentBasedFetcher finds items similar to a reference item.
type ContentBasedFetcher struct {
	content    ContentRepository
	popularity *PopularityScorer
	weights    config.ContentBasedConfig
	decayRate  float64
	multiplier int
	logger     *logrus.Logger
}

func NewContentBasedFetcher(
	content ContentRepository,
	popularity *PopularityScorer,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *ContentBasedFetcher {
	return &ContentBasedFetcher{
		content:    content,
		popularity: popularity,
		weights:    cfg.ContentBased,
		decayRate:  cfg.DecayRate,
		multiplier: cfg.PoolMultiplier,
		logger:     logger,
	}
}

func (f *ContentBasedFetcher) Strategy() models.Strategy {
	return models.StrategyContentBased
}

// Fetch returns nothing when the reference is absent or no longer published.
func (f *ContentBasedFetcher) Fetch(ctx context.Context, req *FetchRequest) ([]models.ScoredCandidate, error) {
	if req.ReferenceID == nil || req.Limit <= 0 {
		return nil, nil
	}

	reference, err := f.content.FindByID(ctx, *req.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference content: %w", err)
	}
	if reference == nil {
		f.logger.WithField("reference_id", *req.ReferenceID).Debug("Reference content not found")
		return nil, nil
	}

	refTags := reference.TagIDs()
	filter := models.ContentFilter{AnyTagIDs: refTags, OrderBy: models.OrderByRecency}
	if reference.CategoryID != nil {
		filter.CategoryIDs = []int64{*reference.CategoryID}
	}
	if len(filter.AnyTagIDs) == 0 && len(filter.CategoryIDs) == 0 {
		return nil, nil
	}

	exclude := append([]int64{reference.ID}, req.ExcludeIDs...)
	pool, err := f.content.FindPublished(ctx, filter, exclude, poolSize(req.Limit, f.multiplier))
	if err != nil {
		return nil, fmt.Errorf("failed to load similar content: %w", err)
	}

	candidates := make([]models.ScoredCandidate, 0, len(pool))
	for i := range pool {
		item := &pool[i]
		if item.ID == reference.ID {
			continue
		}

		sameCategory := 0.0
		if reference.CategoryID != nil && item.HasCategory(*reference.CategoryID) {
			sameCategory = 1
		}
		similarity := JaccardSimilarity(refTags, item.TagIDs())
		popularity := f.popularity.Score(item.Views, item.Likes, item.Comments)

		score := similarity*f.weights.TagWeight +
			sameCategory*f.weights.CategoryWeight +
			popularity*f.weights.PopularityWeight
		score *= TimeDecay(item.PublishedAt, req.Now, f.decayRate)

		candidates = append(candidates, models.ScoredCandidate{
			ContentID: item.ID,
			Score:     score,
			Reason:    contentReason(reference, item, sameCategory > 0),
			Strategy:  models.StrategyContentBased,
			Item:      item,
		})
	}

	return rankCandidates(candidates, req.Limit), nil
}

func contentReason(reference, item *models.ContentItem, sameCategory bool) string {
	if sameCategory {
		name := ""
		if item.Category != nil {
			name = item.Category.Name
		} else if reference.Category != nil {
			name = reference.Category.Name
		}
		if name != "" {
			return "same category: " + displayName(name)
		}
	}

	var shared []string
	for _, tag := range item.Tags {
		if _, ok := reference.TagName(tag.ID); ok {
			shared = append(shared, tag.Name)
		}
	}
	if len(shared) > 0 {
		return "similar tags: " + joinNames(shared)
	}
	return reasonRelated
}

// BehavioralFetcher nominates items matching the viewer's recent affinities.
type BehavioralFetcher struct {
	content    ContentRepository
	profiles   *PreferenceAggregator
	popularity *PopularityScorer
	weights    config.BehavioralConfig
	decayRate  float64
	multiplier int
	logger     *logrus.Logger
}

func NewBehavioralFetcher(
	content ContentRepository,
	profiles *PreferenceAggregator,
	popularity *PopularityScorer,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *BehavioralFetcher {
	return &BehavioralFetcher{
		content:    content,
		profiles:   profiles,
		popularity: popularity,
		weights:    cfg.Behavioral,
		decayRate:  cfg.DecayRate,
		multiplier: cfg.PoolMultiplier,
		logger:     logger,
	}
}

func (f *BehavioralFetcher) Strategy() models.Strategy {
	return models.StrategyBehavioral
}

// Fetch returns nothing for anonymous viewers and for viewers without
// recent history. No candidate query is issued in either case.
func (f *BehavioralFetcher) Fetch(ctx context.Context, req *FetchRequest) ([]models.ScoredCandidate, error) {
	if req.ViewerID == nil || req.Limit <= 0 {
		return nil, nil
	}

	profile, err := f.profiles.BuildProfile(ctx, *req.ViewerID)
	if err != nil {
		return nil, err
	}
	if profile.IsEmpty() {
		return nil, nil
	}

	filter := models.ContentFilter{
		AnyTagIDs:   profile.TagIDs(),
		CategoryIDs: profile.CategoryIDs(),
		OrderBy:     models.OrderByRecency,
	}
	pool, err := f.content.FindPublished(ctx, filter, req.ExcludeIDs, poolSize(req.Limit, f.multiplier))
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate content: %w", err)
	}

	candidates := make([]models.ScoredCandidate, 0, len(pool))
	for i := range pool {
		item := &pool[i]

		tagScore := 0.0
		var matched []models.WeightedID
		for _, tag := range item.Tags {
			if w, ok := profile.TagWeights[tag.ID]; ok {
				tagScore += w
				matched = append(matched, models.WeightedID{ID: tag.ID, Weight: w})
			}
		}

		categoryScore := 0.0
		categoryMatched := false
		if item.CategoryID != nil {
			if w, ok := profile.CategoryWeights[*item.CategoryID]; ok {
				categoryScore = w
				categoryMatched = true
			}
		}

		popularity := f.popularity.Score(item.Views, item.Likes, item.Comments)
		score := tagScore*f.weights.TagWeight +
			categoryScore*f.weights.CategoryWeight +
			popularity*f.weights.PopularityWeight
		score *= TimeDecay(item.PublishedAt, req.Now, f.decayRate)

		candidates = append(candidates, models.ScoredCandidate{
			ContentID: item.ID,
			Score:     score,
			Reason:    behavioralReason(item, categoryMatched, matched),
			Strategy:  models.StrategyBehavioral,
			Item:      item,
		})
	}

	return rankCandidates(candidates, req.Limit), nil
}

func behavioralReason(item *models.ContentItem, categoryMatched bool, matched []models.WeightedID) string {
	if categoryMatched && item.Category != nil {
		return "because you read " + displayName(item.Category.Name)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Weight != matched[j].Weight {
			return matched[i].Weight > matched[j].Weight
		}
		return matched[i].ID < matched[j].ID
	})
	names := make([]string, 0, len(matched))
	for _, m := range matched {
		if name, ok := item.TagName(m.ID); ok {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		return "matches your interests: " + joinNames(names)
	}
	return reasonRelated
}

// TrendingFetcher ranks recent content by raw engagement.
type TrendingFetcher struct {
	content    ContentRepository
	popularity *PopularityScorer
	windowDays int
	logger     *logrus.Logger
}

func NewTrendingFetcher(
	content ContentRepository,
	popularity *PopularityScorer,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *TrendingFetcher {
	return &TrendingFetcher{
		content:    content,
		popularity: popularity,
		windowDays: cfg.TrendingWindow,
		logger:     logger,
	}
}

func (f *TrendingFetcher) Strategy() models.Strategy {
	return models.StrategyTrending
}

// Fetch may return fewer than req.Limit items when little was published
// inside the window.
func (f *TrendingFetcher) Fetch(ctx context.Context, req *FetchRequest) ([]models.ScoredCandidate, error) {
	if req.Limit <= 0 {
		return nil, nil
	}

	since := req.Now.AddDate(0, 0, -f.windowDays)
	filter := models.ContentFilter{
		PublishedSince: &since,
		OrderBy:        models.OrderByEngagement,
	}
	pool, err := f.content.FindPublished(ctx, filter, req.ExcludeIDs, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load trending content: %w", err)
	}

	candidates := make([]models.ScoredCandidate, 0, len(pool))
	for i := range pool {
		item := &pool[i]
		candidates = append(candidates, models.ScoredCandidate{
			ContentID: item.ID,
			Score:     f.popularity.Score(item.Views, item.Likes, item.Comments),
			Reason:    reasonTrending,
			Strategy:  models.StrategyTrending,
			Item:      item,
		})
	}

	// Repository order (views, likes, recency) is authoritative here.
	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}
	return candidates, nil
}
