package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testRecommendationConfig() *config.RecommendationConfig {
	return &config.RecommendationConfig{
		DefaultLimit:   10,
		MaxLimit:       20,
		FetchTimeout:   time.Second,
		DecayRate:      0.1,
		PoolMultiplier: 3,
		TrendingWindow: 7,
		Popularity: config.PopularityConfig{
			ViewWeight: 0.5, LikeWeight: 0.3, CommentWeight: 0.2,
			ViewRef: 10000, LikeRef: 1000, CommentRef: 100,
		},
		ContentBased: config.ContentBasedConfig{TagWeight: 0.6, CategoryWeight: 0.3, PopularityWeight: 0.1},
		Behavioral:   config.BehavioralConfig{TagWeight: 0.1, CategoryWeight: 0.15, PopularityWeight: 0.2},
		Profile: config.ProfileConfig{
			WindowDays: 30, MaxViews: 50, MaxLikes: 20, MaxFavorites: 20,
			TopTags: 5, TopCategories: 3,
		},
		Blend: config.BlendConfig{ContentBased: 1.0, Behavioral: 1.0, Trending: 0.6},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func tag(id int64, name string) models.Tag {
	return models.Tag{ID: id, Name: name, Slug: name}
}

func item(id int64, categoryID int64, categoryName string, published time.Time, tags ...models.Tag) models.ContentItem {
	ci := models.ContentItem{
		ID:          id,
		Title:       "post",
		Slug:        "post",
		Tags:        tags,
		PublishedAt: published,
		Author:      models.Author{ID: 1, DisplayName: "author"},
	}
	if categoryID > 0 {
		ci.CategoryID = int64Ptr(categoryID)
		ci.Category = &models.Category{ID: categoryID, Name: categoryName, Slug: categoryName}
	}
	return ci
}

// fakeContentRepo applies ContentFilter the way the SQL repository does.
type fakeContentRepo struct {
	mu    sync.Mutex
	items []models.ContentItem
	err   error

	findPublishedCalls int
	findByIDsCalls     [][]int64
	lastFilter         models.ContentFilter
}

func (r *fakeContentRepo) FindPublished(ctx context.Context, filter models.ContentFilter, excludeIDs []int64, limit int) ([]models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findPublishedCalls++
	r.lastFilter = filter
	if r.err != nil {
		return nil, r.err
	}

	excluded := make(map[int64]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	var out []models.ContentItem
	for _, it := range r.items {
		if excluded[it.ID] {
			continue
		}
		if filter.PublishedSince != nil && it.PublishedAt.Before(*filter.PublishedSince) {
			continue
		}
		if len(filter.AnyTagIDs) > 0 || len(filter.CategoryIDs) > 0 {
			if !matchesAny(it, filter) {
				continue
			}
		}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if filter.OrderBy == models.OrderByEngagement {
			if out[i].Views != out[j].Views {
				return out[i].Views > out[j].Views
			}
			if out[i].Likes != out[j].Likes {
				return out[i].Likes > out[j].Likes
			}
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesAny(it models.ContentItem, filter models.ContentFilter) bool {
	for _, want := range filter.AnyTagIDs {
		if _, ok := it.TagName(want); ok {
			return true
		}
	}
	for _, c := range filter.CategoryIDs {
		if it.HasCategory(c) {
			return true
		}
	}
	return false
}

func (r *fakeContentRepo) FindByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for i := range r.items {
		if r.items[i].ID == id {
			it := r.items[i]
			return &it, nil
		}
	}
	return nil, nil
}

func (r *fakeContentRepo) FindByIDs(ctx context.Context, ids []int64) ([]models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findByIDsCalls = append(r.findByIDsCalls, append([]int64(nil), ids...))
	if r.err != nil {
		return nil, r.err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.ContentItem
	for _, it := range r.items {
		if want[it.ID] {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeInteractionRepo struct {
	mu     sync.Mutex
	events map[models.InteractionKind][]models.InteractionEvent
	err    error
	calls  int
}

func (r *fakeInteractionRepo) RecentEvents(ctx context.Context, viewerID int64, kind models.InteractionKind, windowDays, maxCount int) ([]models.InteractionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	var out []models.InteractionEvent
	for _, e := range r.events[kind] {
		if e.ViewerID == viewerID {
			out = append(out, e)
		}
	}
	if len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}

func event(viewerID, contentID int64, kind models.InteractionKind) models.InteractionEvent {
	return models.InteractionEvent{ViewerID: viewerID, ContentID: contentID, Kind: kind, OccurredAt: testNow}
}

// stubFetcher returns a fixed nomination list, or one generated from the
// requested limit when gen is set.
type stubFetcher struct {
	strategy   models.Strategy
	candidates []models.ScoredCandidate
	gen        func(req *FetchRequest) []models.ScoredCandidate
	err        error
	block      <-chan struct{}
	// waitCtx makes Fetch return ctx.Err() once the fetch deadline passes.
	waitCtx bool

	mu    sync.Mutex
	calls []*FetchRequest
}

func (f *stubFetcher) Strategy() models.Strategy { return f.strategy }

func (f *stubFetcher) Fetch(ctx context.Context, req *FetchRequest) ([]models.ScoredCandidate, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.gen != nil {
		return f.gen(req), nil
	}
	return f.candidates, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func nominations(strategy models.Strategy, scores map[int64]float64) []models.ScoredCandidate {
	out := make([]models.ScoredCandidate, 0, len(scores))
	for id, score := range scores {
		out = append(out, models.ScoredCandidate{ContentID: id, Score: score, Reason: "stub", Strategy: strategy})
	}
	return out
}

type recordingLogger struct {
	mu      sync.Mutex
	batches [][]models.AuditEntry
}

func (l *recordingLogger) Log(entries []models.AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, entries)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	calls   int
	err     error
	block   chan struct{}
}

func (s *recordingSink) Record(ctx context.Context, entries []models.AuditEntry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *recordingSink) snapshot() (int, []models.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]models.AuditEntry(nil), s.entries...)
}
