package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

const defaultFetchTimeout = 1500 * time.Millisecond

// dispatchOrder fixes the iteration order of strategies so that ties and the
// algorithms list are deterministic.
var dispatchOrder = []models.Strategy{
	models.StrategyContentBased,
	models.StrategyBehavioral,
	models.StrategyTrending,
}

// fetchTask is one fetcher invocation planned for a request.
type fetchTask struct {
	fetcher CandidateFetcher
	limit   int
}

// fetchResult is what a fetcher goroutine reports back.
type fetchResult struct {
	strategy   models.Strategy
	candidates []models.ScoredCandidate
	latency    time.Duration
	err        error
}

// RecommendationEngine dispatches the strategy fetchers for a request,
// blends their nominations into one ranked list and hands the impressions to
// the audit logger.
type RecommendationEngine struct {
	fetchers     map[models.Strategy]CandidateFetcher
	audit        ImpressionLogger
	blend        map[models.Strategy]float64
	fetchTimeout time.Duration
	maxLimit     int
	metrics      *Metrics
	logger       *logrus.Logger
	now          func() time.Time
}

func NewRecommendationEngine(
	fetchers []CandidateFetcher,
	audit ImpressionLogger,
	cfg *config.RecommendationConfig,
	metrics *Metrics,
	logger *logrus.Logger,
) *RecommendationEngine {
	byStrategy := make(map[models.Strategy]CandidateFetcher, len(fetchers))
	for _, f := range fetchers {
		byStrategy[f.Strategy()] = f
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = models.MaxLimit
	}

	return &RecommendationEngine{
		fetchers: byStrategy,
		audit:    audit,
		blend: map[models.Strategy]float64{
			models.StrategyContentBased: cfg.Blend.ContentBased,
			models.StrategyBehavioral:   cfg.Blend.Behavioral,
			models.StrategyTrending:     cfg.Blend.Trending,
		},
		fetchTimeout: timeout,
		maxLimit:     maxLimit,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Validate rejects requests the engine cannot serve. It runs before any
// fetcher is dispatched.
func (e *RecommendationEngine) Validate(req *models.RecommendationRequest) error {
	if _, err := models.ParseMode(string(req.Mode)); err != nil || req.Mode == "" {
		return fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}
	if req.Limit < models.MinLimit || req.Limit > e.maxLimit {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrLimitOutOfRange, req.Limit, models.MinLimit, e.maxLimit)
	}
	if req.ReferenceContentID != nil && *req.ReferenceContentID <= 0 {
		return &InvalidIdentifierError{Field: "reference_id", ID: *req.ReferenceContentID}
	}
	if req.ViewerID != nil && *req.ViewerID <= 0 {
		return &InvalidIdentifierError{Field: "viewer_id", ID: *req.ViewerID}
	}
	for i, id := range req.ExcludeIDs {
		if id <= 0 {
			return &InvalidIdentifierError{Field: fmt.Sprintf("exclude_ids[%d]", i), ID: id}
		}
	}
	return nil
}

// Recommend returns at most req.Limit distinct items, best first.
func (e *RecommendationEngine) Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResponse, error) {
	startTime := time.Now()

	if err := e.Validate(req); err != nil {
		return nil, err
	}

	now := e.now()
	requestID := uuid.NewString()
	logger := e.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"mode":       req.Mode,
		"limit":      req.Limit,
	})

	tasks := e.plan(req)
	if len(tasks) == 0 {
		logger.Debug("No strategy applicable to request")
		e.metrics.observeRequest(string(req.Mode), "empty", time.Since(startTime).Seconds())
		return e.response(requestID, req.Mode, nil, now), nil
	}

	results, err := e.dispatch(ctx, req, tasks, now, logger)
	if err != nil {
		e.metrics.observeRequest(string(req.Mode), "error", time.Since(startTime).Seconds())
		return nil, err
	}

	ranked := e.rank(results, req.ExcludeIDs, req.Limit)
	resp := e.response(requestID, req.Mode, ranked, now)

	e.logImpressions(requestID, req.ViewerID, ranked, now)

	e.metrics.observeRequest(string(req.Mode), "ok", time.Since(startTime).Seconds())
	logger.WithFields(logrus.Fields{
		"count":      len(resp.Items),
		"algorithms": resp.Algorithms,
		"latency":    time.Since(startTime),
	}).Info("Recommendations generated")

	return resp, nil
}

// plan decides which fetchers run and how many candidates each may nominate.
func (e *RecommendationEngine) plan(req *models.RecommendationRequest) []fetchTask {
	var tasks []fetchTask
	add := func(strategy models.Strategy, limit int) {
		if f, ok := e.fetchers[strategy]; ok && limit > 0 {
			tasks = append(tasks, fetchTask{fetcher: f, limit: limit})
		}
	}

	switch req.Mode {
	case models.ModeContent:
		if req.ReferenceContentID != nil {
			add(models.StrategyContentBased, req.Limit)
		}
	case models.ModeBehavioral:
		if req.ViewerID != nil {
			add(models.StrategyBehavioral, req.Limit)
		}
	case models.ModeTrending:
		add(models.StrategyTrending, req.Limit)
	case models.ModeHybrid:
		half := ceilDiv(req.Limit, 2)
		if req.ReferenceContentID != nil {
			add(models.StrategyContentBased, half)
		}
		if req.ViewerID != nil {
			add(models.StrategyBehavioral, half)
		}
		add(models.StrategyTrending, ceilDiv(req.Limit, 3))
	}
	return tasks
}

// dispatch runs every task concurrently and collects what completes before
// the fetch deadline. Fetchers still running at the deadline are abandoned;
// their results land in the buffered channel and are discarded.
func (e *RecommendationEngine) dispatch(
	ctx context.Context,
	req *models.RecommendationRequest,
	tasks []fetchTask,
	now time.Time,
	logger *logrus.Entry,
) ([]fetchResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	resultsCh := make(chan fetchResult, len(tasks))
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(t fetchTask) {
			defer wg.Done()

			fetchReq := &FetchRequest{
				ReferenceID: req.ReferenceContentID,
				ViewerID:    req.ViewerID,
				Limit:       t.limit,
				ExcludeIDs:  req.ExcludeIDs,
				Now:         now,
			}
			started := time.Now()
			candidates, err := t.fetcher.Fetch(fetchCtx, fetchReq)
			resultsCh <- fetchResult{
				strategy:   t.fetcher.Strategy(),
				candidates: candidates,
				latency:    time.Since(started),
				err:        err,
			}
		}(task)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	completed := make([]fetchResult, 0, len(tasks))
	reported := make(map[models.Strategy]bool, len(tasks))
	failures := 0

await:
	for {
		select {
		case r, ok := <-resultsCh:
			if !ok {
				break await
			}
			reported[r.strategy] = true
			if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && fetchCtx.Err() != nil {
				e.metrics.fetcherTimedOut(string(r.strategy))
				logger.WithField("strategy", r.strategy).Warn("Candidate fetcher did not finish before deadline")
				continue
			}
			e.metrics.observeFetcher(string(r.strategy), r.latency.Seconds(), r.err)
			if r.err != nil {
				failures++
				logger.WithError(r.err).WithFields(logrus.Fields{
					"strategy": r.strategy,
					"latency":  r.latency,
				}).Warn("Candidate fetcher failed")
				continue
			}
			logger.WithFields(logrus.Fields{
				"strategy": r.strategy,
				"items":    len(r.candidates),
				"latency":  r.latency,
			}).Debug("Candidate fetcher completed")
			completed = append(completed, r)

		case <-fetchCtx.Done():
			for _, t := range tasks {
				if s := t.fetcher.Strategy(); !reported[s] {
					e.metrics.fetcherTimedOut(string(s))
					logger.WithField("strategy", s).Warn("Candidate fetcher did not finish before deadline")
				}
			}
			break await
		}
	}

	if len(completed) == 0 && failures > 0 {
		return nil, fmt.Errorf("%d of %d strategies failed: %w", failures, len(tasks), ErrStorageUnavailable)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Debug("Caller cancelled request, returning partial results")
	}
	return completed, nil
}

// rank applies blend weights, drops excluded ids, keeps the best nomination
// per id and returns at most limit candidates ordered by score then id.
func (e *RecommendationEngine) rank(results []fetchResult, excludeIDs []int64, limit int) []models.ScoredCandidate {
	excluded := make(map[int64]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return strategyRank(results[i].strategy) < strategyRank(results[j].strategy)
	})

	best := make(map[int64]models.ScoredCandidate)
	for _, r := range results {
		weight, ok := e.blend[r.strategy]
		if !ok {
			weight = 1
		}
		for _, c := range r.candidates {
			if _, skip := excluded[c.ContentID]; skip {
				continue
			}
			c.Score *= weight
			if prev, seen := best[c.ContentID]; !seen || c.Score > prev.Score {
				best[c.ContentID] = c
			}
		}
	}

	merged := make([]models.ScoredCandidate, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	return rankCandidates(merged, limit)
}

func (e *RecommendationEngine) response(requestID string, mode models.Mode, ranked []models.ScoredCandidate, now time.Time) *models.RecommendationResponse {
	items := make([]models.RecommendationItem, 0, len(ranked))
	present := make(map[models.Strategy]bool)
	for _, c := range ranked {
		items = append(items, models.NewRecommendationItem(c))
		present[c.Strategy] = true
	}

	algorithms := make([]models.Strategy, 0, len(present))
	for _, s := range dispatchOrder {
		if present[s] {
			algorithms = append(algorithms, s)
		}
	}

	return &models.RecommendationResponse{
		RequestID:   requestID,
		Mode:        mode,
		Items:       items,
		Algorithms:  algorithms,
		GeneratedAt: now,
	}
}

func (e *RecommendationEngine) logImpressions(requestID string, viewerID *int64, ranked []models.ScoredCandidate, now time.Time) {
	if e.audit == nil || len(ranked) == 0 {
		return
	}
	entries := make([]models.AuditEntry, 0, len(ranked))
	for i, c := range ranked {
		entries = append(entries, models.AuditEntry{
			RequestID: requestID,
			ViewerID:  viewerID,
			ContentID: c.ContentID,
			Strategy:  c.Strategy,
			Score:     c.Score,
			Position:  i + 1,
			ShownAt:   now,
		})
	}
	e.audit.Log(entries)
}

func strategyRank(s models.Strategy) int {
	for i, candidate := range dispatchOrder {
		if candidate == s {
			return i
		}
	}
	return len(dispatchOrder)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
