package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/internal/database"
	"github.com/temcen/folio/internal/messaging"
	"github.com/temcen/folio/internal/repository"
	"github.com/temcen/folio/pkg/models"
)

const (
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"

	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
)

type Services struct {
	Auth        *AuthService
	Health      *HealthService
	RateLimit   *RateLimitService
	Metrics     *Metrics
	Engine      *RecommendationEngine
	AuditLogger *AuditLogger

	publisher *messaging.ImpressionPublisher
	logger    *logrus.Logger
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	metrics := NewMetrics(logger)
	authService := NewAuthService(cfg, logger)
	rateLimitService := NewRateLimitService(cfg.Auth.RateLimit, logger, db.Redis.Hot)
	critical, nonCritical := DatabaseChecks(db)
	healthService := NewHealthService(logger, critical, nonCritical)

	contentRepo := repository.NewCachedContentRepository(
		repository.NewContentRepository(db.PG, logger),
		db.Redis.Warm, cfg.Recommendation.Caching.ItemTTL, logger,
	)

	interactionRepo, err := newInteractionRepository(cfg, logger, db)
	if err != nil {
		return nil, err
	}

	healthService.RequireForStrategy(models.StrategyContentBased, "postgresql")
	healthService.RequireForStrategy(models.StrategyTrending, "postgresql")
	healthService.RequireForStrategy(models.StrategyBehavioral, "postgresql")
	if cfg.Interactions.Backend == BackendNeo4j {
		healthService.RequireForStrategy(models.StrategyBehavioral, "neo4j")
	}

	s := &Services{
		Auth:      authService,
		Health:    healthService,
		RateLimit: rateLimitService,
		Metrics:   metrics,
		logger:    logger,
	}

	var audit ImpressionLogger
	if cfg.Audit.Enabled {
		sink, sinkName, err := s.newAuditSink(cfg, db)
		if err != nil {
			return nil, err
		}
		s.AuditLogger = NewAuditLogger(sink, sinkName, cfg.Audit, metrics, logger)
		audit = s.AuditLogger
	}

	recCfg := &cfg.Recommendation
	popularity := NewPopularityScorer(recCfg.Popularity)
	aggregator := NewPreferenceAggregator(interactionRepo, contentRepo, recCfg.Profile, logger)

	fetchers := []CandidateFetcher{
		NewContentBasedFetcher(contentRepo, popularity, recCfg, logger),
		NewBehavioralFetcher(contentRepo, aggregator, popularity, recCfg, logger),
		NewTrendingFetcher(contentRepo, popularity, recCfg, logger),
	}
	s.Engine = NewRecommendationEngine(fetchers, audit, recCfg, metrics, logger)

	return s, nil
}

func newInteractionRepository(cfg *config.Config, logger *logrus.Logger, db *database.Database) (InteractionRepository, error) {
	switch cfg.Interactions.Backend {
	case "", BackendPostgres:
		return repository.NewInteractionRepository(db.PG, logger), nil
	case BackendNeo4j:
		if db.Neo4j == nil {
			return nil, fmt.Errorf("interactions backend %q requires neo4j.url", BackendNeo4j)
		}
		return repository.NewGraphInteractionRepository(db.Neo4j, cfg.Neo4j.Database, logger), nil
	default:
		return nil, fmt.Errorf("unknown interactions backend %q", cfg.Interactions.Backend)
	}
}

// newAuditSink returns the configured sink and its canonical name.
func (s *Services) newAuditSink(cfg *config.Config, db *database.Database) (AuditSink, string, error) {
	switch auditSinkName(cfg.Audit.Sink) {
	case SinkPostgres:
		return repository.NewAuditSink(db.PG, s.logger), SinkPostgres, nil
	case SinkKafka:
		publisher, err := messaging.NewImpressionPublisher(cfg, s.logger)
		if err != nil {
			return nil, "", err
		}
		s.publisher = publisher
		s.Health.AddCheck("kafka", false, publisher.Ping)
		return publisher, SinkKafka, nil
	default:
		return nil, "", fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}

func auditSinkName(configured string) string {
	if configured == "" {
		return SinkPostgres
	}
	return configured
}

// Close drains the audit logger before releasing the Kafka writer.
func (s *Services) Close(ctx context.Context) error {
	if s.AuditLogger != nil {
		if err := s.AuditLogger.Close(ctx); err != nil {
			s.logger.WithError(err).Warn("Audit logger did not drain before shutdown")
		}
	}
	if s.publisher != nil {
		return s.publisher.Close()
	}
	return nil
}
