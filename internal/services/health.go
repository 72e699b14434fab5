package services

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/database"
	"github.com/temcen/folio/pkg/models"
)

const healthCheckTimeout = 5 * time.Second

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

type HealthService struct {
	logger      *logrus.Logger
	critical    map[string]CheckFunc
	nonCritical map[string]CheckFunc
	// dependencies lists the checks each strategy needs to serve candidates.
	dependencies map[models.Strategy][]string

	healthCheckStatus *prometheus.GaugeVec
	lastHealthCheck   *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
	// Strategies reports whether each recommendation strategy can currently
	// reach the stores it reads.
	Strategies map[models.Strategy]string `json:"strategies,omitempty"`
	RequestID  string                     `json:"request_id,omitempty"`
}

func NewHealthService(logger *logrus.Logger, critical, nonCritical map[string]CheckFunc) *HealthService {
	if critical == nil {
		critical = map[string]CheckFunc{}
	}
	if nonCritical == nil {
		nonCritical = map[string]CheckFunc{}
	}
	hs := &HealthService{
		logger:       logger,
		critical:     critical,
		nonCritical:  nonCritical,
		dependencies: map[models.Strategy][]string{},
	}

	hs.healthCheckStatus = register(logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})).(*prometheus.GaugeVec)

	hs.lastHealthCheck = register(logger, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"})).(*prometheus.GaugeVec)

	return hs
}

// DatabaseChecks splits the configured stores into critical and
// non-critical checks. Only PostgreSQL is critical.
func DatabaseChecks(db *database.Database) (critical, nonCritical map[string]CheckFunc) {
	critical = map[string]CheckFunc{}
	nonCritical = map[string]CheckFunc{}

	if db.PG != nil {
		critical["postgresql"] = func(ctx context.Context) error { return db.PG.Ping(ctx) }
	}
	if db.Neo4j != nil {
		nonCritical["neo4j"] = func(ctx context.Context) error { return db.Neo4j.VerifyConnectivity(ctx) }
	}
	if db.Redis != nil && db.Redis.Hot != nil {
		nonCritical["redis_hot"] = func(ctx context.Context) error { return db.Redis.Hot.Ping(ctx).Err() }
	}
	if db.Redis != nil && db.Redis.Warm != nil {
		nonCritical["redis_warm"] = func(ctx context.Context) error { return db.Redis.Warm.Ping(ctx).Err() }
	}
	return critical, nonCritical
}

// AddCheck registers an extra check, e.g. the Kafka audit sink.
func (s *HealthService) AddCheck(name string, critical bool, check CheckFunc) {
	if critical {
		s.critical[name] = check
		return
	}
	s.nonCritical[name] = check
}

// RequireForStrategy records that strategy cannot serve while any of the
// named checks is failing.
func (s *HealthService) RequireForStrategy(strategy models.Strategy, checks ...string) {
	s.dependencies[strategy] = append(s.dependencies[strategy], checks...)
}

// CheckHealth reports healthy, degraded (a non-critical check failed) or
// unhealthy (a critical check failed).
func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for _, name := range sortedNames(s.critical) {
		if err := s.run(ctx, s.critical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	for _, name := range sortedNames(s.nonCritical) {
		if err := s.run(ctx, s.nonCritical[name]); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	if len(s.dependencies) > 0 {
		status.Strategies = make(map[models.Strategy]string, len(s.dependencies))
		for strategy, checks := range s.dependencies {
			status.Strategies[strategy] = "available"
			for _, name := range checks {
				if status.Services[name] == "unhealthy" {
					status.Strategies[strategy] = "unavailable"
					break
				}
			}
		}
	}

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	return status
}

func (s *HealthService) run(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return check(ctx)
}

func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}

func sortedNames(checks map[string]CheckFunc) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
