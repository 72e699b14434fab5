package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

const (
	defaultAuditBuffer   = 1000
	defaultAuditBatch    = 100
	defaultAuditFlush    = 5 * time.Second
	defaultAuditTimeout  = 5 * time.Second
	defaultTripThreshold = 5
)

// AuditLogger persists impression batches off the request path. Log never
// blocks; when the buffer is full the batch is dropped and counted.
type AuditLogger struct {
	sink          AuditSink
	sinkName      string
	buffer        chan []models.AuditEntry
	batchSize     int
	flushInterval time.Duration
	writeTimeout  time.Duration
	breaker       *gobreaker.CircuitBreaker[interface{}]
	metrics       *Metrics
	logger        *logrus.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAuditLogger(sink AuditSink, sinkName string, cfg config.AuditConfig, metrics *Metrics, logger *logrus.Logger) *AuditLogger {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultAuditBuffer
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultAuditBatch
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultAuditFlush
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultAuditTimeout
	}
	threshold := cfg.Breaker.ConsecutiveFailures
	if threshold == 0 {
		threshold = defaultTripThreshold
	}

	al := &AuditLogger{
		sink:          sink,
		sinkName:      sinkName,
		buffer:        make(chan []models.AuditEntry, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		writeTimeout:  writeTimeout,
		metrics:       metrics,
		logger:        logger,
		done:          make(chan struct{}),
	}

	al.breaker = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "audit-" + sinkName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Audit sink circuit breaker changed state")
			metrics.setBreakerState(sinkName, float64(to))
		},
	})
	metrics.setBreakerState(sinkName, float64(gobreaker.StateClosed))

	go al.run()

	return al
}

// Log enqueues one request's impressions.
func (al *AuditLogger) Log(entries []models.AuditEntry) {
	if len(entries) == 0 {
		return
	}

	al.mu.RLock()
	defer al.mu.RUnlock()

	if al.closed {
		al.metrics.auditOutcome("dropped", len(entries))
		return
	}

	select {
	case al.buffer <- entries:
	default:
		al.metrics.auditOutcome("dropped", len(entries))
		al.logger.WithFields(logrus.Fields{
			"request_id": entries[0].RequestID,
			"entries":    len(entries),
		}).Warn("Audit buffer full, dropping impressions")
	}
}

// Close stops accepting entries and waits until buffered ones are flushed
// or ctx expires.
func (al *AuditLogger) Close(ctx context.Context) error {
	al.mu.Lock()
	if !al.closed {
		al.closed = true
		close(al.buffer)
	}
	al.mu.Unlock()

	select {
	case <-al.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (al *AuditLogger) run() {
	defer close(al.done)

	ticker := time.NewTicker(al.flushInterval)
	defer ticker.Stop()

	pending := make([]models.AuditEntry, 0, al.batchSize)

	for {
		select {
		case entries, ok := <-al.buffer:
			if !ok {
				al.flush(pending)
				return
			}
			pending = append(pending, entries...)
			if len(pending) >= al.batchSize {
				al.flush(pending)
				pending = make([]models.AuditEntry, 0, al.batchSize)
			}

		case <-ticker.C:
			if len(pending) > 0 {
				al.flush(pending)
				pending = make([]models.AuditEntry, 0, al.batchSize)
			}
		}
	}
}

func (al *AuditLogger) flush(entries []models.AuditEntry) {
	if len(entries) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), al.writeTimeout)
	defer cancel()

	_, err := al.breaker.Execute(func() (interface{}, error) {
		return nil, al.sink.Record(ctx, entries)
	})
	if err != nil {
		al.metrics.auditOutcome("failed", len(entries))
		al.logger.WithError(err).WithFields(logrus.Fields{
			"sink":    al.sinkName,
			"entries": len(entries),
		}).Warn("Failed to write impression audit batch")
		return
	}

	al.metrics.auditOutcome("written", len(entries))
	al.logger.WithFields(logrus.Fields{
		"sink":    al.sinkName,
		"entries": len(entries),
	}).Debug("Impression audit batch written")
}
