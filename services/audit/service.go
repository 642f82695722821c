package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/services"
	"go.uber.org/zap"
)

const insertTimeout = 5 * time.Second

var (
	// ErrNotStarted is returned when events are sent before Start
	ErrNotStarted = errors.New("audit service not started")

	// ErrBufferFull is returned when the event buffer has no room
	ErrBufferFull = errors.New("audit event buffer full")

	// ErrDisabled is returned by queries when no repository is configured
	ErrDisabled = services.ErrAuditDisabled
)

// AuditService records dispatch events asynchronously. Without a repository
// events are only logged.
type AuditService struct {
	repo        repositories.DispatchEventRepository
	logger      *zap.Logger
	eventChan   chan *models.DispatchEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance. repo may be nil.
func NewAuditService(repo repositories.DispatchEventRepository, logger *zap.Logger, config Config) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}

	return &AuditService{
		repo:        repo,
		logger:      logger,
		eventChan:   make(chan *models.DispatchEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Enabled reports whether events are persisted
func (s *AuditService) Enabled() bool {
	return s.repo != nil
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	if s.repo != nil {
		for i := 0; i < s.workerCount; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Bool("persistent", s.repo != nil),
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop waits for pending events to be written, up to timeout
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. The event is dropped when the
// buffer is full.
func (s *AuditService) LogEvent(event *models.DispatchEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}
	if s.repo == nil {
		return nil
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("dispatch_id", event.DispatchID),
			zap.String("kind", string(event.Kind)))
		return ErrBufferFull
	}
}

// RecordFailure records a failed candidate
func (s *AuditService) RecordFailure(ctx context.Context, dispatchID string, attempt int, model, message string) {
	event := models.NewDispatchEvent(dispatchID, models.DispatchEventAttemptFailed, model, attempt).
		WithMessage(message)
	s.record(event)
}

// RecordFallback records a success on a candidate other than the first
func (s *AuditService) RecordFallback(ctx context.Context, dispatchID string, attempt int, fromModel, toModel string) {
	event := models.NewDispatchEvent(dispatchID, models.DispatchEventFallbackSucceeded, toModel, attempt).
		WithFromModel(fromModel)
	s.record(event)
}

// RecordExhausted records that every candidate failed
func (s *AuditService) RecordExhausted(ctx context.Context, dispatchID string, attempts int, summary string) {
	event := models.NewDispatchEvent(dispatchID, models.DispatchEventExhausted, "", attempts).
		WithMessage(summary)
	s.record(event)
}

// ListByDispatch returns the recorded events of one dispatch
func (s *AuditService) ListByDispatch(ctx context.Context, dispatchID string) ([]*models.DispatchEvent, error) {
	if s.repo == nil {
		return nil, ErrDisabled
	}
	events, err := s.repo.ListByDispatch(ctx, dispatchID)
	if err != nil {
		return nil, services.WrapInternal("failed to list dispatch events", err)
	}
	return events, nil
}

// ListRecent returns the most recent events
func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]*models.DispatchEvent, error) {
	if s.repo == nil {
		return nil, ErrDisabled
	}
	events, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, services.WrapInternal("failed to list recent dispatch events", err)
	}
	return events, nil
}

// Cleanup removes persisted events older than retention
func (s *AuditService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, ErrDisabled
	}

	cutoffTime := time.Now().Add(-retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoffTime)
	if err != nil {
		return 0, services.WrapInternal("failed to clean up dispatch events", err)
	}

	s.logger.Info("cleaned up old dispatch events",
		zap.Int64("rows_deleted", deleted),
		zap.Time("cutoff_time", cutoffTime))
	return deleted, nil
}

// StartRetentionWorker periodically removes events older than retention until
// ctx is cancelled. It blocks; run it in its own goroutine.
func (s *AuditService) StartRetentionWorker(ctx context.Context, interval, retention time.Duration) {
	if s.repo == nil || interval <= 0 || retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started dispatch event retention worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.Cleanup(ctx, retention); err != nil {
				s.logger.Error("failed to clean up dispatch events", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping dispatch event retention worker")
			return
		}
	}
}

func (s *AuditService) record(event *models.DispatchEvent) {
	s.logger.Debug("dispatch event",
		zap.String("dispatch_id", event.DispatchID),
		zap.String("kind", string(event.Kind)),
		zap.String("model", event.Model),
		zap.Int("attempt", event.Attempt))

	if err := s.LogEvent(event); err != nil && !errors.Is(err, ErrBufferFull) {
		s.logger.Debug("dispatch event not queued", zap.Error(err))
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("dispatch_id", event.DispatchID),
				zap.String("kind", string(event.Kind)))
		}
	}
}

// processEvent writes a single event with its own timeout
func (s *AuditService) processEvent(event *models.DispatchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	return s.repo.Insert(ctx, event)
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Persistent:    s.repo != nil,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int  `json:"buffer_size"`
	PendingEvents int  `json:"pending_events"`
	WorkerCount   int  `json:"worker_count"`
	Started       bool `json:"started"`
	Persistent    bool `json:"persistent"`
}
