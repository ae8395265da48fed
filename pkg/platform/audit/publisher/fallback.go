package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "ecoprado/pkg/domain"
	audit "ecoprado/pkg/platform/audit"
	"ecoprado/pkg/platform/circuit"
)

const (
	defaultPrimaryTimeout = 2 * time.Second
	defaultRetryInterval  = 10 * time.Second
)

// FallbackSink delivers to a primary sink and diverts to a secondary one when
// the primary fails. While the breaker is open events go straight to the
// secondary, and the primary is retried with a single event once per retry
// interval. A successful retry lets the next event try the primary too, so
// the breaker can collect enough successes to close.
type FallbackSink struct {
	primary        audit.Sink
	secondary      audit.Sink
	breaker        *circuit.Breaker
	logger         *slog.Logger
	primaryTimeout time.Duration
	retryInterval  time.Duration
	now            func() time.Time

	mu        sync.Mutex
	nextRetry time.Time
}

type FallbackOption func(*FallbackSink)

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(s *FallbackSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPrimaryTimeout bounds each primary write.
func WithPrimaryTimeout(d time.Duration) FallbackOption {
	return func(s *FallbackSink) {
		if d > 0 {
			s.primaryTimeout = d
		}
	}
}

// WithRetryInterval sets how long an open breaker keeps the primary untouched.
func WithRetryInterval(d time.Duration) FallbackOption {
	return func(s *FallbackSink) {
		if d > 0 {
			s.retryInterval = d
		}
	}
}

func NewFallbackSink(primary, secondary audit.Sink, breaker *circuit.Breaker, opts ...FallbackOption) *FallbackSink {
	s := &FallbackSink{
		primary:        primary,
		secondary:      secondary,
		breaker:        breaker,
		logger:         slog.New(slog.DiscardHandler),
		primaryTimeout: defaultPrimaryTimeout,
		retryInterval:  defaultRetryInterval,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FallbackSink) Append(ctx context.Context, event audit.Event) error {
	if s.breaker.IsOpen() && !s.claimRetry() {
		return s.secondary.Append(ctx, event)
	}

	primaryCtx, cancel := context.WithTimeout(ctx, s.primaryTimeout)
	primaryErr := s.primary.Append(primaryCtx, event)
	cancel()
	if primaryErr == nil {
		usePrimary, change := s.breaker.RecordSuccess()
		if !usePrimary {
			s.setNextRetry(time.Time{})
		}
		if change.Closed {
			s.logger.InfoContext(ctx, "audit primary sink recovered", "breaker", s.breaker.Name())
		}
		return nil
	}

	useFallback, change := s.breaker.RecordFailure()
	if useFallback {
		s.setNextRetry(s.now().Add(s.retryInterval))
	}
	if change.Opened {
		s.logger.WarnContext(ctx, "audit primary sink failing, using fallback",
			"breaker", s.breaker.Name(),
			"error", primaryErr,
		)
	}
	if err := s.secondary.Append(ctx, event); err != nil {
		return errors.Join(primaryErr, err)
	}
	return nil
}

// claimRetry reports whether this call may try the primary. Only one caller
// wins each retry slot.
func (s *FallbackSink) claimRetry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Before(s.nextRetry) {
		return false
	}
	s.nextRetry = now.Add(s.retryInterval)
	return true
}

func (s *FallbackSink) setNextRetry(t time.Time) {
	s.mu.Lock()
	s.nextRetry = t
	s.mu.Unlock()
}

// ListByUser reads from the secondary when it is queryable. Events the primary
// accepted are not visible here.
func (s *FallbackSink) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	store, ok := s.secondary.(audit.Store)
	if !ok {
		return nil, ErrNotQueryable
	}
	return store.ListByUser(ctx, userID)
}
