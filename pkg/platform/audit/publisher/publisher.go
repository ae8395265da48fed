// Package publisher fans ledger audit events out to a sink, either inline or
// through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	id "ecoprado/pkg/domain"
	audit "ecoprado/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit in async mode when the buffer has no room.
var ErrBufferFull = errors.New("audit buffer full")

// DefaultSinkTimeout bounds a single sink write so a stalled sink cannot block
// the drain goroutine or Close.
const DefaultSinkTimeout = 5 * time.Second

// ErrNotQueryable is returned by List when the sink cannot be read back.
var ErrNotQueryable = errors.New("audit sink does not support queries")

// Metrics counts publisher outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Emitted         prometheus.Counter
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
}

// NewMetrics registers publisher counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_audit_events_emitted_total",
			Help: "Total number of audit events persisted by the sink",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the buffer was full",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecoprado_audit_persist_failures_total",
			Help: "Total number of audit events the sink failed to persist",
		}),
	}
	reg.MustRegister(m.Emitted, m.Dropped, m.PersistFailures)
	return m
}

func (m *Metrics) incEmitted() {
	if m != nil {
		m.Emitted.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

// Publisher stamps events and hands them to a sink.
type Publisher struct {
	sink        audit.Sink
	sinkTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics

	buffer    chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue into a buffer of size n instead of
// writing inline.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithSinkTimeout overrides DefaultSinkTimeout.
func WithSinkTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.sinkTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, sinkTimeout: DefaultSinkTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit fills in the id, category, and timestamp when missing and forwards the
// event. In sync mode the sink error is returned; in async mode only a full
// buffer or a cancelled context is.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.buffer == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.metrics.incDropped()
	if p.logger != nil {
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"user_id", event.UserID,
		)
	}
	return ErrBufferFull
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	defer cancel()
	if err := p.sink.Append(ctx, event); err != nil {
		p.metrics.incPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit persistence failed",
				"action", event.Action,
				"user_id", event.UserID,
				"error", err,
			)
		}
		return err
	}
	p.metrics.incEmitted()
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		_ = p.persist(context.Background(), event)
	}
}

// List reads back a user's events when the sink is an audit.Store.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	store, ok := p.sink.(audit.Store)
	if !ok {
		return nil, ErrNotQueryable
	}
	return store.ListByUser(ctx, userID)
}

// Close stops accepting async events and waits until the buffer is drained.
// Emit must not be called after Close.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}
