// Package engine is the public surface of the ledger. Every operation runs in
// exactly one storage transaction: it loads the instance state, drives the
// ledger components, commits the state keys it changed, and only after the
// commit succeeds emits audit events.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ecoprado/internal/actions"
	"ecoprado/internal/identity"
	"ecoprado/internal/ledger"
	"ecoprado/internal/platform/authz"
	"ecoprado/internal/platform/metrics"
	"ecoprado/internal/redemption"
	"ecoprado/internal/storage"
	"ecoprado/internal/token"
	"ecoprado/internal/verification"
	dErrors "ecoprado/pkg/domain-errors"
	audit "ecoprado/pkg/platform/audit"
	"ecoprado/pkg/platform/sentinel"
	"ecoprado/pkg/requestcontext"
)

const tracerName = "ecoprado/internal/engine"

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Engine runs ledger operations against a transactional store.
type Engine struct {
	tx          storage.Tx
	registry    *identity.Registry
	verifier    *verification.Service
	actions     *actions.Ledger
	tokens      *token.Ledger
	redemptions *redemption.Ledger

	rewardMode      actions.RewardMode
	duplicatePolicy identity.DuplicatePolicy

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// WithRewardMode selects whether reported actions also mint tokens.
func WithRewardMode(mode actions.RewardMode) Option {
	return func(e *Engine) {
		e.rewardMode = mode
	}
}

// WithDuplicatePolicy controls re-registration of an existing user id.
func WithDuplicatePolicy(p identity.DuplicatePolicy) Option {
	return func(e *Engine) {
		e.duplicatePolicy = p
	}
}

// New wires the ledger components over tx. auth decides every signature check.
func New(tx storage.Tx, auth authz.Authorizer, opts ...Option) *Engine {
	e := &Engine{
		tx:              tx,
		rewardMode:      actions.RewardModeAccount,
		duplicatePolicy: identity.OverwriteDuplicates,
		logger:          slog.New(slog.DiscardHandler),
		tracer:          otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = identity.NewRegistry(identity.WithDuplicatePolicy(e.duplicatePolicy))
	e.verifier = verification.New(e.registry)
	e.redemptions = redemption.NewLedger()
	e.tokens = token.NewLedger(auth, e.redemptions)

	var coordinatorOpts []actions.CoordinatorOption
	if e.rewardMode == actions.RewardModeToken {
		coordinatorOpts = append(coordinatorOpts, actions.WithTokenRewards(e.tokens))
	}
	e.actions = actions.NewLedger(actions.NewCoordinator(e.registry, coordinatorOpts...))
	return e
}

// txn is the per-transaction view handed to operation bodies.
type txn struct {
	store  storage.Store
	state  *ledger.State
	events []audit.Event
}

// record queues an audit event for emission after commit.
func (t *txn) record(event audit.Event) {
	t.events = append(t.events, event)
}

// run executes fn in one transaction and publishes the queued events once the
// transaction has committed.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, t *txn) error) error {
	ctx, span := e.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attribute.String("ledger.operation", op)))
	defer span.End()

	start := time.Now()
	var committed *txn
	err := e.tx.RunInTx(ctx, func(st storage.Store) error {
		state, err := ledger.Load(ctx, st)
		if err != nil {
			return err
		}
		t := &txn{store: st, state: state}
		if err := fn(ctx, t); err != nil {
			return err
		}
		if err := state.Commit(ctx, st); err != nil {
			return err
		}
		committed = t
		return nil
	})
	e.metrics.ObserveTxDuration(op, time.Since(start).Seconds())

	if err != nil {
		err = translateError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		e.failed(ctx, op, err)
		return err
	}
	for _, event := range committed.events {
		e.emit(ctx, event)
	}
	return nil
}

// failed logs and counts an aborted operation.
func (e *Engine) failed(ctx context.Context, op string, err error) {
	code := dErrors.CodeOf(err)
	e.metrics.IncrementRejected(op, string(code))

	switch code {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		e.logger.ErrorContext(ctx, "ledger operation failed", "operation", op, "code", code, "error", err)
	case dErrors.CodeUnauthorized:
		e.logger.InfoContext(ctx, "ledger operation unauthorized", "operation", op, "error", err)
		e.emit(ctx, audit.Event{
			Action: string(audit.EventAuthorizationDenied),
			Reason: op + ": " + err.Error(),
		})
	default:
		e.logger.InfoContext(ctx, "ledger operation rejected", "operation", op, "code", code, "error", err)
	}
}

// rejected logs and counts an operation that returned false.
func (e *Engine) rejected(ctx context.Context, op, reason string) {
	e.metrics.IncrementRejected(op, reason)
	e.logger.InfoContext(ctx, "ledger operation returned false", "operation", op, "reason", reason)
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	if e.auditPublisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := e.auditPublisher.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

// translateError gives infrastructure errors a domain code. Coded errors pass
// through unchanged.
func translateError(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent ledger update, retry the operation")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger transaction aborted")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "ledger transaction failed")
	}
}
