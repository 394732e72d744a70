// Package transfer executes money transfers between two clients. Every attempt
// produces exactly one persisted domain.TransferRecord; business-rule failures
// are reported through that record, only system faults are returned as errors.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bank-transfers/internal/domain"
	"bank-transfers/internal/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Clients is the slice of the client directory the engine needs.
type Clients interface {
	FindByAccountNumber(ctx context.Context, accountNumber string) (domain.Client, error)
	UpdateBalance(ctx context.Context, c domain.Client) error
}

// Records persists transfer records. InsertTransfer sets rec.ID.
type Records interface {
	InsertTransfer(ctx context.Context, rec *domain.TransferRecord) error
}

// Tx is one atomic unit of work.
type Tx interface {
	// LockAccounts takes row locks on the given accounts until the unit of work
	// ends. Unknown account numbers are ignored.
	LockAccounts(ctx context.Context, accountNumbers ...string) error
	Clients() Clients
	Records() Records
}

// UnitOfWork runs fn atomically: everything fn did is committed when it
// returns nil and discarded otherwise.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// HistoryReader lists the records touching one account, newest first.
type HistoryReader interface {
	TransfersByAccount(ctx context.Context, accountNumber string) ([]domain.TransferRecord, error)
}

// Publisher receives committed records. Errors are logged and dropped.
type Publisher interface {
	PublishTransfer(ctx context.Context, rec domain.TransferRecord) error
}

// Engine executes transfers under a configurable per-attempt limit.
type Engine struct {
	uow       UnitOfWork
	history   HistoryReader
	limit     decimal.Decimal
	now       func() time.Time
	publisher Publisher
	log       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimit sets the maximum amount allowed per attempt.
func WithLimit(limit decimal.Decimal) Option {
	return func(e *Engine) { e.limit = limit }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func New(uow UnitOfWork, history HistoryReader, opts ...Option) *Engine {
	e := &Engine{
		uow:     uow,
		history: history,
		limit:   domain.DefaultTransferLimit,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Limit() decimal.Decimal { return e.limit }

// Transfer moves req.Amount from origin to destination and returns the
// persisted record. A nil error with rec.Succeeded == false means a business
// rule rejected the attempt; a non-nil error is a system fault, in which case
// no balance changed. A request failing domain.TransferRequest.Validate is
// refused with domain.ErrValidation before any record is built.
func (e *Engine) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferRecord, error) {
	if err := req.Validate(); err != nil {
		telemetry.TransfersTotal.WithLabelValues("invalid").Inc()
		return domain.TransferRecord{}, err
	}
	start := time.Now()

	ctx, span := telemetry.Tracer().Start(ctx, "transfer.Transfer",
		trace.WithAttributes(
			attribute.String("transfer.origin", req.OriginAccount),
			attribute.String("transfer.destination", req.DestinationAccount),
			attribute.String("transfer.amount", req.Amount.String()),
		),
	)
	defer span.End()

	rec := domain.TransferRecord{
		OriginAccount:      req.OriginAccount,
		DestinationAccount: req.DestinationAccount,
		Amount:             req.Amount,
		Timestamp:          e.now(),
	}

	var res result
	err := e.uow.Atomic(ctx, func(tx Tx) error {
		var err error
		res, err = e.execute(ctx, tx, req)
		if err != nil {
			return err
		}
		attempt := rec
		attempt.Succeeded = res.outcome == Completed
		attempt.Message = res.message
		if err := tx.Records().InsertTransfer(ctx, &attempt); err != nil {
			return fmt.Errorf("insert transfer record: %w", err)
		}
		rec = attempt
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer fault")
		e.recordFault(ctx, rec, err)
		telemetry.TransfersTotal.WithLabelValues("fault").Inc()
		return domain.TransferRecord{}, fmt.Errorf("transfer %s -> %s: %w", req.OriginAccount, req.DestinationAccount, err)
	}

	span.SetAttributes(
		attribute.String("transfer.outcome", res.outcome.String()),
		attribute.Int64("transfer.id", rec.ID),
	)
	span.SetStatus(codes.Ok, "")

	amount, _ := req.Amount.Float64()
	telemetry.TransfersTotal.WithLabelValues(res.outcome.String()).Inc()
	telemetry.TransferAmount.WithLabelValues(res.outcome.String()).Observe(amount)
	telemetry.TransferDuration.Observe(time.Since(start).Seconds())

	e.log.InfoContext(ctx, "transfer recorded",
		"id", rec.ID,
		"origin", rec.OriginAccount,
		"destination", rec.DestinationAccount,
		"amount", rec.Amount.String(),
		"outcome", res.outcome.String(),
	)

	if e.publisher != nil {
		if err := e.publisher.PublishTransfer(ctx, rec); err != nil {
			e.log.WarnContext(ctx, "publish transfer", "id", rec.ID, "error", err)
		}
	}
	return rec, nil
}

// execute validates and applies one transfer inside tx. Business-rule
// rejections come back as a non-Completed result with a nil error.
func (e *Engine) execute(ctx context.Context, tx Tx, req domain.TransferRequest) (result, error) {
	if req.Amount.GreaterThan(e.limit) {
		return result{outcome: LimitExceeded, message: limitExceededMessage(e.limit)}, nil
	}

	if err := tx.LockAccounts(ctx, req.OriginAccount, req.DestinationAccount); err != nil {
		return result{}, fmt.Errorf("lock accounts: %w", err)
	}

	clients := tx.Clients()
	origin, err := clients.FindByAccountNumber(ctx, req.OriginAccount)
	if err != nil {
		return notFoundOr(err)
	}
	dest, err := clients.FindByAccountNumber(ctx, req.DestinationAccount)
	if err != nil {
		return notFoundOr(err)
	}

	if origin.Balance.LessThan(req.Amount) {
		return result{outcome: InsufficientFunds, message: msgInsufficientFunds}, nil
	}

	origin.Balance = origin.Balance.Sub(req.Amount)
	dest.Balance = dest.Balance.Add(req.Amount)

	if err := clients.UpdateBalance(ctx, origin); err != nil {
		return result{}, err
	}
	if err := clients.UpdateBalance(ctx, dest); err != nil {
		return result{}, err
	}
	return result{outcome: Completed, message: msgCompleted}, nil
}

func notFoundOr(err error) (result, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return result{outcome: ClientNotFound, message: domain.Message(err)}, nil
	}
	return result{}, err
}

// recordFault persists the failed attempt in its own unit of work after the
// main one rolled back.
func (e *Engine) recordFault(ctx context.Context, rec domain.TransferRecord, cause error) {
	rec.ID = 0
	rec.Succeeded = false
	rec.Message = msgInternalFault

	detached := context.WithoutCancel(ctx)
	err := e.uow.Atomic(detached, func(tx Tx) error {
		return tx.Records().InsertTransfer(detached, &rec)
	})
	if err != nil {
		e.log.ErrorContext(ctx, "record failed transfer", "cause", cause, "error", err)
		return
	}
	e.log.ErrorContext(ctx, "transfer fault", "id", rec.ID, "error", cause)
}

// History returns every record where accountNumber is origin or destination,
// most recent first.
func (e *Engine) History(ctx context.Context, accountNumber string) ([]domain.TransferRecord, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "transfer.History",
		trace.WithAttributes(attribute.String("transfer.account", accountNumber)),
	)
	defer span.End()

	recs, err := e.history.TransfersByAccount(ctx, accountNumber)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("history %s: %w", accountNumber, err)
	}
	if recs == nil {
		recs = []domain.TransferRecord{}
	}
	return recs, nil
}
