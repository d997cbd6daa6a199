package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/events"
	"github.com/baharkarakas/wallet-engine/internal/idempotency"
	"github.com/baharkarakas/wallet-engine/internal/lock"
	"github.com/baharkarakas/wallet-engine/internal/metrics"
	"github.com/baharkarakas/wallet-engine/internal/models"
	repo "github.com/baharkarakas/wallet-engine/internal/repository"
	"github.com/baharkarakas/wallet-engine/internal/worker"
)

// Notifier publishes finalized records off the request path.
type Notifier struct {
	pool *worker.Pool
	pub  events.Publisher
}

func NewNotifier(pool *worker.Pool, pub events.Publisher) *Notifier {
	return &Notifier{pool: pool, pub: pub}
}

func (n *Notifier) notify(t models.Transaction) {
	if n == nil || n.pub == nil {
		return
	}
	e := events.NewEvent(t)
	if n.pool == nil {
		_ = n.pub.Publish(context.Background(), e)
		return
	}
	if err := n.pool.Submit(func(ctx context.Context) { _ = n.pub.Publish(ctx, e) }); err != nil {
		slog.Warn("event dropped", "transaction_id", t.ID, "err", err)
	}
}

// ledger is the write path shared by every service that moves money.
type ledger struct {
	store    repo.Store
	locks    lock.Locker
	idem     idempotency.Store
	notifier *Notifier
	now      func() time.Time
}

// acquire maps lock errors to the engine's taxonomy. Context errors pass
// through untouched: a canceled request leaves no record.
func (l *ledger) acquire(ctx context.Context, userIDs ...string) (lock.Release, error) {
	rel, err := l.locks.Acquire(ctx, userIDs...)
	switch {
	case err == nil:
		return rel, nil
	case errors.Is(err, lock.ErrTimeout):
		return nil, errs.ErrTimeout
	case ctx.Err() != nil:
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", errs.ErrStorageFault, err)
}

// fail marks rec failed inside the running unit and leaves an audit trail.
func (l *ledger) fail(ctx context.Context, tx repo.Tx, rec *models.Transaction, cause error) error {
	code := errs.Code(cause)
	if err := tx.UpdateStatus(ctx, rec.ID, models.TxnFailed, code); err != nil {
		return err
	}
	rec.Status, rec.FailureReason = models.TxnFailed, code
	return tx.Audit(ctx, failureAudit(*rec, cause))
}

// recordFailure persists rec as failed in its own unit. Used when the unit
// that should have carried it never ran or was rolled back.
func (l *ledger) recordFailure(ctx context.Context, rec models.Transaction, cause error) models.Transaction {
	ctx = context.WithoutCancel(ctx)
	rec.ID, rec.CreatedAt = "", time.Time{}
	rec.Status, rec.FailureReason = models.TxnFailed, errs.Code(cause)

	var out models.Transaction
	err := l.store.WithTx(ctx, func(tx repo.Tx) error {
		r, err := tx.Append(ctx, rec)
		if err != nil {
			return err
		}
		out = r
		return tx.Audit(ctx, failureAudit(r, cause))
	})
	if err != nil {
		slog.ErrorContext(ctx, "record failed transaction", "type", rec.Type, "cause", cause, "err", err)
		return models.Transaction{}
	}
	return out
}

func failureAudit(rec models.Transaction, cause error) models.AuditLog {
	id := rec.ID
	return models.AuditLog{
		EntityType: models.AuditEntityTransaction,
		EntityID:   &id,
		Action:     models.AuditActionTxnFailed,
		Details: map[string]any{
			"type":   string(rec.Type),
			"reason": errs.Code(cause),
			"error":  cause.Error(),
			"amount": rec.Amount.String(),
		},
	}
}

// finalize runs after commit: metrics and events.
func (l *ledger) finalize(rec models.Transaction) {
	if rec.ID == "" {
		return
	}
	metrics.TransactionsTotal.WithLabelValues(string(rec.Type), string(rec.Status)).Inc()
	switch rec.Status {
	case models.TxnCompleted:
		if rec.Fee.IsPositive() {
			metrics.FeesCollected.Add(float64(rec.Fee.Minor()))
		}
	case models.TxnFailed:
		metrics.TransferFailures.WithLabelValues(rec.FailureReason).Inc()
	}
	l.notifier.notify(rec)
}

// idempotent runs fn at most once per (scope, key). A replay returns the
// recorded transaction and, for failed records, the error it failed with.
func (l *ledger) idempotent(ctx context.Context, scope, key string, fn func() (models.Transaction, error)) (models.Transaction, error) {
	if key == "" || l.idem == nil {
		return fn()
	}
	k := scope + ":" + key
	id, replay, err := l.idem.Begin(ctx, k)
	if err != nil {
		return models.Transaction{}, err
	}
	if replay {
		rec, err := l.store.Transactions().GetByID(ctx, id)
		if err != nil {
			return models.Transaction{}, err
		}
		if rec.Status == models.TxnFailed {
			return rec, errs.FromCode(rec.FailureReason)
		}
		return rec, nil
	}

	rec, err := fn()
	if rec.ID == "" {
		// nothing was recorded, so a retry under the same key is allowed
		if aerr := l.idem.Abort(context.WithoutCancel(ctx), k); aerr != nil {
			slog.WarnContext(ctx, "idempotency abort", "key", key, "err", aerr)
		}
		return rec, err
	}
	if ferr := l.idem.Finish(context.WithoutCancel(ctx), k, rec.ID); ferr != nil {
		slog.WarnContext(ctx, "idempotency finish", "key", key, "err", ferr)
	}
	return rec, err
}
