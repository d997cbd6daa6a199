package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/fee"
	"github.com/baharkarakas/wallet-engine/internal/idempotency"
	"github.com/baharkarakas/wallet-engine/internal/lock"
	"github.com/baharkarakas/wallet-engine/internal/metrics"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	repo "github.com/baharkarakas/wallet-engine/internal/repository"
)

type SendRequest struct {
	SenderID       string
	ReceiverID     string
	Amount         money.Money
	Note           string
	IdempotencyKey string
}

type TransactionService struct {
	ledger
	fees fee.Policy
}

func NewTransactionService(store repo.Store, locks lock.Locker, fees fee.Policy, idem idempotency.Store, n *Notifier) *TransactionService {
	return &TransactionService{
		ledger: ledger{store: store, locks: locks, idem: idem, notifier: n, now: time.Now},
		fees:   fees,
	}
}

// SendMoney moves amount from sender to receiver and charges the sender
// the policy fee on top. Validation failures return no record; failures
// after validation return the failed record alongside the error.
func (s *TransactionService) SendMoney(ctx context.Context, req SendRequest) (models.Transaction, error) {
	rec, err := s.idempotent(ctx, "send:"+req.SenderID, req.IdempotencyKey, func() (models.Transaction, error) {
		return s.send(ctx, req)
	})
	return rec, errs.Op("send_money", req.SenderID, err)
}

func (s *TransactionService) validate(ctx context.Context, req SendRequest) error {
	if req.SenderID == req.ReceiverID {
		return errs.ErrSelfTransfer
	}
	if !req.Amount.IsPositive() {
		return errs.ErrInvalidAmount
	}
	if _, err := s.store.Wallets().GetByUser(ctx, req.SenderID); err != nil {
		return err
	}
	if _, err := s.store.Wallets().GetByUser(ctx, req.ReceiverID); err != nil {
		return err
	}
	return nil
}

func (s *TransactionService) send(ctx context.Context, req SendRequest) (models.Transaction, error) {
	flow := newTransferFlow(req.SenderID, req.ReceiverID)
	if err := s.validate(ctx, req); err != nil {
		flow.abort()
		return models.Transaction{}, err
	}

	charge := s.fees.Fee(req.Amount)
	debit := req.Amount.Add(charge)
	sender, receiver := req.SenderID, req.ReceiverID
	rec := models.Transaction{
		Type:       models.TxnTransfer,
		SenderID:   &sender,
		ReceiverID: &receiver,
		Amount:     req.Amount,
		Fee:        charge,
		Note:       req.Note,
		Status:     models.TxnPending,
	}

	flow.advance(stateLocking)
	release, err := s.acquire(ctx, sender, receiver)
	if err != nil {
		flow.abort()
		if errors.Is(err, errs.ErrTimeout) {
			failed := s.recordFailure(ctx, rec, err)
			s.finalize(failed)
			return failed, err
		}
		return models.Transaction{}, err
	}
	defer release()

	flow.advance(stateApplying)
	var (
		out      models.Transaction
		applyErr error // failure committed together with the failed record
	)
	err = s.store.WithTx(ctx, func(tx repo.Tx) error {
		applyErr = nil
		if _, err := tx.LockWallets(ctx, sender, receiver); err != nil {
			return err
		}
		r, err := tx.Append(ctx, rec)
		if err != nil {
			return err
		}
		out = r

		if _, err := tx.Debit(ctx, sender, debit); err != nil {
			if !errors.Is(err, errs.ErrInsufficientFunds) {
				return err
			}
			applyErr = err
			return s.fail(ctx, tx, &out, err)
		}

		creditErr := tx.Savepoint(ctx, func(sp repo.Tx) error {
			_, err := sp.Credit(ctx, receiver, req.Amount)
			return err
		})
		if creditErr != nil {
			// refund the sender inside the same unit
			if _, err := tx.Credit(ctx, sender, debit); err != nil {
				return fmt.Errorf("%w: refund %s after failed credit (%v): %w", errs.ErrReconciliation, sender, creditErr, err)
			}
			applyErr = fmt.Errorf("%w: credit %s: %w", errs.ErrStorageFault, receiver, creditErr)
			return s.fail(ctx, tx, &out, applyErr)
		}

		if err := tx.UpdateStatus(ctx, out.ID, models.TxnCompleted, ""); err != nil {
			return err
		}
		out.Status = models.TxnCompleted
		return nil
	})

	if err != nil {
		flow.abort()
		// canceled before commit: nothing happened, nothing is recorded
		if ctx.Err() != nil {
			return models.Transaction{}, err
		}
		if errs.IsValidation(err) {
			return models.Transaction{}, err
		}
		if errors.Is(err, errs.ErrReconciliation) {
			s.alert(ctx, rec, err)
		}
		failed := s.recordFailure(ctx, rec, err)
		s.finalize(failed)
		return failed, err
	}
	if applyErr != nil {
		flow.abort()
		s.finalize(out)
		return out, applyErr
	}
	flow.advance(stateCommitted)
	s.finalize(out)
	return out, nil
}

// alert surfaces a unit that could not be compensated. The unit itself was
// rolled back; operators still need to look at why the refund failed.
func (s *TransactionService) alert(ctx context.Context, rec models.Transaction, cause error) {
	metrics.ReconciliationAlerts.Inc()
	slog.ErrorContext(ctx, "reconciliation alert",
		"sender", *rec.SenderID, "receiver", *rec.ReceiverID, "amount", rec.Amount.String(), "err", cause)

	wctx := context.WithoutCancel(ctx)
	err := s.store.WithTx(wctx, func(tx repo.Tx) error {
		return tx.Audit(wctx, models.AuditLog{
			EntityType: models.AuditEntityWallet,
			EntityID:   rec.SenderID,
			Action:     models.AuditActionReconcileAlert,
			Details: map[string]any{
				"receiver": *rec.ReceiverID,
				"amount":   rec.Amount.String(),
				"fee":      rec.Fee.String(),
				"error":    cause.Error(),
			},
		})
	})
	if err != nil {
		slog.ErrorContext(ctx, "write reconciliation audit", "err", err)
	}
}
