package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/lock"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	repo "github.com/baharkarakas/wallet-engine/internal/repository"
)

type AdjustRequest struct {
	WalletID string
	Action   models.AdjustAction
	Amount   money.Money
	AdminID  string
	Note     string
}

type AdminService struct {
	ledger
	history *TransactionService
}

func NewAdminService(store repo.Store, locks lock.Locker, n *Notifier, history *TransactionService) *AdminService {
	return &AdminService{
		ledger:  ledger{store: store, locks: locks, notifier: n, now: time.Now},
		history: history,
	}
}

// Adjust adds to or deducts from a wallet with no fee. A deduct larger than
// the balance leaves only a failed record behind.
func (s *AdminService) Adjust(ctx context.Context, req AdjustRequest) (models.Transaction, models.Wallet, error) {
	if !req.Action.Valid() {
		return models.Transaction{}, models.Wallet{}, fmt.Errorf("action %q: %w", req.Action, errs.ErrInvalidArgument)
	}
	if !req.Amount.IsPositive() {
		return models.Transaction{}, models.Wallet{}, errs.ErrInvalidAmount
	}
	w, err := s.store.Wallets().GetByID(ctx, req.WalletID)
	if err != nil {
		return models.Transaction{}, models.Wallet{}, errs.Op("admin_adjust", req.WalletID, err)
	}

	uid := w.UserID
	rec := models.Transaction{
		Type:   models.TxnAdminAdjust,
		Amount: req.Amount,
		Note:   req.Note,
		Status: models.TxnPending,
	}
	if req.Action == models.AdjustAdd {
		rec.ReceiverID = &uid
	} else {
		rec.SenderID = &uid
	}

	release, err := s.acquire(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrTimeout) {
			failed := s.recordFailure(ctx, rec, err)
			s.finalize(failed)
			return failed, w, errs.Op("admin_adjust", uid, err)
		}
		return models.Transaction{}, w, errs.Op("admin_adjust", uid, err)
	}
	defer release()

	var (
		out      models.Transaction
		wallet   models.Wallet
		applyErr error
	)
	err = s.store.WithTx(ctx, func(tx repo.Tx) error {
		applyErr = nil
		locked, err := tx.LockWallets(ctx, uid)
		if err != nil {
			return err
		}
		wallet = locked[uid]
		r, err := tx.Append(ctx, rec)
		if err != nil {
			return err
		}
		out = r

		if req.Action == models.AdjustAdd {
			wallet, err = tx.Credit(ctx, uid, req.Amount)
		} else {
			wallet, err = tx.Debit(ctx, uid, req.Amount)
		}
		if err != nil {
			if !errors.Is(err, errs.ErrInsufficientFunds) {
				return err
			}
			wallet = locked[uid]
			applyErr = err
			return s.fail(ctx, tx, &out, err)
		}

		if err := tx.UpdateStatus(ctx, out.ID, models.TxnCompleted, ""); err != nil {
			return err
		}
		out.Status = models.TxnCompleted
		return tx.Audit(ctx, models.AuditLog{
			EntityType: models.AuditEntityWallet,
			EntityID:   &wallet.ID,
			Action:     models.AuditActionAdjusted,
			Details: map[string]any{
				"admin_id":       req.AdminID,
				"action":         string(req.Action),
				"amount":         req.Amount.String(),
				"transaction_id": out.ID,
				"balance":        wallet.Balance.String(),
				"note":           req.Note,
			},
		})
	})
	if err != nil {
		if ctx.Err() != nil || errs.IsValidation(err) {
			return models.Transaction{}, w, errs.Op("admin_adjust", uid, err)
		}
		failed := s.recordFailure(ctx, rec, err)
		s.finalize(failed)
		return failed, w, errs.Op("admin_adjust", uid, err)
	}
	s.finalize(out)
	if applyErr != nil {
		return out, wallet, errs.Op("admin_adjust", uid, applyErr)
	}
	slog.InfoContext(ctx, "wallet adjusted", "admin_id", req.AdminID, "wallet_id", wallet.ID, "action", req.Action, "amount", req.Amount.String())
	return out, wallet, nil
}

func (s *AdminService) ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, error) {
	limit, offset, err := normalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	return s.store.Wallets().List(ctx, limit, offset)
}

// ListTransactions is the system-wide log; q.UserID narrows it to one user.
func (s *AdminService) ListTransactions(ctx context.Context, q models.TxnQuery) ([]models.Transaction, error) {
	limit, offset, err := normalizePage(q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	q.Limit, q.Offset = limit, offset
	return s.store.Transactions().List(ctx, q)
}

func (s *AdminService) Stats(ctx context.Context) (models.SystemStats, error) {
	return s.store.Stats(ctx)
}

func (s *AdminService) AuditTrail(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	limit, _, err := normalizePage(limit, 0)
	if err != nil {
		return nil, err
	}
	return s.store.AuditLogs().List(ctx, entityType, entityID, limit)
}

// Reconcile checks balance == initial_balance + sum of completed effects.
// It holds the wallet lock so no unit commits halfway through the walk.
func (s *AdminService) Reconcile(ctx context.Context, walletID string) (models.Reconciliation, error) {
	w, err := s.store.Wallets().GetByID(ctx, walletID)
	if err != nil {
		return models.Reconciliation{}, errs.Op("reconcile", walletID, err)
	}
	uid := w.UserID
	release, err := s.acquire(ctx, uid)
	if err != nil {
		return models.Reconciliation{}, errs.Op("reconcile", uid, err)
	}
	defer release()

	if w, err = s.store.Wallets().GetByUser(ctx, uid); err != nil {
		return models.Reconciliation{}, errs.Op("reconcile", uid, err)
	}
	out := models.Reconciliation{
		WalletID:       w.ID,
		UserID:         w.UserID,
		InitialBalance: w.InitialBalance,
		Balance:        w.Balance,
		Expected:       w.InitialBalance,
	}
	q := models.TxnQuery{UserID: w.UserID, Filter: models.FilterAll, Status: models.TxnCompleted}
	for t, err := range s.history.Iterate(ctx, q, MaxPageSize) {
		if err != nil {
			return models.Reconciliation{}, errs.Op("reconcile", w.UserID, err)
		}
		eff, err := t.Effect(w.UserID)
		if err != nil {
			return models.Reconciliation{}, errs.Op("reconcile", w.UserID, err)
		}
		out.Expected = out.Expected.Add(eff)
		out.Transactions++
	}
	out.Consistent = out.Expected == out.Balance
	if !out.Consistent {
		slog.ErrorContext(ctx, "wallet out of balance",
			"wallet_id", w.ID, "balance", w.Balance.String(), "expected", out.Expected.String())
	}
	return out, nil
}
