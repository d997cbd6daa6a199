package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/idempotency"
	"github.com/baharkarakas/wallet-engine/internal/lock"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	repo "github.com/baharkarakas/wallet-engine/internal/repository"
)

// Funding methods accepted by AddFunds.
const (
	MethodCard        = "card"
	MethodBank        = "bank"
	MethodMobileMoney = "mobile_money"
)

func validMethod(m string) bool {
	return m == MethodCard || m == MethodBank || m == MethodMobileMoney
}

type AddFundsRequest struct {
	UserID         string
	Amount         money.Money
	Method         string
	Note           string
	IdempotencyKey string
}

type WalletService struct {
	ledger
	welcome money.Money
}

func NewWalletService(store repo.Store, locks lock.Locker, idem idempotency.Store, n *Notifier, welcome money.Money) *WalletService {
	return &WalletService{
		ledger:  ledger{store: store, locks: locks, idem: idem, notifier: n, now: time.Now},
		welcome: welcome,
	}
}

// Open creates userID's wallet seeded with the welcome balance.
func (s *WalletService) Open(ctx context.Context, userID string) (models.Wallet, error) {
	if userID == "" {
		return models.Wallet{}, fmt.Errorf("user id: %w", errs.ErrInvalidArgument)
	}
	var w models.Wallet
	err := s.store.WithTx(ctx, func(tx repo.Tx) error {
		var err error
		w, err = tx.CreateWallet(ctx, models.Wallet{UserID: userID, Balance: s.welcome})
		if err != nil {
			return err
		}
		return tx.Audit(ctx, models.AuditLog{
			EntityType: models.AuditEntityWallet,
			EntityID:   &w.ID,
			Action:     models.AuditActionWalletOpened,
			Details:    map[string]any{"user_id": userID, "initial_balance": w.InitialBalance.String()},
		})
	})
	if err != nil {
		return models.Wallet{}, errs.Op("open_wallet", userID, err)
	}
	slog.InfoContext(ctx, "wallet opened", "user_id", userID, "wallet_id", w.ID)
	return w, nil
}

func (s *WalletService) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	w, err := s.store.Wallets().GetByUser(ctx, userID)
	return w, errs.Op("get_wallet", userID, err)
}

// AddFunds credits userID from an external funding method. Settlement is
// synchronous: the record is completed in the same unit that credits.
func (s *WalletService) AddFunds(ctx context.Context, req AddFundsRequest) (models.Transaction, models.Wallet, error) {
	var wallet models.Wallet
	rec, err := s.idempotent(ctx, "fund:"+req.UserID, req.IdempotencyKey, func() (models.Transaction, error) {
		var err error
		var rec models.Transaction
		rec, wallet, err = s.addFunds(ctx, req)
		return rec, err
	})
	if err == nil && wallet.ID == "" {
		// replayed: report the wallet as it is now
		wallet, err = s.store.Wallets().GetByUser(ctx, req.UserID)
	}
	return rec, wallet, errs.Op("add_funds", req.UserID, err)
}

func (s *WalletService) addFunds(ctx context.Context, req AddFundsRequest) (models.Transaction, models.Wallet, error) {
	if !req.Amount.IsPositive() {
		return models.Transaction{}, models.Wallet{}, errs.ErrInvalidAmount
	}
	if !validMethod(req.Method) {
		return models.Transaction{}, models.Wallet{}, fmt.Errorf("method %q: %w", req.Method, errs.ErrInvalidArgument)
	}
	if _, err := s.store.Wallets().GetByUser(ctx, req.UserID); err != nil {
		return models.Transaction{}, models.Wallet{}, err
	}

	uid := req.UserID
	rec := models.Transaction{
		Type:       models.TxnAddFunds,
		ReceiverID: &uid,
		Amount:     req.Amount,
		Method:     req.Method,
		Note:       req.Note,
		Status:     models.TxnPending,
	}

	release, err := s.acquire(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrTimeout) {
			failed := s.recordFailure(ctx, rec, err)
			s.finalize(failed)
			return failed, models.Wallet{}, err
		}
		return models.Transaction{}, models.Wallet{}, err
	}
	defer release()

	var (
		out    models.Transaction
		wallet models.Wallet
	)
	err = s.store.WithTx(ctx, func(tx repo.Tx) error {
		if _, err := tx.LockWallets(ctx, uid); err != nil {
			return err
		}
		r, err := tx.Append(ctx, rec)
		if err != nil {
			return err
		}
		out = r
		if wallet, err = tx.Credit(ctx, uid, req.Amount); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, out.ID, models.TxnCompleted, ""); err != nil {
			return err
		}
		out.Status = models.TxnCompleted
		return nil
	})
	if err != nil {
		if ctx.Err() != nil || errs.IsValidation(err) {
			return models.Transaction{}, models.Wallet{}, err
		}
		failed := s.recordFailure(ctx, rec, err)
		s.finalize(failed)
		return failed, models.Wallet{}, err
	}
	s.finalize(out)
	return out, wallet, nil
}
