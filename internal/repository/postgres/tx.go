package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	repo "github.com/baharkarakas/wallet-engine/internal/repository"
)

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) wallets() *walletsRepo           { return &walletsRepo{t.tx} }
func (t *pgTx) transactions() *transactionsRepo { return &transactionsRepo{t.tx} }

func (t *pgTx) CreateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error) {
	if w.Balance.IsNegative() {
		return models.Wallet{}, errs.ErrInvalidAmount
	}
	return t.wallets().create(ctx, w)
}

func (t *pgTx) LockWallets(ctx context.Context, userIDs ...string) (map[string]models.Wallet, error) {
	return t.wallets().lock(ctx, userIDs)
}

func (t *pgTx) Debit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, errs.ErrInvalidAmount
	}
	return t.wallets().debit(ctx, userID, amount)
}

func (t *pgTx) Credit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, errs.ErrInvalidAmount
	}
	return t.wallets().credit(ctx, userID, amount)
}

func (t *pgTx) Append(ctx context.Context, rec models.Transaction) (models.Transaction, error) {
	return t.transactions().append(ctx, rec)
}

func (t *pgTx) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) error {
	return t.transactions().updateStatus(ctx, id, status, reason)
}

func (t *pgTx) Audit(ctx context.Context, l models.AuditLog) error {
	return (&auditLogsRepo{t.tx}).create(ctx, l)
}

// Savepoint maps onto a SAVEPOINT: pgx turns Begin on a Tx into one.
func (t *pgTx) Savepoint(ctx context.Context, fn func(repo.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	if err := fn(&pgTx{tx: sp}); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return errors.Join(err, mapErr(rbErr))
		}
		return err
	}
	return mapErr(sp.Commit(ctx))
}
