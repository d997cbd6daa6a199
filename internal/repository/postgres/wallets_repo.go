package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
)

const walletCols = `id, user_id, balance, initial_balance, created_at, updated_at`

type walletsRepo struct{ q querier }

func scanWallet(row pgx.Row) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.InitialBalance, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (r *walletsRepo) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	w, err := scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return w, fmt.Errorf("wallet for user %s: %w", userID, mapErr(err))
	}
	return w, nil
}

func (r *walletsRepo) GetByID(ctx context.Context, walletID string) (models.Wallet, error) {
	w, err := scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE id::text = $1`, walletID))
	if err != nil {
		return w, fmt.Errorf("wallet %s: %w", walletID, mapErr(err))
	}
	return w, nil
}

func (r *walletsRepo) List(ctx context.Context, limit, offset int) ([]models.Wallet, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+walletCols+`
		   FROM wallets
		  ORDER BY created_at DESC, user_id
		  LIMIT NULLIF($1, 0) OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []models.Wallet{}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, w)
	}
	return out, mapErr(rows.Err())
}

func (r *walletsRepo) create(ctx context.Context, w models.Wallet) (models.Wallet, error) {
	if w.ID == "" {
		w.ID = models.NewWalletID()
	}
	out, err := scanWallet(r.q.QueryRow(ctx,
		`INSERT INTO wallets (id, user_id, balance, initial_balance)
		 VALUES ($1, $2, $3, $3)
		 RETURNING `+walletCols,
		w.ID, w.UserID, w.Balance,
	))
	if err != nil {
		return out, fmt.Errorf("wallet for user %s: %w", w.UserID, mapErr(err))
	}
	return out, nil
}

// lock takes row locks in user_id order so concurrent units agree on it.
func (r *walletsRepo) lock(ctx context.Context, userIDs []string) (map[string]models.Wallet, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+walletCols+`
		   FROM wallets
		  WHERE user_id = ANY($1)
		  ORDER BY user_id
		    FOR UPDATE`,
		userIDs,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make(map[string]models.Wallet, len(userIDs))
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out[w.UserID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	for _, uid := range slices.Sorted(slices.Values(userIDs)) {
		if _, ok := out[uid]; !ok {
			return nil, fmt.Errorf("wallet for user %s: %w", uid, errs.ErrNotFound)
		}
	}
	return out, nil
}

func (r *walletsRepo) debit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error) {
	w, err := scanWallet(r.q.QueryRow(ctx,
		`UPDATE wallets
		    SET balance = balance - $2,
		        updated_at = now()
		  WHERE user_id = $1 AND balance >= $2
		  RETURNING `+walletCols,
		userID, amount,
	))
	if err == nil {
		return w, nil
	}
	err = mapErr(err)
	if !errors.Is(err, errs.ErrNotFound) {
		return w, fmt.Errorf("debit %s: %w", userID, err)
	}
	// no row: either the wallet is missing or the balance is too low
	if _, gerr := r.GetByUser(ctx, userID); gerr != nil {
		return w, gerr
	}
	return w, fmt.Errorf("debit %s of %s: %w", amount, userID, errs.ErrInsufficientFunds)
}

func (r *walletsRepo) credit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error) {
	w, err := scanWallet(r.q.QueryRow(ctx,
		`UPDATE wallets
		    SET balance = balance + $2,
		        updated_at = now()
		  WHERE user_id = $1
		  RETURNING `+walletCols,
		userID, amount,
	))
	if err != nil {
		return w, fmt.Errorf("credit %s: %w", userID, mapErr(err))
	}
	return w, nil
}
