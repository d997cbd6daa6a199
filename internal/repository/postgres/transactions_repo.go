package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/models"
)

const txnCols = `id, type, sender_id, receiver_id, amount, fee, note, method, status, failure_reason, created_at`

type transactionsRepo struct{ q querier }

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Type, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Fee,
		&t.Note, &t.Method, &t.Status, &t.FailureReason, &t.CreatedAt)
	return t, err
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	t, err := scanTxn(r.q.QueryRow(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return t, fmt.Errorf("transaction %s: %w", id, mapErr(err))
	}
	return t, nil
}

// where renders the filter part of q. Placeholders start at $1.
func where(q models.TxnQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.UserID != "" {
		p := arg(q.UserID)
		switch q.Filter {
		case models.FilterSent:
			conds = append(conds, "sender_id = "+p)
		case models.FilterReceived:
			conds = append(conds, "receiver_id = "+p)
		default:
			conds = append(conds, "(sender_id = "+p+" OR receiver_id = "+p+")")
		}
	}
	if q.Status != "" {
		conds = append(conds, "status = "+arg(q.Status))
	}
	if !q.From.IsZero() {
		conds = append(conds, "created_at >= "+arg(q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, "created_at < "+arg(q.To))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *transactionsRepo) List(ctx context.Context, q models.TxnQuery) ([]models.Transaction, error) {
	cond, args := where(q)
	sql := `SELECT ` + txnCols + ` FROM transactions` + cond + ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err())
}

func (r *transactionsRepo) Aggregate(ctx context.Context, q models.TxnQuery) (models.Aggregate, error) {
	if q.UserID == "" {
		return models.Aggregate{}, fmt.Errorf("aggregate without user: %w", errs.ErrInvalidArgument)
	}
	q.Status = models.TxnCompleted
	q.Filter = models.FilterAll
	agg := models.Aggregate{UserID: q.UserID, From: q.From, To: q.To}

	cond, args := where(q)
	// where() always binds the user id first
	err := r.q.QueryRow(ctx, `
SELECT COALESCE(SUM(amount) FILTER (WHERE sender_id = $1), 0)::bigint,
       COUNT(*)             FILTER (WHERE sender_id = $1),
       COALESCE(SUM(fee)    FILTER (WHERE sender_id = $1), 0)::bigint,
       COALESCE(SUM(amount) FILTER (WHERE receiver_id = $1), 0)::bigint,
       COUNT(*)             FILTER (WHERE receiver_id = $1)
  FROM transactions`+cond, args...,
	).Scan(&agg.TotalSent, &agg.SentCount, &agg.FeesPaid, &agg.TotalReceived, &agg.ReceivedCount)
	if err != nil {
		return agg, mapErr(err)
	}
	return agg, nil
}

func (r *transactionsRepo) append(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if !t.Type.Valid() {
		return t, fmt.Errorf("transaction type %q: %w", t.Type, errs.ErrInvalidArgument)
	}
	if t.ID == "" {
		t.ID = models.NewTransactionID(time.Now())
	}
	if t.Status == "" {
		t.Status = models.TxnPending
	}
	var createdAt *time.Time
	if !t.CreatedAt.IsZero() {
		createdAt = &t.CreatedAt
	}
	out, err := scanTxn(r.q.QueryRow(ctx,
		`INSERT INTO transactions (id, type, sender_id, receiver_id, amount, fee, note, method, status, failure_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, clock_timestamp()))
		 RETURNING `+txnCols,
		t.ID, t.Type, t.SenderID, t.ReceiverID, t.Amount, t.Fee,
		t.Note, t.Method, t.Status, t.FailureReason, createdAt,
	))
	if err != nil {
		return t, fmt.Errorf("append transaction: %w", mapErr(err))
	}
	return out, nil
}

func (r *transactionsRepo) updateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q: %w", status, errs.ErrInvalidArgument)
	}
	tag, err := r.q.Exec(ctx,
		`UPDATE transactions
		    SET status = $2, failure_reason = $3
		  WHERE id = $1 AND status = 'pending'`,
		id, status, reason,
	)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", id, mapErr(err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("transaction %s: %w", id, errs.ErrImmutable)
}
