package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/models"
	repo "github.com/baharkarakas/wallet-engine/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration

	wallets      *walletsRepo
	transactions *transactionsRepo
	auditLogs    *auditLogsRepo
}

var _ repo.Store = (*Store)(nil)

// NewStore builds the Postgres store. lockTimeout bounds how long a unit
// waits on row locks held by another unit.
func NewStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{
		pool:         pool,
		lockTimeout:  lockTimeout,
		wallets:      &walletsRepo{pool},
		transactions: &transactionsRepo{pool},
		auditLogs:    &auditLogsRepo{pool},
	}
}

func (s *Store) Wallets() repo.Wallets           { return s.wallets }
func (s *Store) Transactions() repo.Transactions { return s.transactions }
func (s *Store) AuditLogs() repo.AuditLogs       { return s.auditLogs }

func (s *Store) WithTx(ctx context.Context, fn func(repo.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return mapErr(err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if s.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())); err != nil {
			return mapErr(err)
		}
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return mapErr(tx.Commit(ctx))
}

func (s *Store) Stats(ctx context.Context) (models.SystemStats, error) {
	out := models.SystemStats{TransactionCounts: map[models.TransactionType]int{}}
	err := s.pool.QueryRow(ctx, `
SELECT (SELECT COUNT(*) FROM wallets),
       (SELECT COALESCE(SUM(balance), 0)::bigint FROM wallets),
       (SELECT COALESCE(SUM(fee), 0)::bigint FROM transactions WHERE status = 'completed'),
       (SELECT COUNT(*) FROM transactions WHERE status = 'failed')`,
	).Scan(&out.Wallets, &out.TotalBalance, &out.FeesCollected, &out.FailedCount)
	if err != nil {
		return out, mapErr(err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT type, COUNT(*) FROM transactions WHERE status = 'completed' GROUP BY type`)
	if err != nil {
		return out, mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ models.TransactionType
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return out, mapErr(err)
		}
		out.TransactionCounts[typ] = n
	}
	return out, mapErr(rows.Err())
}

// mapErr translates driver errors into the engine's taxonomy. Anything
// unrecognized is a storage fault.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %s", errs.ErrTimeout, pgErr.Message)
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", errs.ErrNotFound, pgErr.ConstraintName)
		case pgerrcode.CheckViolation:
			if pgErr.ConstraintName == "wallets_balance_check" {
				return errs.ErrInsufficientFunds
			}
			return fmt.Errorf("%w: %s", errs.ErrInvalidArgument, pgErr.ConstraintName)
		case pgerrcode.NumericValueOutOfRange:
			// bigint overflow on a balance or aggregate
			return fmt.Errorf("%w: %s", errs.ErrInvalidAmount, pgErr.Message)
		case pgerrcode.RaiseException:
			// only the transactions_immutable trigger raises
			return fmt.Errorf("%w: %s", errs.ErrImmutable, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %w", errs.ErrStorageFault, err)
}
