package repository

import (
	"context"

	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
)

// Wallets is the committed, read-only view of wallet balances.
type Wallets interface {
	GetByUser(ctx context.Context, userID string) (models.Wallet, error)
	GetByID(ctx context.Context, walletID string) (models.Wallet, error)
	List(ctx context.Context, limit, offset int) ([]models.Wallet, error)
}

// Transactions is the committed, read-only view of the transaction log.
// List orders newest first, ties broken by id descending.
type Transactions interface {
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	List(ctx context.Context, q models.TxnQuery) ([]models.Transaction, error)
	Aggregate(ctx context.Context, q models.TxnQuery) (models.Aggregate, error)
}

type AuditLogs interface {
	List(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error)
}

// Tx is a single unit of work. Nothing it writes is visible to other readers
// until the surrounding WithTx returns nil.
type Tx interface {
	CreateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error)

	// LockWallets loads the wallets of userIDs for update. Implementations
	// lock rows in ascending user id order.
	LockWallets(ctx context.Context, userIDs ...string) (map[string]models.Wallet, error)

	// Debit fails with errs.ErrInsufficientFunds rather than let a balance go negative.
	Debit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error)
	Credit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error)

	// Append stores a new record, assigning its id and created_at when empty.
	Append(ctx context.Context, t models.Transaction) (models.Transaction, error)
	// UpdateStatus moves a pending record to a terminal status. Terminal
	// records are immutable: errs.ErrImmutable.
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) error

	Audit(ctx context.Context, l models.AuditLog) error

	// Savepoint runs fn in a nested scope. If fn fails, its writes are
	// undone and the outer unit stays usable.
	Savepoint(ctx context.Context, fn func(Tx) error) error
}

type Store interface {
	Wallets() Wallets
	Transactions() Transactions
	AuditLogs() AuditLogs

	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Stats(ctx context.Context) (models.SystemStats, error)
}
