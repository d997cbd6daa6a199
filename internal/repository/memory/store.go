// Package memory is an in-process Store. Writes made inside WithTx are staged
// and applied under the store lock at commit, so readers only ever see whole
// units of work.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	"github.com/baharkarakas/wallet-engine/internal/repository"
)

type Store struct {
	mu        sync.RWMutex
	wallets   map[string]models.Wallet // by user id
	walletIDs map[string]string        // wallet id -> user id
	txns      map[string]models.Transaction
	audit     []models.AuditLog
	now       func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now, mainly for tests that need fixed windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		wallets:   map[string]models.Wallet{},
		walletIDs: map[string]string{},
		txns:      map[string]models.Transaction{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Wallets() repository.Wallets           { return walletsView{s} }
func (s *Store) Transactions() repository.Transactions { return txnsView{s} }
func (s *Store) AuditLogs() repository.AuditLogs       { return auditView{s} }

func (s *Store) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: s, st: newState()}
	if err := fn(t); err != nil {
		return err
	}
	// a unit canceled before commit leaves nothing behind
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t.st)
}

func (s *Store) commit(st state) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for uid := range st.created {
		if _, ok := s.wallets[uid]; ok {
			return fmt.Errorf("wallet for user %s: %w", uid, errs.ErrAlreadyExists)
		}
	}
	balances := make(map[string]models.Wallet, len(st.deltas))
	for uid, d := range st.deltas {
		w, ok := s.wallets[uid]
		if !ok {
			if w, ok = st.created[uid]; !ok {
				return fmt.Errorf("wallet for user %s: %w", uid, errs.ErrNotFound)
			}
		}
		bal, ok := w.Balance.CheckedAdd(d)
		if !ok {
			return fmt.Errorf("wallet for user %s: balance overflow: %w", uid, errs.ErrInvalidAmount)
		}
		w.Balance = bal
		if w.Balance.IsNegative() {
			return fmt.Errorf("wallet for user %s: %w", uid, errs.ErrInsufficientFunds)
		}
		balances[uid] = w
	}
	for id := range st.txns {
		cur, exists := s.txns[id]
		if !exists {
			continue
		}
		if st.appended[id] {
			return fmt.Errorf("transaction %s: %w", id, errs.ErrAlreadyExists)
		}
		// someone else finalized it after we staged our update
		if cur.Status.Terminal() {
			return fmt.Errorf("transaction %s: %w", id, errs.ErrImmutable)
		}
	}

	now := s.now()
	for uid, w := range st.created {
		s.wallets[uid] = w
		s.walletIDs[w.ID] = uid
	}
	for uid, w := range balances {
		w.UpdatedAt = now
		s.wallets[uid] = w
	}
	maps.Copy(s.txns, st.txns)
	s.audit = append(s.audit, st.audit...)
	return nil
}

func (s *Store) Stats(ctx context.Context) (models.SystemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := models.SystemStats{
		Wallets:           len(s.wallets),
		TransactionCounts: map[models.TransactionType]int{},
	}
	for _, w := range s.wallets {
		out.TotalBalance = out.TotalBalance.Add(w.Balance)
	}
	for _, t := range s.txns {
		switch t.Status {
		case models.TxnCompleted:
			out.TransactionCounts[t.Type]++
			out.FeesCollected = out.FeesCollected.Add(t.Fee)
		case models.TxnFailed:
			out.FailedCount++
		}
	}
	return out, nil
}

// state is everything a unit of work has written but not yet committed.
type state struct {
	created  map[string]models.Wallet
	deltas   map[string]money.Money
	txns     map[string]models.Transaction
	appended map[string]bool
	audit    []models.AuditLog
}

func newState() state {
	return state{
		created:  map[string]models.Wallet{},
		deltas:   map[string]money.Money{},
		txns:     map[string]models.Transaction{},
		appended: map[string]bool{},
	}
}

func (st state) clone() state {
	return state{
		created:  maps.Clone(st.created),
		deltas:   maps.Clone(st.deltas),
		txns:     maps.Clone(st.txns),
		appended: maps.Clone(st.appended),
		audit:    slices.Clone(st.audit),
	}
}

type tx struct {
	s  *Store
	st state
}

// wallet returns the wallet as this unit sees it: committed state plus staged changes.
func (t *tx) wallet(userID string) (models.Wallet, error) {
	w, ok := t.st.created[userID]
	if !ok {
		t.s.mu.RLock()
		w, ok = t.s.wallets[userID]
		t.s.mu.RUnlock()
	}
	if !ok {
		return models.Wallet{}, fmt.Errorf("wallet for user %s: %w", userID, errs.ErrNotFound)
	}
	w.Balance = w.Balance.Add(t.st.deltas[userID])
	return w, nil
}

func (t *tx) CreateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return models.Wallet{}, err
	}
	if w.UserID == "" {
		return models.Wallet{}, fmt.Errorf("wallet owner: %w", errs.ErrInvalidArgument)
	}
	if w.Balance.IsNegative() {
		return models.Wallet{}, errs.ErrInvalidAmount
	}
	if _, err := t.wallet(w.UserID); err == nil {
		return models.Wallet{}, fmt.Errorf("wallet for user %s: %w", w.UserID, errs.ErrAlreadyExists)
	}
	if w.ID == "" {
		w.ID = models.NewWalletID()
	}
	now := t.s.now()
	w.InitialBalance = w.Balance
	w.CreatedAt, w.UpdatedAt = now, now
	t.st.created[w.UserID] = w
	return w, nil
}

// LockWallets only loads the wallets here: exclusion between units comes
// from the engine's Locker, and commit re-checks balances regardless.
func (t *tx) LockWallets(ctx context.Context, userIDs ...string) (map[string]models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]models.Wallet, len(userIDs))
	for _, uid := range userIDs {
		w, err := t.wallet(uid)
		if err != nil {
			return nil, err
		}
		out[uid] = w
	}
	return out, nil
}

func (t *tx) Debit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return models.Wallet{}, err
	}
	if !amount.IsPositive() {
		return models.Wallet{}, errs.ErrInvalidAmount
	}
	w, err := t.wallet(userID)
	if err != nil {
		return models.Wallet{}, err
	}
	if w.Balance.Cmp(amount) < 0 {
		return models.Wallet{}, fmt.Errorf("debit %s of %s: %w", amount, userID, errs.ErrInsufficientFunds)
	}
	t.st.deltas[userID] = t.st.deltas[userID].Sub(amount)
	w.Balance = w.Balance.Sub(amount)
	return w, nil
}

func (t *tx) Credit(ctx context.Context, userID string, amount money.Money) (models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return models.Wallet{}, err
	}
	if !amount.IsPositive() {
		return models.Wallet{}, errs.ErrInvalidAmount
	}
	w, err := t.wallet(userID)
	if err != nil {
		return models.Wallet{}, err
	}
	bal, ok := w.Balance.CheckedAdd(amount)
	if !ok {
		return models.Wallet{}, fmt.Errorf("credit %s to %s overflows balance: %w", amount, userID, errs.ErrInvalidAmount)
	}
	t.st.deltas[userID] = t.st.deltas[userID].Add(amount)
	w.Balance = bal
	return w, nil
}

func (t *tx) Append(ctx context.Context, rec models.Transaction) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}
	if !rec.Type.Valid() {
		return models.Transaction{}, fmt.Errorf("transaction type %q: %w", rec.Type, errs.ErrInvalidArgument)
	}
	now := t.s.now()
	if rec.ID == "" {
		rec.ID = models.NewTransactionID(now)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.Status == "" {
		rec.Status = models.TxnPending
	}
	if _, ok := t.st.txns[rec.ID]; ok {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", rec.ID, errs.ErrAlreadyExists)
	}
	t.st.txns[rec.ID] = rec
	t.st.appended[rec.ID] = true
	return rec, nil
}

func (t *tx) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Terminal() {
		return fmt.Errorf("status %q: %w", status, errs.ErrInvalidArgument)
	}
	rec, ok := t.st.txns[id]
	if !ok {
		t.s.mu.RLock()
		rec, ok = t.s.txns[id]
		t.s.mu.RUnlock()
	}
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, errs.ErrNotFound)
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("transaction %s: %w", id, errs.ErrImmutable)
	}
	rec.Status = status
	rec.FailureReason = reason
	t.st.txns[id] = rec
	return nil
}

func (t *tx) Audit(ctx context.Context, l models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = t.s.now()
	}
	t.st.audit = append(t.st.audit, l)
	return nil
}

func (t *tx) Savepoint(ctx context.Context, fn func(repository.Tx) error) error {
	snap := t.st.clone()
	if err := fn(t); err != nil {
		t.st = snap
		return err
	}
	return nil
}
