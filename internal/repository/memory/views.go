package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/models"
)

type walletsView struct{ s *Store }

func (v walletsView) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	w, ok := v.s.wallets[userID]
	if !ok {
		return models.Wallet{}, fmt.Errorf("wallet for user %s: %w", userID, errs.ErrNotFound)
	}
	return w, nil
}

func (v walletsView) GetByID(ctx context.Context, walletID string) (models.Wallet, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	uid, ok := v.s.walletIDs[walletID]
	if !ok {
		return models.Wallet{}, fmt.Errorf("wallet %s: %w", walletID, errs.ErrNotFound)
	}
	return v.s.wallets[uid], nil
}

func (v walletsView) List(ctx context.Context, limit, offset int) ([]models.Wallet, error) {
	v.s.mu.RLock()
	out := make([]models.Wallet, 0, len(v.s.wallets))
	for _, w := range v.s.wallets {
		out = append(out, w)
	}
	v.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Wallet) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return page(out, limit, offset), nil
}

type txnsView struct{ s *Store }

func (v txnsView) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	t, ok := v.s.txns[id]
	if !ok {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", id, errs.ErrNotFound)
	}
	return t, nil
}

func (v txnsView) List(ctx context.Context, q models.TxnQuery) ([]models.Transaction, error) {
	v.s.mu.RLock()
	var out []models.Transaction
	for _, t := range v.s.txns {
		if q.Match(t) {
			out = append(out, t)
		}
	}
	v.s.mu.RUnlock()

	slices.SortFunc(out, newestFirst)
	return page(out, q.Limit, q.Offset), nil
}

func (v txnsView) Aggregate(ctx context.Context, q models.TxnQuery) (models.Aggregate, error) {
	q.Status = models.TxnCompleted
	q.Filter = models.FilterAll
	q.Limit, q.Offset = 0, 0
	agg := models.Aggregate{UserID: q.UserID, From: q.From, To: q.To}

	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, t := range v.s.txns {
		if !q.Match(t) {
			continue
		}
		if t.IsSender(q.UserID) {
			agg.TotalSent = agg.TotalSent.Add(t.Amount)
			agg.FeesPaid = agg.FeesPaid.Add(t.Fee)
			agg.SentCount++
		}
		if t.IsReceiver(q.UserID) {
			agg.TotalReceived = agg.TotalReceived.Add(t.Amount)
			agg.ReceivedCount++
		}
	}
	return agg, nil
}

type auditView struct{ s *Store }

func (v auditView) List(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []models.AuditLog
	for i := len(v.s.audit) - 1; i >= 0; i-- {
		l := v.s.audit[i]
		if entityType != "" && l.EntityType != entityType {
			continue
		}
		if entityID != "" && (l.EntityID == nil || *l.EntityID != entityID) {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func newestFirst(a, b models.Transaction) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// page applies offset/limit; limit <= 0 means no limit.
func page[T any](s []T, limit, offset int) []T {
	if offset >= len(s) {
		return []T{}
	}
	if offset > 0 {
		s = s[offset:]
	}
	if limit > 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}
