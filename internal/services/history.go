package services

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func normalizePage(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit < 0 || limit > MaxPageSize {
		return 0, 0, fmt.Errorf("limit must be between 1 and %d: %w", MaxPageSize, errs.ErrInvalidArgument)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset must not be negative: %w", errs.ErrInvalidArgument)
	}
	return limit, offset, nil
}

func (s *TransactionService) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return s.store.Transactions().GetByID(ctx, id)
}

// GetForUser hides records userID is not a party to behind ErrNotFound.
func (s *TransactionService) GetForUser(ctx context.Context, id, userID string) (models.Transaction, error) {
	t, err := s.store.Transactions().GetByID(ctx, id)
	if err != nil {
		return t, err
	}
	if !t.IsSender(userID) && !t.IsReceiver(userID) {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", id, errs.ErrNotFound)
	}
	return t, nil
}

// List returns userID's history, newest first.
func (s *TransactionService) List(ctx context.Context, userID string, filter models.Filter, limit, offset int) ([]models.Transaction, error) {
	limit, offset, err := normalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Wallets().GetByUser(ctx, userID); err != nil {
		return nil, errs.Op("list_transactions", userID, err)
	}
	return s.store.Transactions().List(ctx, models.TxnQuery{
		UserID: userID,
		Filter: filter,
		Limit:  limit,
		Offset: offset,
	})
}

// Iterate walks every record matching q page by page, fetching lazily.
// Each range over the result starts again from q.Offset.
func (s *TransactionService) Iterate(ctx context.Context, q models.TxnQuery, pageSize int) iter.Seq2[models.Transaction, error] {
	if pageSize <= 0 {
		pageSize = MaxPageSize
	}
	return func(yield func(models.Transaction, error) bool) {
		page := q
		page.Limit = pageSize
		for {
			batch, err := s.store.Transactions().List(ctx, page)
			if err != nil {
				yield(models.Transaction{}, err)
				return
			}
			for _, t := range batch {
				if !yield(t, nil) {
					return
				}
			}
			if len(batch) < pageSize {
				return
			}
			page.Offset += len(batch)
		}
	}
}

// MonthWindow is the calendar month containing t, in t's location.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}

// Aggregate sums userID's completed records in [from, to). A zero window
// means the current calendar month (UTC).
func (s *TransactionService) Aggregate(ctx context.Context, userID string, from, to time.Time) (models.Aggregate, error) {
	if from.IsZero() && to.IsZero() {
		from, to = MonthWindow(s.now().UTC())
	}
	if !to.IsZero() && !from.Before(to) {
		return models.Aggregate{}, fmt.Errorf("window start must precede its end: %w", errs.ErrInvalidArgument)
	}
	if _, err := s.store.Wallets().GetByUser(ctx, userID); err != nil {
		return models.Aggregate{}, errs.Op("aggregate", userID, err)
	}
	return s.store.Transactions().Aggregate(ctx, models.TxnQuery{UserID: userID, From: from, To: to})
}
