// Package events publishes finalized ledger records to interested sinks.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/metrics"
	"github.com/baharkarakas/wallet-engine/internal/models"
)

type Event struct {
	Type        string             `json:"event_type"`
	Transaction models.Transaction `json:"transaction"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func NewEvent(t models.Transaction) Event {
	return Event{Type: t.EventName(), Transaction: t, OccurredAt: time.Now().UTC()}
}

// Recipients are the wallet owners touched by the record.
func (e Event) Recipients() []string {
	var out []string
	if s := e.Transaction.SenderID; s != nil {
		out = append(out, *s)
	}
	if r := e.Transaction.ReceiverID; r != nil && (len(out) == 0 || out[0] != *r) {
		out = append(out, *r)
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout hands every event to each named sink. One sink failing does not
// stop the others.
type Fanout struct {
	names []string
	sinks []Publisher
}

func NewFanout() *Fanout { return &Fanout{} }

func (f *Fanout) Add(name string, p Publisher) *Fanout {
	f.names = append(f.names, name)
	f.sinks = append(f.sinks, p)
	return f
}

func (f *Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for i, p := range f.sinks {
		result := "ok"
		if err := p.Publish(ctx, e); err != nil {
			result = "error"
			slog.Warn("publish event", "sink", f.names[i], "event", e.Type, "transaction_id", e.Transaction.ID, "err", err)
			errs = append(errs, err)
		}
		metrics.EventsPublished.WithLabelValues(f.names[i], result).Inc()
	}
	return errors.Join(errs...)
}

// Log writes events to the process log.
type Log struct{ Logger *slog.Logger }

func (l Log) Publish(ctx context.Context, e Event) error {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.InfoContext(ctx, "ledger event",
		"event", e.Type,
		"transaction_id", e.Transaction.ID,
		"type", e.Transaction.Type,
		"amount", e.Transaction.Amount.String(),
	)
	return nil
}
