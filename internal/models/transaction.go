package models

import (
	"fmt"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/money"
)

type TransactionType string

const (
	TxnTransfer    TransactionType = "transfer"
	TxnAddFunds    TransactionType = "add_funds"
	TxnAdminAdjust TransactionType = "admin_adjust"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxnTransfer, TxnAddFunds, TxnAdminAdjust:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Terminal() bool { return s == TxnCompleted || s == TxnFailed }

type Transaction struct {
	ID            string            `json:"transaction_id"`
	Type          TransactionType   `json:"type"`
	SenderID      *string           `json:"sender_id"`
	ReceiverID    *string           `json:"receiver_id"`
	Amount        money.Money       `json:"amount"`
	Fee           money.Money       `json:"fee"`
	Note          string            `json:"note,omitempty"`
	Method        string            `json:"method,omitempty"`
	Status        TransactionStatus `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (t Transaction) IsSender(userID string) bool   { return t.SenderID != nil && *t.SenderID == userID }
func (t Transaction) IsReceiver(userID string) bool { return t.ReceiverID != nil && *t.ReceiverID == userID }

// Effect is the signed balance change this record applies to userID once
// completed: senders lose amount+fee, receivers gain amount.
func (t Transaction) Effect(userID string) (money.Money, error) {
	var delta money.Money
	switch t.Type {
	case TxnTransfer, TxnAdminAdjust, TxnAddFunds:
		if t.IsSender(userID) {
			delta = delta.Sub(t.Amount.Add(t.Fee))
		}
		if t.IsReceiver(userID) {
			delta = delta.Add(t.Amount)
		}
	default:
		return 0, fmt.Errorf("unknown transaction type %q", t.Type)
	}
	return delta, nil
}

// EventName is the topic suffix used when publishing this record.
func (t Transaction) EventName() string {
	switch t.Status {
	case TxnCompleted:
		return "transaction.completed"
	case TxnFailed:
		return "transaction.failed"
	}
	return "transaction.pending"
}

type Filter string

const (
	FilterAll      Filter = "all"
	FilterSent     Filter = "sent"
	FilterReceived Filter = "received"
)

func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, true
	case FilterSent:
		return FilterSent, true
	case FilterReceived:
		return FilterReceived, true
	}
	return "", false
}

// Matches applies the history filter for userID to t.
func (f Filter) Matches(t Transaction, userID string) bool {
	sent := t.IsSender(userID)
	received := t.IsReceiver(userID)
	switch f {
	case FilterSent:
		return sent
	case FilterReceived:
		return received
	default:
		return sent || received
	}
}

// TxnQuery selects records from the log. Empty UserID means every record.
type TxnQuery struct {
	UserID string
	Filter Filter
	Status TransactionStatus
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

func (q TxnQuery) Match(t Transaction) bool {
	if q.UserID != "" && !q.Filter.Matches(t, q.UserID) {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if !q.From.IsZero() && t.CreatedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !t.CreatedAt.Before(q.To) {
		return false
	}
	return true
}

// Aggregate is a per-user summary over a time window.
type Aggregate struct {
	UserID        string      `json:"user_id"`
	From          time.Time   `json:"from"`
	To            time.Time   `json:"to"`
	TotalSent     money.Money `json:"total_sent"`
	SentCount     int         `json:"sent_count"`
	FeesPaid      money.Money `json:"fees_paid"`
	TotalReceived money.Money `json:"total_received"`
	ReceivedCount int         `json:"received_count"`
}
