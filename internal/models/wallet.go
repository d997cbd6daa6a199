package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/wallet-engine/internal/money"
)

type Wallet struct {
	ID             string      `json:"wallet_id"`
	UserID         string      `json:"user_id"`
	Balance        money.Money `json:"balance"`
	InitialBalance money.Money `json:"initial_balance"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func NewWalletID() string { return uuid.NewString() }

type AdjustAction string

const (
	AdjustAdd    AdjustAction = "add"
	AdjustDeduct AdjustAction = "deduct"
)

func (a AdjustAction) Valid() bool { return a == AdjustAdd || a == AdjustDeduct }

// Reconciliation compares a wallet's balance with the one implied by its
// completed transaction history.
type Reconciliation struct {
	WalletID       string      `json:"wallet_id"`
	UserID         string      `json:"user_id"`
	InitialBalance money.Money `json:"initial_balance"`
	Balance        money.Money `json:"balance"`
	Expected       money.Money `json:"expected"`
	Transactions   int         `json:"transactions"`
	Consistent     bool        `json:"consistent"`
}

type SystemStats struct {
	Wallets           int                     `json:"wallets"`
	TotalBalance      money.Money             `json:"total_balance"`
	FeesCollected     money.Money             `json:"fees_collected"`
	TransactionCounts map[TransactionType]int `json:"transaction_counts"`
	FailedCount       int                     `json:"failed_count"`
}
