package models

import "time"

const (
	AuditEntityTransaction = "transaction"
	AuditEntityWallet      = "wallet"

	AuditActionAdjusted       = "admin_adjusted"
	AuditActionTxnFailed      = "transaction_failed"
	AuditActionReconcileAlert = "reconciliation_alert"
	AuditActionWalletOpened   = "wallet_opened"
)

type AuditLog struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   *string        `json:"entity_id"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}
