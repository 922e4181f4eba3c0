package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionSignIn         AuditAction = "SIGN_IN"
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionAddMoney       AuditAction = "ADD_MONEY"
	AuditActionWithdraw       AuditAction = "WITHDRAW"
	AuditActionCompleteTx     AuditAction = "COMPLETE_TRANSACTION"
	AuditActionDepositAddress AuditAction = "DEPOSIT_ADDRESS"
	AuditActionAddBankAccount AuditAction = "ADD_BANK_ACCOUNT"
	AuditActionWebhookCredit  AuditAction = "WEBHOOK_CREDIT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	AccountID    *uuid.UUID  `json:"account_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
