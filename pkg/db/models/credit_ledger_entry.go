package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// CreditLedgerEntry records an immutable credit balance mutation.
// Delta is negative for debits, positive for refunds and top-ups.
type CreditLedgerEntry struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Delta        int                `gorm:"column:delta;not null"`
	Reason       enums.LedgerReason `gorm:"column:reason;type:ledger_reason;not null"`
	JobID        *uuid.UUID         `gorm:"column:job_id;type:uuid"`
	RunID        *uuid.UUID         `gorm:"column:run_id;type:uuid"`
	BalanceAfter int                `gorm:"column:balance_after;not null"`
	Metadata     json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
