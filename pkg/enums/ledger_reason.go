package enums

import "fmt"

// LedgerReason explains why a credit ledger entry was written.
type LedgerReason string

const (
	LedgerReasonGenerationDebit  LedgerReason = "generation_debit"
	LedgerReasonGenerationRefund LedgerReason = "generation_refund"
	LedgerReasonPurchase         LedgerReason = "purchase"
	LedgerReasonPlanAllowance    LedgerReason = "plan_allowance"
)

var validLedgerReasons = []LedgerReason{
	LedgerReasonGenerationDebit,
	LedgerReasonGenerationRefund,
	LedgerReasonPurchase,
	LedgerReasonPlanAllowance,
}

// IsValid reports whether the value is a known LedgerReason.
func (l LedgerReason) IsValid() bool {
	for _, candidate := range validLedgerReasons {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerReason converts the raw string to LedgerReason.
func ParseLedgerReason(value string) (LedgerReason, error) {
	for _, candidate := range validLedgerReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger reason %q", value)
}
