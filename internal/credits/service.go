package credits

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/metrics"
)

// Credit costs per generation kind. A full production run is priced as a
// bundle rather than per provider call.
const (
	CostScript     = 1
	CostImage      = 1
	CostClip       = 1
	CostAudio      = 1
	CostProduction = 5
	CostVoiceClone = 5
)

// Service is the credit gate: every generation passes Authorize before any
// provider call and Debit before work is recorded as charged.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	Authorize(ctx context.Context, userID uuid.UUID, cost int) error
	Debit(ctx context.Context, input DebitInput) (*models.CreditLedgerEntry, error)
	Refund(ctx context.Context, input RefundInput) (*models.CreditLedgerEntry, error)
	Grant(ctx context.Context, input GrantInput) (*models.CreditLedgerEntry, error)
	ListLedger(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.GenerationMetrics
}

// DebitInput describes one conditional balance decrement.
type DebitInput struct {
	UserID   uuid.UUID
	Cost     int
	Kind     enums.JobKind
	JobID    *uuid.UUID
	RunID    *uuid.UUID
	Metadata json.RawMessage
}

// RefundInput returns previously debited credits after a failed generation.
type RefundInput struct {
	UserID   uuid.UUID
	Amount   int
	JobID    *uuid.UUID
	RunID    *uuid.UUID
	Metadata json.RawMessage
}

// GrantInput credits a balance from a purchase or a plan allowance.
type GrantInput struct {
	UserID   uuid.UUID
	Amount   int
	Reason   enums.LedgerReason
	Metadata json.RawMessage
}

// NewService wires the credit gate with its repository and transaction runner.
func NewService(repo Repository, tx txRunner, generationMetrics *metrics.GenerationMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: generationMetrics}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit balance")
	}
	return balance, nil
}

// Authorize is a read-only admission check. It never mutates the balance;
// callers still need Debit, which re-checks under the conditional update.
func (s *service) Authorize(ctx context.Context, userID uuid.UUID, cost int) error {
	if cost <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cost must be positive")
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < cost {
		return insufficientCredits(cost, balance)
	}
	return nil
}

func (s *service) Debit(ctx context.Context, input DebitInput) (*models.CreditLedgerEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Cost <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost must be positive")
	}

	var entry *models.CreditLedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, balance, err := repo.DecrementBalance(ctx, input.UserID, input.Cost)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit credit balance")
		}
		if !applied {
			return insufficientCredits(input.Cost, balance)
		}

		entry = &models.CreditLedgerEntry{
			UserID:       input.UserID,
			Delta:        -input.Cost,
			Reason:       enums.LedgerReasonGenerationDebit,
			JobID:        input.JobID,
			RunID:        input.RunID,
			BalanceAfter: balance,
			Metadata:     input.Metadata,
		}
		if err := repo.CreateLedgerEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write ledger entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddCreditsDebited(input.Kind.String(), input.Cost)
	return entry, nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*models.CreditLedgerEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	return s.credit(ctx, input.UserID, input.Amount, enums.LedgerReasonGenerationRefund, input.JobID, input.RunID, input.Metadata)
}

func (s *service) Grant(ctx context.Context, input GrantInput) (*models.CreditLedgerEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "grant amount must be positive")
	}
	if input.Reason != enums.LedgerReasonPurchase && input.Reason != enums.LedgerReasonPlanAllowance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid grant reason %q", input.Reason))
	}
	return s.credit(ctx, input.UserID, input.Amount, input.Reason, nil, nil, input.Metadata)
}

func (s *service) ListLedger(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	entries, err := s.repo.ListLedgerEntries(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return entries, nil
}

func (s *service) credit(ctx context.Context, userID uuid.UUID, amount int, reason enums.LedgerReason, jobID, runID *uuid.UUID, metadata json.RawMessage) (*models.CreditLedgerEntry, error) {
	var entry *models.CreditLedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		balance, err := repo.IncrementBalance(ctx, userID, amount)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit balance")
		}
		entry = &models.CreditLedgerEntry{
			UserID:       userID,
			Delta:        amount,
			Reason:       reason,
			JobID:        jobID,
			RunID:        runID,
			BalanceAfter: balance,
			Metadata:     metadata,
		}
		if err := repo.CreateLedgerEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write ledger entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func insufficientCredits(required, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient credits").
		WithDetails(map[string]int{
			"required":  required,
			"available": available,
		})
}
