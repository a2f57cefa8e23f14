package credits

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

type fakeRepository struct {
	balances map[uuid.UUID]int
	entries  []models.CreditLedgerEntry
	writes   int
}

func newFakeRepository(userID uuid.UUID, balance int) *fakeRepository {
	return &fakeRepository{balances: map[uuid.UUID]int{userID: balance}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	return balance, nil
}

func (f *fakeRepository) DecrementBalance(ctx context.Context, userID uuid.UUID, cost int) (bool, int, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return false, 0, gorm.ErrRecordNotFound
	}
	if balance < cost {
		return false, balance, nil
	}
	f.writes++
	f.balances[userID] = balance - cost
	return true, balance - cost, nil
}

func (f *fakeRepository) IncrementBalance(ctx context.Context, userID uuid.UUID, amount int) (int, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	f.writes++
	f.balances[userID] = balance + amount
	return balance + amount, nil
}

func (f *fakeRepository) CreateLedgerEntry(ctx context.Context, entry *models.CreditLedgerEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRepository) ListLedgerEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	return f.entries, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestAuthorizeDeniesOnlyWhenBalanceBelowCost(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRepository(userID, 5)
	svc := newTestService(t, repo)

	if err := svc.Authorize(context.Background(), userID, 5); err != nil {
		t.Fatalf("balance equal to cost must pass: %v", err)
	}

	err := svc.Authorize(context.Background(), userID, 6)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	details, ok := typed.Details().(map[string]int)
	if !ok || details["required"] != 6 || details["available"] != 5 {
		t.Fatalf("unexpected denial details: %v", typed.Details())
	}
}

func TestAuthorizeNeverMutates(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRepository(userID, 2)
	svc := newTestService(t, repo)

	_ = svc.Authorize(context.Background(), userID, 5)
	_ = svc.Authorize(context.Background(), userID, 1)

	if repo.writes != 0 {
		t.Fatalf("authorize must be read-only, saw %d writes", repo.writes)
	}
	if repo.balances[userID] != 2 {
		t.Fatalf("balance changed to %d", repo.balances[userID])
	}
	if len(repo.entries) != 0 {
		t.Fatalf("authorize wrote %d ledger entries", len(repo.entries))
	}
}

func TestDebitWritesLedgerEntry(t *testing.T) {
	userID := uuid.New()
	runID := uuid.New()
	repo := newFakeRepository(userID, 10)
	svc := newTestService(t, repo)

	entry, err := svc.Debit(context.Background(), DebitInput{
		UserID: userID,
		Cost:   CostProduction,
		Kind:   enums.JobKindVideo,
		RunID:  &runID,
	})
	if err != nil {
		t.Fatalf("Debit error: %v", err)
	}
	if entry.Delta != -CostProduction || entry.BalanceAfter != 5 {
		t.Fatalf("unexpected entry: delta=%d balance_after=%d", entry.Delta, entry.BalanceAfter)
	}
	if entry.Reason != enums.LedgerReasonGenerationDebit {
		t.Fatalf("unexpected reason %q", entry.Reason)
	}
	if entry.RunID == nil || *entry.RunID != runID {
		t.Fatal("run linkage missing")
	}
	if repo.balances[userID] != 5 {
		t.Fatalf("balance not decremented: %d", repo.balances[userID])
	}
}

func TestDebitIsConditional(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRepository(userID, 6)
	svc := newTestService(t, repo)

	if _, err := svc.Debit(context.Background(), DebitInput{UserID: userID, Cost: 5, Kind: enums.JobKindVideo}); err != nil {
		t.Fatalf("first debit should pass: %v", err)
	}

	_, err := svc.Debit(context.Background(), DebitInput{UserID: userID, Cost: 5, Kind: enums.JobKindVideo})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if repo.balances[userID] != 1 {
		t.Fatalf("balance went to %d, must never dip below zero", repo.balances[userID])
	}
	if len(repo.entries) != 1 {
		t.Fatalf("denied debit must not write a ledger entry, have %d", len(repo.entries))
	}
}

func TestRefundRestoresBalance(t *testing.T) {
	userID := uuid.New()
	runID := uuid.New()
	repo := newFakeRepository(userID, 0)
	svc := newTestService(t, repo)

	entry, err := svc.Refund(context.Background(), RefundInput{UserID: userID, Amount: 5, RunID: &runID})
	if err != nil {
		t.Fatalf("Refund error: %v", err)
	}
	if entry.Delta != 5 || entry.Reason != enums.LedgerReasonGenerationRefund {
		t.Fatalf("unexpected refund entry: %+v", entry)
	}
	if repo.balances[userID] != 5 {
		t.Fatalf("balance not restored: %d", repo.balances[userID])
	}
}

func TestGrantValidatesReason(t *testing.T) {
	userID := uuid.New()
	repo := newFakeRepository(userID, 0)
	svc := newTestService(t, repo)

	if _, err := svc.Grant(context.Background(), GrantInput{UserID: userID, Amount: 10, Reason: enums.LedgerReasonGenerationDebit}); err == nil {
		t.Fatal("expected invalid reason to be rejected")
	}

	entry, err := svc.Grant(context.Background(), GrantInput{UserID: userID, Amount: 120, Reason: enums.LedgerReasonPurchase})
	if err != nil {
		t.Fatalf("Grant error: %v", err)
	}
	if entry.Delta != 120 || entry.BalanceAfter != 120 {
		t.Fatalf("unexpected grant entry: %+v", entry)
	}
}
