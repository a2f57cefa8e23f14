package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

type stubUserFinder struct {
	users       map[uuid.UUID]*models.User
	updatedName string
}

func (s *stubUserFinder) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserFinder) UpdateDisplayName(_ context.Context, id uuid.UUID, displayName string) error {
	s.updatedName = displayName
	if user, ok := s.users[id]; ok {
		user.DisplayName = displayName
	}
	return nil
}

func TestProfileReportsAllowanceForTier(t *testing.T) {
	userID := uuid.New()
	repo := &stubUserFinder{users: map[uuid.UUID]*models.User{
		userID: {
			ID:            userID,
			Email:         "pro@example.com",
			DisplayName:   "Pro User",
			Tier:          enums.SubscriptionTierPro,
			CreditBalance: 42,
		},
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	profile, err := svc.Profile(context.Background(), userID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.CreditBalance != 42 {
		t.Fatalf("expected balance 42, got %d", profile.CreditBalance)
	}
	if want := enums.SubscriptionTierPro.MonthlyAllowance(); profile.MonthlyAllowance != want {
		t.Fatalf("expected allowance %d, got %d", want, profile.MonthlyAllowance)
	}
}

func TestProfileUnknownAccount(t *testing.T) {
	svc, err := NewService(&stubUserFinder{users: map[uuid.UUID]*models.User{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Profile(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProfileTrimsDisplayName(t *testing.T) {
	userID := uuid.New()
	repo := &stubUserFinder{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, DisplayName: "Old Name", Tier: enums.SubscriptionTierFree},
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	name := "  New Name  "
	profile, err := svc.UpdateProfile(context.Background(), userID, UpdateProfileInput{DisplayName: &name})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if profile.DisplayName != "New Name" {
		t.Fatalf("expected trimmed name, got %q", profile.DisplayName)
	}
	if repo.updatedName != "New Name" {
		t.Fatalf("expected repo write %q, got %q", "New Name", repo.updatedName)
	}
}

func TestUpdateProfileRejectsBlankName(t *testing.T) {
	userID := uuid.New()
	repo := &stubUserFinder{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, DisplayName: "Keep Me"},
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	blank := "   "
	_, err = svc.UpdateProfile(context.Background(), userID, UpdateProfileInput{DisplayName: &blank})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.updatedName != "" {
		t.Fatalf("expected no repo write, got %q", repo.updatedName)
	}
}

func TestUpdateProfileNoChangesReturnsCurrent(t *testing.T) {
	userID := uuid.New()
	repo := &stubUserFinder{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, DisplayName: "Unchanged"},
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	profile, err := svc.UpdateProfile(context.Background(), userID, UpdateProfileInput{})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if profile.DisplayName != "Unchanged" {
		t.Fatalf("expected unchanged profile, got %q", profile.DisplayName)
	}
}
