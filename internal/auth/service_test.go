package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/internal/credits"
	"github.com/dramaforge/dramaforge-backend/internal/users"
	pkgauth "github.com/dramaforge/dramaforge-backend/pkg/auth"
	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "dramaforge",
	ExpirationMinutes: 30,
}

func TestServiceRegisterSeedsFreeAllowance(t *testing.T) {
	repo := newStubUserRepo(nil)
	granter := &stubGranter{}
	svc := buildTestService(t, repo, granter)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "Maker@Example.com",
		Password:    "long-enough-pass",
		DisplayName: "Maker",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if resp.User.Email != "maker@example.com" {
		t.Fatalf("email not normalized, got %s", resp.User.Email)
	}
	if resp.User.Tier != enums.SubscriptionTierFree {
		t.Fatalf("expected free tier, got %s", resp.User.Tier)
	}
	if granter.amount != enums.SubscriptionTierFree.MonthlyAllowance() {
		t.Fatalf("expected allowance grant of %d, got %d", enums.SubscriptionTierFree.MonthlyAllowance(), granter.amount)
	}
	if granter.reason != enums.LedgerReasonPlanAllowance {
		t.Fatalf("expected plan_allowance grant, got %s", granter.reason)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
}

func TestServiceRegisterRejectsDuplicateEmail(t *testing.T) {
	existing := &models.User{ID: uuid.New(), Email: "taken@example.com", IsActive: true}
	repo := newStubUserRepo(existing)
	svc := buildTestService(t, repo, &stubGranter{})

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "taken@example.com",
		Password:    "long-enough-pass",
		DisplayName: "Dup",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestServiceLoginCarriesTierClaim(t *testing.T) {
	password := "pro-user-pass"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "pro@example.com",
		PasswordHash: mustHashPassword(t, password),
		DisplayName:  "Pro",
		Tier:         enums.SubscriptionTierPro,
		IsActive:     true,
	}
	repo := newStubUserRepo(user)
	svc := buildTestService(t, repo, &stubGranter{})

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Tier != enums.SubscriptionTierPro {
		t.Fatalf("expected pro tier claim, got %s", claims.Tier)
	}
	if claims.UserID != user.ID {
		t.Fatalf("wrong subject in claims")
	}
	if user.LastLoginAt == nil {
		t.Fatal("expected last login to be recorded")
	}
}

func TestServiceLoginRejectsBadPassword(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "x@example.com",
		PasswordHash: mustHashPassword(t, "right-password"),
		IsActive:     true,
	}
	svc := buildTestService(t, newStubUserRepo(user), &stubGranter{})

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "wrong-password"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceLoginRejectsInactiveAccount(t *testing.T) {
	password := "some-password"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "gone@example.com",
		PasswordHash: mustHashPassword(t, password),
		IsActive:     false,
	}
	svc := buildTestService(t, newStubUserRepo(user), &stubGranter{})

	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	password := "basic-pass-123"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "basic@example.com",
		PasswordHash: mustHashPassword(t, password),
		Tier:         enums.SubscriptionTierBasic,
		IsActive:     true,
	}
	repo := newStubUserRepo(user)
	svc := buildTestService(t, repo, &stubGranter{})

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == login.AccessToken {
		t.Fatal("expected a newly minted access token")
	}

	// the old refresh token is single-use
	if _, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	}); err == nil {
		t.Fatal("expected replayed refresh to be rejected")
	}
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	password := "bye-bye-pass"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "bye@example.com",
		PasswordHash: mustHashPassword(t, password),
		IsActive:     true,
	}
	svc := buildTestService(t, newStubUserRepo(user), &stubGranter{})

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), login.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	}); err == nil {
		t.Fatal("expected refresh after logout to be rejected")
	}
}

func buildTestService(t *testing.T, repo *stubUserRepo, granter *stubGranter) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: newStubSessionManager(),
		CreditGranter:  granter,
		JWTConfig:      testJWTConfig,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubUserRepo struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
}

func newStubUserRepo(seed *models.User) *stubUserRepo {
	repo := &stubUserRepo{
		byEmail: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
	}
	if seed != nil {
		repo.byEmail[seed.Email] = seed
		repo.byID[seed.ID] = seed
	}
	return repo
}

func (s *stubUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	user.ID = uuid.New()
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if user, ok := s.byID[id]; ok {
		user.LastLoginAt = &at
	}
	return nil
}

type stubGranter struct {
	amount int
	reason enums.LedgerReason
}

func (s *stubGranter) Grant(ctx context.Context, input credits.GrantInput) (*models.CreditLedgerEntry, error) {
	s.amount = input.Amount
	s.reason = input.Reason
	return &models.CreditLedgerEntry{UserID: input.UserID, Delta: input.Amount}, nil
}

type stubSessionManager struct {
	sessions map[string]string
	counter  int
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{sessions: make(map[string]string)}
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	s.counter++
	token := uuid.NewString()
	s.sessions[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}
	delete(s.sessions, oldAccessID)
	newAccessID := uuid.NewString()
	newToken := uuid.NewString()
	s.sessions[newAccessID] = newToken
	return newAccessID, newToken, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(s.sessions, accessID)
	return nil
}
