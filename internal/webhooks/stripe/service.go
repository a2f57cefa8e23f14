package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/internal/credits"
	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	UpdateTier(ctx context.Context, id uuid.UUID, tier enums.SubscriptionTier) error
	UpdateStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type creditGranter interface {
	Grant(ctx context.Context, input credits.GrantInput) (*models.CreditLedgerEntry, error)
}

// ServiceParams bundles the webhook service dependencies.
type ServiceParams struct {
	UserRepo      userStore
	CreditGranter creditGranter
	Logger        *logger.Logger
}

// Service applies Stripe billing events to local accounts: credit
// top-ups, tier upgrades, and subscription cancellations.
type Service struct {
	users userStore
	gate  creditGranter
	logg  *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.CreditGranter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credit granter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		users: params.UserRepo,
		gate:  params.CreditGranter,
		logg:  params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.handleSubscriptionDeleted(ctx, &sub)
	default:
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	user, err := s.resolveUser(ctx, session)
	if err != nil {
		return err
	}

	if session.Customer != nil && session.Customer.ID != "" {
		if user.StripeCustomerID == nil || *user.StripeCustomerID != session.Customer.ID {
			if err := s.users.UpdateStripeCustomerID(ctx, user.ID, session.Customer.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stripe customer")
			}
		}
	}

	switch session.Mode {
	case stripe.CheckoutSessionModePayment:
		return s.applyTopUp(ctx, user, session)
	case stripe.CheckoutSessionModeSubscription:
		return s.applySubscription(ctx, user, session)
	default:
		return nil
	}
}

// applyTopUp credits the purchased pack. The grant is keyed off checkout
// metadata written by the billing service.
func (s *Service) applyTopUp(ctx context.Context, user *models.User, session *stripe.CheckoutSession) error {
	raw := session.Metadata["credits"]
	creditsBought, err := strconv.Atoi(raw)
	if err != nil || creditsBought <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credits metadata %q", raw))
	}

	metadata, _ := json.Marshal(map[string]string{"checkout_session": session.ID})
	if _, err := s.gate.Grant(ctx, credits.GrantInput{
		UserID:   user.ID,
		Amount:   creditsBought,
		Reason:   enums.LedgerReasonPurchase,
		Metadata: metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant purchased credits")
	}

	s.logg.Info(ctx, fmt.Sprintf("credited %d purchased credits to %s", creditsBought, user.ID))
	return nil
}

// applySubscription moves the account to the purchased tier and seeds
// the tier's monthly allowance.
func (s *Service) applySubscription(ctx context.Context, user *models.User, session *stripe.CheckoutSession) error {
	rawPlan := strings.ToLower(strings.TrimSpace(session.Metadata["plan"]))
	tier, err := enums.ParseSubscriptionTier(rawPlan)
	if err != nil || tier == enums.SubscriptionTierFree {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid plan metadata %q", rawPlan))
	}
	if tier == user.Tier {
		return nil
	}

	if err := s.users.UpdateTier(ctx, user.ID, tier); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tier")
	}

	if allowance := tier.MonthlyAllowance(); allowance > 0 {
		metadata, _ := json.Marshal(map[string]string{
			"checkout_session": session.ID,
			"plan":             tier.String(),
		})
		if _, err := s.gate.Grant(ctx, credits.GrantInput{
			UserID:   user.ID,
			Amount:   allowance,
			Reason:   enums.LedgerReasonPlanAllowance,
			Metadata: metadata,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant plan allowance")
		}
	}

	s.logg.Info(ctx, fmt.Sprintf("moved %s to the %s plan", user.ID, tier))
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil || sub.Customer.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id missing")
	}
	user, err := s.users.FindByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// customer unknown locally; nothing to downgrade
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
	}
	if user.Tier == enums.SubscriptionTierFree {
		return nil
	}
	if err := s.users.UpdateTier(ctx, user.ID, enums.SubscriptionTierFree); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "downgrade tier")
	}
	s.logg.Info(ctx, fmt.Sprintf("downgraded %s to the free plan", user.ID))
	return nil
}

func (s *Service) resolveUser(ctx context.Context, session *stripe.CheckoutSession) (*models.User, error) {
	raw := session.Metadata["user_id"]
	if raw == "" {
		raw = session.ClientReferenceID
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id missing from checkout session")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return user, nil
}
