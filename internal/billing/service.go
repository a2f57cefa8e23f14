package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

// CheckoutRequest selects either a subscription plan or a credit top-up
// pack; exactly one must be set.
type CheckoutRequest struct {
	Plan       string `json:"plan,omitempty" validate:"omitempty,oneof=basic pro"`
	CreditPack int    `json:"credit_pack,omitempty" validate:"omitempty,min=1"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// CheckoutResponse carries the hosted checkout session handle.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Service creates Stripe checkout sessions and exposes the plan catalog.
type Service interface {
	Plans(ctx context.Context) []Plan
	TopUpPacks(ctx context.Context) []TopUpPack
	CreateCheckout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResponse, error)
}

type userSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	stripe    StripeCheckoutClient
	users     userSource
	stripeCfg config.StripeConfig
}

// ServiceParams bundles the billing service dependencies.
type ServiceParams struct {
	StripeClient StripeCheckoutClient
	UserRepo     userSource
	StripeConfig config.StripeConfig
}

// NewService constructs the billing service.
func NewService(params ServiceParams) (Service, error) {
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client is required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return &service{
		stripe:    params.StripeClient,
		users:     params.UserRepo,
		stripeCfg: params.StripeConfig,
	}, nil
}

func (s *service) Plans(ctx context.Context) []Plan {
	return Catalog(s.stripeCfg)
}

func (s *service) TopUpPacks(ctx context.Context) []TopUpPack {
	return Packs()
}

func (s *service) CreateCheckout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	hasPlan := strings.TrimSpace(req.Plan) != ""
	if hasPlan == (req.CreditPack > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "specify exactly one of plan or credit_pack")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(user.ID.String()),
	}
	if user.StripeCustomerID != nil {
		params.Customer = stripe.String(*user.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}
	params.AddMetadata("user_id", user.ID.String())

	if hasPlan {
		if err := s.applyPlan(params, req.Plan, user.Tier); err != nil {
			return nil, err
		}
	} else {
		if err := s.applyTopUp(params, req.CreditPack); err != nil {
			return nil, err
		}
	}

	checkout, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &CheckoutResponse{SessionID: checkout.ID, URL: checkout.URL}, nil
}

func (s *service) applyPlan(params *stripe.CheckoutSessionParams, rawPlan string, currentTier enums.SubscriptionTier) error {
	tier, err := enums.ParseSubscriptionTier(strings.ToLower(strings.TrimSpace(rawPlan)))
	if err != nil || tier == enums.SubscriptionTierFree {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown plan %q", rawPlan))
	}
	if tier == currentTier {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("already subscribed to the %s plan", tier))
	}
	plan := PlanForTier(s.stripeCfg, tier)
	if plan == nil || plan.StripePriceID == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("no stripe price configured for the %s plan", tier))
	}

	params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
		Price:    stripe.String(plan.StripePriceID),
		Quantity: stripe.Int64(1),
	}}
	params.AddMetadata("plan", plan.Tier.String())
	return nil
}

func (s *service) applyTopUp(params *stripe.CheckoutSessionParams, credits int) error {
	pack := PackForCredits(credits)
	if pack == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no %d-credit pack available", credits))
	}

	unitAmount := pack.Price.Mul(decimalHundred).IntPart()
	params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String("usd"),
			UnitAmount: stripe.Int64(unitAmount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(fmt.Sprintf("%d generation credits", pack.Credits)),
			},
		},
		Quantity: stripe.Int64(1),
	}}
	params.AddMetadata("credits", strconv.Itoa(pack.Credits))
	return nil
}
