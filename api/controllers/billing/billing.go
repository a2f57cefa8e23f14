package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/api/middleware"
	"github.com/dramaforge/dramaforge-backend/api/responses"
	"github.com/dramaforge/dramaforge-backend/api/validators"
	"github.com/dramaforge/dramaforge-backend/internal/billing"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

// Plans exposes the subscription plan and top-up pack catalog. Public:
// the storefront renders pricing before sign-in.
func Plans(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"plans": svc.Plans(r.Context()),
			"packs": svc.TopUpPacks(r.Context()),
		})
	}
}

// Checkout opens a hosted Stripe checkout session for a plan change or
// a credit top-up.
func Checkout(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		raw := middleware.UserIDFromContext(r.Context())
		userID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body billing.CheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CreateCheckout(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
