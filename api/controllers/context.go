package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/api/middleware"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/pagination"
)

// requestUserID pulls the authenticated user id seeded by the auth
// middleware. A missing or malformed id means the middleware did not
// run, which is a wiring bug rather than a client error.
func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// requestTier reads the subscription tier claim, defaulting to free
// when the claim is absent or unknown.
func requestTier(r *http.Request) enums.SubscriptionTier {
	tier, err := enums.ParseSubscriptionTier(middleware.TierFromContext(r.Context()))
	if err != nil {
		return enums.SubscriptionTierFree
	}
	return tier
}

// queryLimit parses the optional ?limit query parameter, falling back
// to the handler's default and capping at the pagination maximum.
func queryLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer")
	}
	return pagination.NormalizeLimit(parsed), nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
