package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/api/responses"
	"github.com/gostly/gostly-backend/internal/billing"
	"github.com/gostly/gostly-backend/internal/usage"
	"github.com/gostly/gostly-backend/pkg/logger"
)

type usageSummarizer interface {
	Summary(ctx context.Context, ownerID uuid.UUID) (usage.Summary, error)
}

// BillingUsage reports the current month's metered turns against the plan.
func BillingUsage(gate usageSummarizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := gate.Summary(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func BillingProfile(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Profile(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBillingProfileResponse(profile))
	}
}

// BillingCancel stops renewal at the end of the paid period.
func BillingCancel(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.CancelAtPeriodEnd(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(r.Context(), "billing.cancel_scheduled")
		}
		responses.WriteSuccess(w, newBillingProfileResponse(profile))
	}
}
