// Package usage meters automated replies against the owner's monthly quota.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/internal/billing"
	"github.com/gostly/gostly-backend/pkg/db/models"
	"github.com/gostly/gostly-backend/pkg/enums"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
)

// Reason explains a rejected increment.
type Reason string

const (
	ReasonNoPlan       Reason = "no_plan"
	ReasonLimitReached Reason = "limit_reached"
)

// Decision is the outcome of one check-and-increment.
type Decision struct {
	Allowed bool
	Reason  Reason
	Used    int
	Limit   int
	Plan    *enums.Plan
	Month   string
}

// Summary is the read-only view shown to owners.
type Summary struct {
	Month            string      `json:"month"`
	Used             int         `json:"used"`
	Limit            int         `json:"limit"`
	Plan             *enums.Plan `json:"plan"`
	Eligible         bool        `json:"eligible"`
	CurrentPeriodEnd *time.Time  `json:"current_period_end,omitempty"`
}

// Gate admits or rejects a reply for an owner.
type Gate interface {
	CheckAndIncrement(ctx context.Context, ownerID uuid.UUID, increment int) (Decision, error)
	Summary(ctx context.Context, ownerID uuid.UUID) (Summary, error)
}

type GateParams struct {
	Billing billing.Repository
	Usage   Repository
	Now     func() time.Time
}

type gate struct {
	billing billing.Repository
	usage   Repository
	now     func() time.Time
}

func NewGate(params GateParams) (Gate, error) {
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing repository required")
	}
	if params.Usage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "usage repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &gate{billing: params.Billing, usage: params.Usage, now: now}, nil
}

// MonthKey formats the UTC month as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Eligible reports whether the profile has a subscription reference or an
// unexpired period.
func Eligible(profile *models.BillingProfile, now time.Time) bool {
	if profile == nil {
		return false
	}
	if profile.StripeSubscriptionID != nil && *profile.StripeSubscriptionID != "" {
		return true
	}
	return profile.CurrentPeriodEnd != nil && now.Before(*profile.CurrentPeriodEnd)
}

// CheckAndIncrement returns an error for any storage failure; callers treat
// that as a rejection.
func (g *gate) CheckAndIncrement(ctx context.Context, ownerID uuid.UUID, increment int) (Decision, error) {
	if increment <= 0 {
		increment = 1
	}
	now := g.now()
	month := MonthKey(now)

	profile, err := g.billing.Ensure(ctx, ownerID)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure billing profile")
	}
	if !Eligible(profile, now) {
		return Decision{Reason: ReasonNoPlan, Plan: profile.Plan, Month: month}, nil
	}

	limit := profile.MonthlyLimit
	if increment > limit {
		used, err := g.usage.Used(ctx, ownerID, month)
		if err != nil {
			return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read usage")
		}
		return Decision{Reason: ReasonLimitReached, Used: used, Limit: limit, Plan: profile.Plan, Month: month}, nil
	}

	used, ok, err := g.usage.IncrementWithin(ctx, ownerID, month, increment, limit)
	if err != nil {
		return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment usage")
	}
	if !ok {
		current, err := g.usage.Used(ctx, ownerID, month)
		if err != nil {
			return Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read usage")
		}
		return Decision{Reason: ReasonLimitReached, Used: current, Limit: limit, Plan: profile.Plan, Month: month}, nil
	}

	return Decision{Allowed: true, Used: used, Limit: limit, Plan: profile.Plan, Month: month}, nil
}

func (g *gate) Summary(ctx context.Context, ownerID uuid.UUID) (Summary, error) {
	now := g.now()
	month := MonthKey(now)
	summary := Summary{Month: month}

	profile, err := g.billing.Find(ctx, ownerID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing profile")
	}
	used, err := g.usage.Used(ctx, ownerID, month)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read usage")
	}
	summary.Used = used
	if profile != nil {
		summary.Limit = profile.MonthlyLimit
		summary.Plan = profile.Plan
		summary.CurrentPeriodEnd = profile.CurrentPeriodEnd
		summary.Eligible = Eligible(profile, now)
	}
	return summary, nil
}
