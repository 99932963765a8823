package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/gostly/gostly-backend/pkg/db/models"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
)

// SubscriptionCanceler schedules a provider-side cancellation.
type SubscriptionCanceler interface {
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// Service exposes owner billing operations.
type Service interface {
	Profile(ctx context.Context, ownerID uuid.UUID) (*models.BillingProfile, error)
	CancelAtPeriodEnd(ctx context.Context, ownerID uuid.UUID) (*models.BillingProfile, error)
}

type ServiceParams struct {
	Repo     Repository
	Canceler SubscriptionCanceler
}

type service struct {
	repo     Repository
	canceler SubscriptionCanceler
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing repository required")
	}
	return &service{repo: params.Repo, canceler: params.Canceler}, nil
}

func (s *service) Profile(ctx context.Context, ownerID uuid.UUID) (*models.BillingProfile, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	profile, err := s.repo.Ensure(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing profile")
	}
	return profile, nil
}

// CancelAtPeriodEnd asks the provider to stop renewing and records the
// reported status right away. The deletion webhook performs the downgrade.
func (s *service) CancelAtPeriodEnd(ctx context.Context, ownerID uuid.UUID) (*models.BillingProfile, error) {
	if s.canceler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing provider not configured")
	}
	profile, err := s.Profile(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if profile.StripeSubscriptionID == nil || *profile.StripeSubscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no active subscription to cancel")
	}

	sub, err := s.canceler.CancelAtPeriodEnd(ctx, *profile.StripeSubscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
	}

	var status *string
	if sub != nil && sub.Status != "" {
		value := string(sub.Status)
		status = &value
	}
	periodEnd := PeriodEnd(sub)
	if err := s.repo.UpdateStatus(ctx, ownerID, status, periodEnd); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cancellation")
	}
	if status != nil {
		profile.StripeStatus = status
	}
	if periodEnd != nil {
		profile.CurrentPeriodEnd = periodEnd
	}
	return profile, nil
}
