package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/gostly/gostly-backend/internal/billing"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	BillingRepo       billing.Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service mirrors Stripe subscription state onto billing profiles. It is the
// only writer of plan and limit.
type Service struct {
	billingRepo billing.Repository
	txRunner    txRunner
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.checkoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &sub)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.subscriptionDeleted(ctx, &sub)
	default:
		return nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	userID, ok := s.ownerFromMetadata(ctx, session.Metadata)
	if !ok {
		return nil
	}
	update := billing.SubscriptionUpdate{
		UserID: userID,
		Plan:   billing.PlanFromMetadata(session.Metadata),
	}
	if session.Customer != nil && session.Customer.ID != "" {
		update.CustomerID = stringPtr(session.Customer.ID)
	}
	if session.Subscription != nil && session.Subscription.ID != "" {
		update.SubscriptionID = stringPtr(session.Subscription.ID)
	}
	return s.apply(ctx, update)
}

func (s *Service) syncSubscription(ctx context.Context, sub *stripe.Subscription) error {
	userID, ok := s.ownerFromMetadata(ctx, sub.Metadata)
	if !ok {
		return nil
	}
	update := billing.SubscriptionUpdate{
		UserID:           userID,
		Plan:             billing.PlanFromMetadata(sub.Metadata),
		CustomerID:       customerID(sub),
		CurrentPeriodEnd: billing.PeriodEnd(sub),
	}
	if sub.ID != "" {
		update.SubscriptionID = stringPtr(sub.ID)
	}
	if sub.Status != "" {
		update.Status = stringPtr(string(sub.Status))
	}
	return s.apply(ctx, update)
}

func (s *Service) subscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	userID, ok := s.ownerFromMetadata(ctx, sub.Metadata)
	if !ok {
		return nil
	}
	status := string(sub.Status)
	if status == "" {
		status = string(stripe.SubscriptionStatusCanceled)
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		found, err := s.billingRepo.WithTx(tx).Downgrade(ctx, userID, &status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "downgrade billing profile")
		}
		if !found {
			s.logg.Warn(ctx, "subscription deleted for owner without billing profile")
		}
		return nil
	})
}

func (s *Service) apply(ctx context.Context, update billing.SubscriptionUpdate) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.billingRepo.WithTx(tx).ApplySubscription(ctx, update); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert billing profile")
		}
		return nil
	})
}

// ownerFromMetadata reports false for events that carry no usable owner id;
// those are acknowledged and ignored.
func (s *Service) ownerFromMetadata(ctx context.Context, metadata map[string]string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(metadata[billing.MetadataUserID])
	if raw == "" {
		s.logg.Warn(ctx, "stripe event missing "+billing.MetadataUserID+" metadata")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "metadata_user_id", raw), "stripe event has invalid owner id")
		return uuid.Nil, false
	}
	return id, true
}

func customerID(sub *stripe.Subscription) *string {
	if sub == nil || sub.Customer == nil || sub.Customer.ID == "" {
		return nil
	}
	return stringPtr(sub.Customer.ID)
}

func stringPtr(v string) *string {
	return &v
}
