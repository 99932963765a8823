package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/gostly/gostly-backend/internal/billing"
	"github.com/gostly/gostly-backend/pkg/db"
	"github.com/gostly/gostly-backend/pkg/db/dbtest"
	"github.com/gostly/gostly-backend/pkg/db/models"
	"github.com/gostly/gostly-backend/pkg/enums"
	"github.com/gostly/gostly-backend/pkg/logger"
)

func newTestService(t *testing.T) (*Service, billing.Repository, *db.Client) {
	t.Helper()
	client := dbtest.New(t)
	repo := billing.NewRepository(client.DB())
	service, err := NewService(ServiceParams{
		BillingRepo:       repo,
		TransactionRunner: client,
		Logger:            logger.New(logger.Options{ServiceName: "stripe-webhook-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service, repo, client
}

func mustEvent(t *testing.T, typ stripe.EventType, obj any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &stripe.Event{ID: "evt_" + uuid.NewString(), Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func loadProfile(t *testing.T, repo billing.Repository, owner uuid.UUID) *models.BillingProfile {
	t.Helper()
	profile, err := repo.Find(context.Background(), owner)
	if err != nil {
		t.Fatalf("find profile: %v", err)
	}
	if profile == nil {
		t.Fatalf("expected profile for %s", owner)
	}
	return profile
}

func TestCheckoutCompletedUpsertsProfile(t *testing.T) {
	service, repo, _ := newTestService(t)
	owner := uuid.New()

	session := &stripe.CheckoutSession{
		ID:           "cs_test",
		Customer:     &stripe.Customer{ID: "cus_123"},
		Subscription: &stripe.Subscription{ID: "sub_123"},
		Metadata:     map[string]string{billing.MetadataUserID: owner.String(), billing.MetadataPlan: "business"},
	}
	if err := service.HandleEvent(context.Background(), mustEvent(t, stripe.EventTypeCheckoutSessionCompleted, session)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	profile := loadProfile(t, repo, owner)
	if profile.Plan == nil || *profile.Plan != enums.PlanBusiness {
		t.Fatalf("expected business plan, got %v", profile.Plan)
	}
	if profile.MonthlyLimit != 3000 {
		t.Fatalf("expected limit 3000, got %d", profile.MonthlyLimit)
	}
	if profile.StripeCustomerID == nil || *profile.StripeCustomerID != "cus_123" {
		t.Fatalf("unexpected customer id %v", profile.StripeCustomerID)
	}
	if profile.StripeSubscriptionID == nil || *profile.StripeSubscriptionID != "sub_123" {
		t.Fatalf("unexpected subscription id %v", profile.StripeSubscriptionID)
	}
}

func TestCheckoutCompletedDefaultsToPro(t *testing.T) {
	service, repo, _ := newTestService(t)
	owner := uuid.New()

	session := &stripe.CheckoutSession{Metadata: map[string]string{billing.MetadataUserID: owner.String()}}
	if err := service.HandleEvent(context.Background(), mustEvent(t, stripe.EventTypeCheckoutSessionCompleted, session)); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	profile := loadProfile(t, repo, owner)
	if *profile.Plan != enums.PlanPro || profile.MonthlyLimit != 1000 {
		t.Fatalf("expected pro/1000, got %v/%d", *profile.Plan, profile.MonthlyLimit)
	}
}

func TestSubscriptionUpdatedRecordsStatusAndPeriodEnd(t *testing.T) {
	service, repo, _ := newTestService(t)
	owner := uuid.New()
	periodEnd := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	sub := &stripe.Subscription{
		ID:       "sub_777",
		Status:   stripe.SubscriptionStatusTrialing,
		Customer: &stripe.Customer{ID: "cus_777"},
		Metadata: map[string]string{billing.MetadataUserID: owner.String(), billing.MetadataPlan: "starter"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: periodEnd.Unix()}},
		},
	}
	if err := service.HandleEvent(context.Background(), mustEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	profile := loadProfile(t, repo, owner)
	if *profile.Plan != enums.PlanStarter || profile.MonthlyLimit != 300 {
		t.Fatalf("expected starter/300, got %v/%d", *profile.Plan, profile.MonthlyLimit)
	}
	if profile.StripeStatus == nil || *profile.StripeStatus != "trialing" {
		t.Fatalf("unexpected status %v", profile.StripeStatus)
	}
	if profile.CurrentPeriodEnd == nil || !profile.CurrentPeriodEnd.Equal(periodEnd) {
		t.Fatalf("unexpected period end %v", profile.CurrentPeriodEnd)
	}
	if *profile.StripeSubscriptionID != "sub_777" || *profile.StripeCustomerID != "cus_777" {
		t.Fatalf("unexpected stripe ids")
	}
}

func TestSubscriptionDeletedDowngrades(t *testing.T) {
	service, repo, _ := newTestService(t)
	owner := uuid.New()
	ctx := context.Background()

	sub := &stripe.Subscription{
		ID:       "sub_del",
		Status:   stripe.SubscriptionStatusActive,
		Metadata: map[string]string{billing.MetadataUserID: owner.String(), billing.MetadataPlan: "business"},
	}
	if err := service.HandleEvent(ctx, mustEvent(t, stripe.EventTypeCustomerSubscriptionCreated, sub)); err != nil {
		t.Fatalf("create: %v", err)
	}

	sub.Status = stripe.SubscriptionStatusCanceled
	if err := service.HandleEvent(ctx, mustEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, sub)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	profile := loadProfile(t, repo, owner)
	if *profile.Plan != enums.PlanFree || profile.MonthlyLimit != 100 {
		t.Fatalf("expected free/100, got %v/%d", *profile.Plan, profile.MonthlyLimit)
	}
	if profile.StripeSubscriptionID != nil {
		t.Fatalf("expected subscription id cleared, got %v", *profile.StripeSubscriptionID)
	}
	if profile.StripeStatus == nil || *profile.StripeStatus != "canceled" {
		t.Fatalf("unexpected status %v", profile.StripeStatus)
	}
}

func TestEventsWithoutOwnerAreIgnored(t *testing.T) {
	service, _, client := newTestService(t)
	ctx := context.Background()

	for _, meta := range []map[string]string{nil, {billing.MetadataUserID: "not-a-uuid"}} {
		sub := &stripe.Subscription{ID: "sub_x", Metadata: meta}
		if err := service.HandleEvent(ctx, mustEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub)); err != nil {
			t.Fatalf("expected ignore, got %v", err)
		}
	}

	var count int64
	if err := client.DB().Model(&models.BillingProfile{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no profiles, got %d", count)
	}
}

func TestUnhandledEventTypeIsNoop(t *testing.T) {
	service, _, _ := newTestService(t)
	event := mustEvent(t, stripe.EventTypeInvoicePaid, map[string]any{"id": "in_1"})
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestHandleEventRejectsMissingData(t *testing.T) {
	service, _, _ := newTestService(t)
	if err := service.HandleEvent(context.Background(), &stripe.Event{}); err == nil {
		t.Fatal("expected validation error")
	}
	bad := &stripe.Event{Type: stripe.EventTypeCustomerSubscriptionUpdated, Data: &stripe.EventData{Raw: []byte("{")}}
	if err := service.HandleEvent(context.Background(), bad); err == nil {
		t.Fatal("expected decode error")
	}
}

