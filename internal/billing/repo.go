package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gostly/gostly-backend/pkg/db/models"
	"github.com/gostly/gostly-backend/pkg/enums"
)

// Repository handles billing profile persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Ensure(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error)
	Find(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error)
	ApplySubscription(ctx context.Context, update SubscriptionUpdate) error
	Downgrade(ctx context.Context, userID uuid.UUID, status *string) (bool, error)
	UpdateStatus(ctx context.Context, userID uuid.UUID, status *string, periodEnd *time.Time) error
}

// SubscriptionUpdate is the billing state reported by the provider. Nil
// pointer fields are left untouched on existing rows.
type SubscriptionUpdate struct {
	UserID           uuid.UUID
	Plan             enums.Plan
	CustomerID       *string
	SubscriptionID   *string
	Status           *string
	CurrentPeriodEnd *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Ensure loads the profile, creating an empty one (no plan, zero limit) when
// the owner has none yet.
func (r *repository) Ensure(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error) {
	profile := &models.BillingProfile{UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(profile).Error; err != nil {
		return nil, err
	}
	return r.Find(ctx, userID)
}

// Find returns nil, nil when the owner has no profile.
func (r *repository) Find(ctx context.Context, userID uuid.UUID) (*models.BillingProfile, error) {
	var profile models.BillingProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) ApplySubscription(ctx context.Context, update SubscriptionUpdate) error {
	plan := update.Plan
	profile := &models.BillingProfile{
		UserID:               update.UserID,
		Plan:                 &plan,
		MonthlyLimit:         plan.MonthlyLimit(),
		StripeCustomerID:     update.CustomerID,
		StripeSubscriptionID: update.SubscriptionID,
		StripeStatus:         update.Status,
		CurrentPeriodEnd:     update.CurrentPeriodEnd,
	}

	columns := []string{"plan", "monthly_limit", "updated_at"}
	if update.CustomerID != nil {
		columns = append(columns, "stripe_customer_id")
	}
	if update.SubscriptionID != nil {
		columns = append(columns, "stripe_subscription_id")
	}
	if update.Status != nil {
		columns = append(columns, "stripe_status")
	}
	if update.CurrentPeriodEnd != nil {
		columns = append(columns, "current_period_end")
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(profile).Error
}

// Downgrade moves the owner to the free plan and clears the subscription
// reference. It reports whether a profile existed.
func (r *repository) Downgrade(ctx context.Context, userID uuid.UUID, status *string) (bool, error) {
	updates := map[string]any{
		"plan":                   enums.PlanFree,
		"monthly_limit":          enums.PlanFree.MonthlyLimit(),
		"stripe_subscription_id": nil,
		"updated_at":             time.Now().UTC(),
	}
	if status != nil {
		updates["stripe_status"] = *status
	}
	result := r.db.WithContext(ctx).
		Model(&models.BillingProfile{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, userID uuid.UUID, status *string, periodEnd *time.Time) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if status != nil {
		updates["stripe_status"] = *status
	}
	if periodEnd != nil {
		updates["current_period_end"] = periodEnd.UTC()
	}
	return r.db.WithContext(ctx).
		Model(&models.BillingProfile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}
