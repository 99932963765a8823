package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/pkg/enums"
)

// BillingProfile holds the per-owner plan and quota. A row with no
// subscription and no unexpired period grants zero usage.
type BillingProfile struct {
	UserID               uuid.UUID   `gorm:"column:user_id;type:uuid;primaryKey"`
	Plan                 *enums.Plan `gorm:"column:plan;type:text"`
	MonthlyLimit         int         `gorm:"column:monthly_limit;not null;default:0"`
	StripeCustomerID     *string     `gorm:"column:stripe_customer_id;type:text"`
	StripeSubscriptionID *string     `gorm:"column:stripe_subscription_id;type:text"`
	StripeStatus         *string     `gorm:"column:stripe_status;type:text"`
	CurrentPeriodEnd     *time.Time  `gorm:"column:current_period_end"`
	CreatedAt            time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (BillingProfile) TableName() string { return "billing_profiles" }
