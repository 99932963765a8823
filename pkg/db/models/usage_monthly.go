package models

import "github.com/google/uuid"

// UsageMonthly counts replies per owner per UTC month (YYYY-MM).
type UsageMonthly struct {
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Month  string    `gorm:"column:month;type:text;primaryKey"`
	Used   int       `gorm:"column:used;not null;default:0"`
}

func (UsageMonthly) TableName() string { return "usage_monthly" }
