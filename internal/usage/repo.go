package usage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gostly/gostly-backend/pkg/db/models"
)

// Repository owns the monthly usage counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	IncrementWithin(ctx context.Context, userID uuid.UUID, month string, increment, limit int) (used int, ok bool, err error)
	Used(ctx context.Context, userID uuid.UUID, month string) (int, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// The WHERE on the conflict branch turns the update into a no-op once the
// cap would be crossed, in which case no row is returned.
const incrementSQL = `INSERT INTO usage_monthly (user_id, month, used) VALUES (?, ?, ?)
ON CONFLICT (user_id, month) DO UPDATE SET used = usage_monthly.used + excluded.used
WHERE usage_monthly.used + excluded.used <= ?
RETURNING used`

// IncrementWithin adds increment to the counter only if the result stays
// within limit. Callers must reject increment > limit beforehand.
func (r *repository) IncrementWithin(ctx context.Context, userID uuid.UUID, month string, increment, limit int) (int, bool, error) {
	var rows []struct{ Used int }
	if err := r.db.WithContext(ctx).Raw(incrementSQL, userID, month, increment, limit).Scan(&rows).Error; err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Used, true, nil
}

func (r *repository) Used(ctx context.Context, userID uuid.UUID, month string) (int, error) {
	var row models.UsageMonthly
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND month = ?", userID, month).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Used, nil
}
