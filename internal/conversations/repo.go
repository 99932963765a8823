package conversations

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gostly/gostly-backend/pkg/db/models"
	"github.com/gostly/gostly-backend/pkg/pagination"
)

// Repository persists the append-only message log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, message *models.Message) error
	List(ctx context.Context, params listParams) ([]models.Message, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listParams struct {
	PropertyID uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	Query      string
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(message).Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Message, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("property_id = ?", params.PropertyID)
	if q := strings.TrimSpace(params.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		query = query.Where(`(LOWER(guest_message) LIKE ? ESCAPE '\' OR LOWER(bot_reply) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Message
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		last := rows[normalized-1]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
