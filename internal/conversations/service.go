// Package conversations keeps the per-property log of guest turns.
package conversations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/pkg/db/models"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/pagination"
	"github.com/gostly/gostly-backend/pkg/types"
)

// Entry is one completed guest turn.
type Entry struct {
	// ID names the turn; appending the same ID twice keeps the first row.
	ID           uuid.UUID
	PropertyID   uuid.UUID
	FromNumber   string
	ToNumber     string
	GuestMessage string
	BotReply     string
	Escalated    bool
}

// Logger appends turns. BotReply must be the final text the guest received.
type Logger interface {
	Append(ctx context.Context, entry Entry) error
}

type propertyReader interface {
	Get(ctx context.Context, ownerID, propertyID uuid.UUID) (*models.Property, error)
}

// ListParams filters an owner's view of one property's log.
type ListParams struct {
	OwnerID    uuid.UUID
	PropertyID uuid.UUID
	Limit      int
	Cursor     string
	Query      string
}

// Service is the owner-facing read side plus the pipeline's Logger.
type Service interface {
	Logger
	List(ctx context.Context, params ListParams) (*types.Page[models.Message], error)
}

type ServiceParams struct {
	Repo       Repository
	Properties propertyReader
	Now        func() time.Time
}

type service struct {
	repo       Repository
	properties propertyReader
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "conversations repository required")
	}
	if params.Properties == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "properties service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, properties: params.Properties, now: now}, nil
}

func (s *service) Append(ctx context.Context, entry Entry) error {
	if entry.PropertyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "property id required")
	}
	row := &models.Message{
		ID:           entry.ID,
		PropertyID:   entry.PropertyID,
		FromNumber:   strings.TrimSpace(entry.FromNumber),
		GuestMessage: entry.GuestMessage,
		BotReply:     entry.BotReply,
		Escalated:    entry.Escalated,
		CreatedAt:    s.now().UTC(),
	}
	if to := strings.TrimSpace(entry.ToNumber); to != "" {
		row.ToNumber = &to
	}
	if err := s.repo.Append(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append message")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*types.Page[models.Message], error) {
	if _, err := s.properties.Get(ctx, params.OwnerID, params.PropertyID); err != nil {
		return nil, err
	}

	query := listParams{
		PropertyID: params.PropertyID,
		Limit:      params.Limit,
		Query:      params.Query,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	page := &types.Page[models.Message]{Items: rows}
	if page.Items == nil {
		page.Items = []models.Message{}
	}
	if next != nil {
		page.NextCursor = next.Encode()
	}
	return page, nil
}
