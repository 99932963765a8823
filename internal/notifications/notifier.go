// Package notifications hands escalated guest questions to the property host.
package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gostly/gostly-backend/pkg/enums"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/outbox"
	"github.com/gostly/gostly-backend/pkg/outbox/payloads"
)

// Handoff describes one escalated turn.
type Handoff struct {
	// EventID is stable across retries of the same handoff.
	EventID      uuid.UUID
	PropertyID   uuid.UUID
	OwnerID      uuid.UUID
	PropertyCode string
	PropertyName string
	HandoffEmail *string
	GuestNumber  string
	GuestMessage string
	Language     string
	Trigger      string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier queues a handoff email on the outbox. Delivery happens in the relay.
type Notifier struct {
	db     txRunner
	outbox emitter
	logg   *logger.Logger
}

func NewNotifier(db txRunner, out emitter, logg *logger.Logger) (*Notifier, error) {
	if db == nil {
		return nil, errors.New("database client is required")
	}
	if out == nil {
		return nil, errors.New("outbox service is required")
	}
	return &Notifier{db: db, outbox: out, logg: logg}, nil
}

// Notify returns (false, nil) when the property has no handoff address.
func (n *Notifier) Notify(ctx context.Context, h Handoff) (bool, error) {
	to := ""
	if h.HandoffEmail != nil {
		to = strings.TrimSpace(*h.HandoffEmail)
	}
	if to == "" {
		if n.logg != nil {
			n.logg.Debug(ctx, "no handoff email configured, skipping notification")
		}
		return false, nil
	}
	if h.PropertyID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "property id required")
	}

	event := outbox.DomainEvent{
		EventID:       h.EventID,
		EventType:     enums.EventHandoffRequested,
		AggregateType: enums.AggregateProperty,
		AggregateID:   h.PropertyID,
		OwnerID:       h.OwnerID,
		Source:        "whatsapp",
		Data: payloads.HandoffRequestedEvent{
			PropertyID:   h.PropertyID,
			PropertyCode: h.PropertyCode,
			PropertyName: h.PropertyName,
			To:           to,
			GuestNumber:  h.GuestNumber,
			GuestMessage: h.GuestMessage,
			Language:     h.Language,
			Trigger:      h.Trigger,
		},
	}
	err := n.db.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue handoff notification")
	}
	return true, nil
}
