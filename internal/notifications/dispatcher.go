package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/pkg/db/models"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/mailer"
	"github.com/gostly/gostly-backend/pkg/outbox/payloads"
	"github.com/gostly/gostly-backend/pkg/outbox/registry"
)

// HandoffScope names the idempotency scope for delivered handoff emails.
const HandoffScope = "handoff-email"

type processedGuard interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// HandoffDispatcher delivers handoff_requested events by email.
type HandoffDispatcher struct {
	mail  mailer.Mailer
	guard processedGuard
	logg  *logger.Logger
}

// NewHandoffDispatcher builds the email dispatcher. guard may be nil, in which
// case a redelivered row sends a second email.
func NewHandoffDispatcher(mail mailer.Mailer, guard processedGuard, logg *logger.Logger) (*HandoffDispatcher, error) {
	if mail == nil {
		return nil, errors.New("mailer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &HandoffDispatcher{mail: mail, guard: guard, logg: logg}, nil
}

func (d *HandoffDispatcher) Dispatch(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	payload, ok := resolved.Payload.(*payloads.HandoffRequestedEvent)
	if !ok || payload == nil {
		return registry.NewNonRetryableError(fmt.Errorf("unexpected payload %T", resolved.Payload))
	}
	if payload.To == "" {
		return registry.NewNonRetryableError(errors.New("handoff recipient missing"))
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":   event.ID.String(),
		"property_id": payload.PropertyID.String(),
		"sender":      guestNumberForLog(*payload),
		"mailer":      d.mail.Name(),
	})

	eventID := event.ID.String()
	if parsed, err := uuid.Parse(resolved.Envelope.EventID); err == nil {
		eventID = parsed.String()
	}
	if d.guard != nil {
		already, err := d.guard.Claim(ctx, eventID)
		if err != nil {
			// Delivery beats dedupe when redis is down.
			d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "handoff idempotency check failed")
		} else if already {
			d.logg.Info(logCtx, "handoff already delivered")
			return nil
		}
	}

	if err := d.mail.Send(ctx, HandoffEmail(*payload)); err != nil {
		if d.guard != nil {
			if delErr := d.guard.Release(ctx, eventID); delErr != nil {
				d.logg.Warn(d.logg.WithField(logCtx, "error", delErr.Error()), "failed to release handoff idempotency key")
			}
		}
		if errors.Is(err, mailer.ErrInvalidMessage) {
			return registry.NewNonRetryableError(err)
		}
		return err
	}
	d.logg.Info(logCtx, "handoff email sent")
	return nil
}
