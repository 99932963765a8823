package conversations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gostly/gostly-backend/pkg/db/dbtest"
	"github.com/gostly/gostly-backend/pkg/db/models"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
)

type stubProperties struct {
	owner uuid.UUID
}

func (s stubProperties) Get(_ context.Context, ownerID, propertyID uuid.UUID) (*models.Property, error) {
	if ownerID != s.owner {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
	}
	return &models.Property{ID: propertyID, OwnerID: ownerID}, nil
}

type steppingClock struct {
	t time.Time
}

func (c *steppingClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newService(t *testing.T, owner uuid.UUID) Service {
	t.Helper()
	client := dbtest.New(t)
	clock := &steppingClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(client.DB()),
		Properties: stubProperties{owner: owner},
		Now:        clock.now,
	})
	require.NoError(t, err)
	return svc
}

func TestAppendAndList(t *testing.T) {
	owner := uuid.New()
	propertyID := uuid.New()
	svc := newService(t, owner)
	ctx := context.Background()

	require.NoError(t, svc.Append(ctx, Entry{
		PropertyID:   propertyID,
		FromNumber:   "whatsapp:+385911234567",
		ToNumber:     "whatsapp:+14155238886",
		GuestMessage: "What time is check-in?",
		BotReply:     "Check-in is from 15:00.",
	}))
	require.NoError(t, svc.Append(ctx, Entry{
		PropertyID:   propertyID,
		FromNumber:   "whatsapp:+385911234567",
		GuestMessage: "Can I talk to the host?",
		BotReply:     "I'll forward your question to the host. They will get back to you shortly.",
		Escalated:    true,
	}))
	require.NoError(t, svc.Append(ctx, Entry{PropertyID: uuid.New(), GuestMessage: "other", BotReply: "x"}))

	page, err := svc.List(ctx, ListParams{OwnerID: owner, PropertyID: propertyID})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Empty(t, page.NextCursor)

	newest := page.Items[0]
	require.True(t, newest.Escalated)
	require.Nil(t, newest.ToNumber)
	require.Equal(t, "whatsapp:+14155238886", *page.Items[1].ToNumber)
}

func TestAppendRequiresProperty(t *testing.T) {
	svc := newService(t, uuid.New())
	err := svc.Append(context.Background(), Entry{GuestMessage: "hi"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAppendSameIDKeepsFirstRow(t *testing.T) {
	owner := uuid.New()
	propertyID := uuid.New()
	svc := newService(t, owner)
	ctx := context.Background()

	entry := Entry{ID: uuid.New(), PropertyID: propertyID, GuestMessage: "Parking?", BotReply: "In the courtyard."}
	require.NoError(t, svc.Append(ctx, entry))
	entry.BotReply = "changed"
	require.NoError(t, svc.Append(ctx, entry))

	page, err := svc.List(ctx, ListParams{OwnerID: owner, PropertyID: propertyID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, entry.ID, page.Items[0].ID)
	require.Equal(t, "In the courtyard.", page.Items[0].BotReply)
}

func TestListPaginates(t *testing.T) {
	owner := uuid.New()
	propertyID := uuid.New()
	svc := newService(t, owner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Append(ctx, Entry{
			PropertyID:   propertyID,
			FromNumber:   "+385911234567",
			GuestMessage: fmt.Sprintf("question %d", i),
			BotReply:     "ok",
		}))
	}

	seen := []string{}
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := svc.List(ctx, ListParams{OwnerID: owner, PropertyID: propertyID, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, m := range page.Items {
			seen = append(seen, m.GuestMessage)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	require.Equal(t, []string{"question 4", "question 3", "question 2", "question 1", "question 0"}, seen)
}

func TestListFiltersByQuery(t *testing.T) {
	owner := uuid.New()
	propertyID := uuid.New()
	svc := newService(t, owner)
	ctx := context.Background()

	entries := []Entry{
		{GuestMessage: "Where is PARKING?", BotReply: "Behind the house."},
		{GuestMessage: "Wifi password?", BotReply: "The parking code is 1234 and wifi is sunce"},
		{GuestMessage: "Is 100% of the pool heated?", BotReply: "Yes."},
		{GuestMessage: "Breakfast?", BotReply: "No."},
	}
	for _, e := range entries {
		e.PropertyID = propertyID
		e.FromNumber = "+385911234567"
		require.NoError(t, svc.Append(ctx, e))
	}

	page, err := svc.List(ctx, ListParams{OwnerID: owner, PropertyID: propertyID, Query: "parking"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	page, err = svc.List(ctx, ListParams{OwnerID: owner, PropertyID: propertyID, Query: "100%"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = svc.List(ctx, ListParams{OwnerID: owner, PropertyID: propertyID, Query: "%"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestListScopedToOwner(t *testing.T) {
	svc := newService(t, uuid.New())
	_, err := svc.List(context.Background(), ListParams{OwnerID: uuid.New(), PropertyID: uuid.New()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListRejectsBadCursor(t *testing.T) {
	owner := uuid.New()
	svc := newService(t, owner)
	_, err := svc.List(context.Background(), ListParams{OwnerID: owner, PropertyID: uuid.New(), Cursor: "not-a-cursor"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\% off\_now \\`, escapeLike(`50% off_now \`))
}
