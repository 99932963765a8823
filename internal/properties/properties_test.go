package properties

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/pkg/db/dbtest"
	"github.com/gostly/gostly-backend/pkg/db/models"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
)

func TestParseInbound(t *testing.T) {
	cases := []struct {
		body     string
		code     string
		question string
		ok       bool
	}{
		{body: "villa1: What time is check-in?", code: "VILLA1", question: "What time is check-in?", ok: true},
		{body: "  ab_c-9 :  hello  ", code: "AB_C-9", question: "hello", ok: true},
		{body: "APT: line one\nline two", code: "APT", question: "line one\nline two", ok: true},
		{body: "AB: too short", ok: false},
		{body: "ABCDEFGHIJKLMNOPQRSTU: too long", ok: false},
		{body: "VILLA1:    ", ok: false},
		{body: "VILLA1 hello", ok: false},
		{body: "", ok: false},
		{body: "VILLA 1: space in code", ok: false},
	}
	for _, tc := range cases {
		code, question, ok := ParseInbound(tc.body)
		if ok != tc.ok || code != tc.code || question != tc.question {
			t.Fatalf("ParseInbound(%q) = (%q, %q, %v), want (%q, %q, %v)", tc.body, code, question, ok, tc.code, tc.question, tc.ok)
		}
	}
}

func TestNormalizeLanguages(t *testing.T) {
	cases := map[string]string{"": "auto", "AUTO": "auto", "EN, hr": "en,hr", "en,auto": "auto", " , ": "auto", "hr": "hr"}
	for in, want := range cases {
		if got := NormalizeLanguages(in); got != want {
			t.Fatalf("NormalizeLanguages(%q) = %q, want %q", in, got, want)
		}
	}
}

func newService(t *testing.T) Service {
	t.Helper()
	client := dbtest.New(t)
	svc, err := NewService(NewRepository(client.DB()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sampleInput(code string) Input {
	email := " host@example.com "
	return Input{Code: code, Name: "Villa Ana", KnowledgeText: "Check-in after 15:00", Languages: "auto", HandoffEmail: &email}
}

func TestResolveByCode(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, sampleInput("villa1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Code != "VILLA1" || created.HandoffEmail == nil || *created.HandoffEmail != "host@example.com" {
		t.Fatalf("unexpected normalized property %+v", created)
	}

	got, err := svc.ResolveByCode(ctx, "Villa1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	_, err = svc.ResolveByCode(ctx, "ZZZZZ")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	if _, err := svc.Create(ctx, uuid.New(), sampleInput("DUP01")); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(ctx, uuid.New(), sampleInput("dup01"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	owner := uuid.New()
	other := uuid.New()

	created, err := svc.Create(ctx, owner, sampleInput("OWN01"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, other, created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if err := svc.Delete(ctx, other, created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected delete by other owner to fail, got %v", err)
	}

	input := sampleInput("own02")
	input.HandoffEmail = nil
	input.Languages = "HR"
	updated, err := svc.Update(ctx, owner, created.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Code != "OWN02" || updated.HandoffEmail != nil || updated.Languages != "hr" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	list, err := svc.List(ctx, owner)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one property, got %d err=%v", len(list), err)
	}

	if err := svc.Delete(ctx, owner, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.ResolveByCode(ctx, "OWN02"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected deleted property to be gone, got %v", err)
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	svc := newService(t)
	_, err := svc.Create(context.Background(), uuid.New(), Input{Code: "ABC"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

var errStorage = errors.New("connection refused")

type failingRepo struct{ Repository }

func (failingRepo) FindByCode(context.Context, string) (*models.Property, error) {
	return nil, errStorage
}

func TestResolveByCodeStorageError(t *testing.T) {
	svc, _ := NewService(failingRepo{})
	_, err := svc.ResolveByCode(context.Background(), "VILLA1")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
