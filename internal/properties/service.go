package properties

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/pkg/db"
	"github.com/gostly/gostly-backend/pkg/db/models"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
)

// Resolver maps an inbound code to its tenant. Read-only.
type Resolver interface {
	ResolveByCode(ctx context.Context, code string) (*models.Property, error)
}

// Service exposes tenant resolution and owner-scoped CRUD.
type Service interface {
	Resolver
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Property, error)
	Get(ctx context.Context, ownerID, propertyID uuid.UUID) (*models.Property, error)
	Create(ctx context.Context, ownerID uuid.UUID, input Input) (*models.Property, error)
	Update(ctx context.Context, ownerID, propertyID uuid.UUID, input Input) (*models.Property, error)
	Delete(ctx context.Context, ownerID, propertyID uuid.UUID) error
}

// Input carries the editable property fields.
type Input struct {
	Code          string  `json:"code" validate:"required,property_code"`
	Name          string  `json:"name" validate:"required,max=120"`
	KnowledgeText string  `json:"knowledge_text" validate:"required,max=20000"`
	Languages     string  `json:"languages" validate:"omitempty,languages"`
	HandoffEmail  *string `json:"handoff_email" validate:"omitempty,email"`
}

type service struct {
	repo Repository
}

// NewService wires property dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "properties repository required")
	}
	return &service{repo: repo}, nil
}

// ResolveByCode returns CodeNotFound for unknown codes and CodeDependency for
// storage failures.
func (s *service) ResolveByCode(ctx context.Context, code string) (*models.Property, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property code required")
	}
	property, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup property")
	}
	if property == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("property %s not found", normalized))
	}
	return property, nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]models.Property, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list properties")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, ownerID, propertyID uuid.UUID) (*models.Property, error) {
	property, err := s.repo.FindByID(ctx, propertyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
	}
	// Another owner's property is reported the same way as a missing one.
	if property == nil || property.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
	}
	return property, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input Input) (*models.Property, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	property := &models.Property{OwnerID: ownerID}
	if err := apply(property, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, property); err != nil {
		return nil, mapWriteError(err, "create property")
	}
	return property, nil
}

func (s *service) Update(ctx context.Context, ownerID, propertyID uuid.UUID, input Input) (*models.Property, error) {
	property, err := s.Get(ctx, ownerID, propertyID)
	if err != nil {
		return nil, err
	}
	if err := apply(property, input); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, property); err != nil {
		return nil, mapWriteError(err, "update property")
	}
	return property, nil
}

func (s *service) Delete(ctx context.Context, ownerID, propertyID uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, propertyID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, propertyID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete property")
	}
	return nil
}

func apply(property *models.Property, input Input) error {
	code := NormalizeCode(input.Code)
	name := strings.TrimSpace(input.Name)
	knowledge := strings.TrimSpace(input.KnowledgeText)
	if code == "" || name == "" || knowledge == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code, name and knowledge_text are required")
	}
	property.Code = code
	property.Name = name
	property.KnowledgeText = knowledge
	property.Languages = NormalizeLanguages(input.Languages)
	property.HandoffEmail = nil
	if input.HandoffEmail != nil {
		if email := strings.TrimSpace(*input.HandoffEmail); email != "" {
			property.HandoffEmail = &email
		}
	}
	return nil
}

func mapWriteError(err error, action string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "property code already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
