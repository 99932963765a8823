package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gostly/gostly-backend/api/responses"
	"github.com/gostly/gostly-backend/api/validators"
	"github.com/gostly/gostly-backend/internal/properties"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/logger"
)

type adminPropertyRequest struct {
	OwnerID       string  `json:"owner_id" validate:"required,uuid"`
	Code          string  `json:"code" validate:"required,property_code"`
	Name          string  `json:"name" validate:"required,max=120"`
	KnowledgeText string  `json:"knowledge_text" validate:"required,max=20000"`
	Languages     string  `json:"languages" validate:"omitempty,languages"`
	HandoffEmail  *string `json:"handoff_email" validate:"omitempty,email"`
}

// AdminCreateProperty onboards a property on behalf of an owner.
func AdminCreateProperty(svc properties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body adminPropertyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := uuid.Parse(strings.TrimSpace(body.OwnerID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner_id"))
			return
		}

		property, err := svc.Create(r.Context(), ownerID, properties.Input{
			Code:          body.Code,
			Name:          body.Name,
			KnowledgeText: body.KnowledgeText,
			Languages:     body.Languages,
			HandoffEmail:  body.HandoffEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"property_id": property.ID.String(), "owner_id": ownerID.String()})
			logg.Info(ctx, "admin.property_created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPropertyResponse(property))
	}
}
