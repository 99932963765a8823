package controllers

import (
	"net/http"
	"strings"

	"github.com/gostly/gostly-backend/api/responses"
	"github.com/gostly/gostly-backend/api/validators"
	"github.com/gostly/gostly-backend/internal/conversations"
	"github.com/gostly/gostly-backend/pkg/logger"
	"github.com/gostly/gostly-backend/pkg/types"
)

const maxSearchLen = 200

// MessageList returns a page of one property's conversation log, newest first.
func MessageList(svc conversations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		propertyID, err := propertyIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseLimit(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), conversations.ListParams{
			OwnerID:    ownerID,
			PropertyID: propertyID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			Query:      validators.QueryText(r, "q", maxSearchLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := types.Page[messageResponse]{
			Items:      make([]messageResponse, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for _, m := range page.Items {
			out.Items = append(out.Items, newMessageResponse(m))
		}
		responses.WriteSuccess(w, out)
	}
}
