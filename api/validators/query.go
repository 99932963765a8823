package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/pagination"
)

// ParseLimit reads the `limit` query parameter for cursor-paginated lists.
// Missing means pagination.DefaultLimit; values outside 1..MaxLimit are rejected.
func ParseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return pagination.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > pagination.MaxLimit {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and "+strconv.Itoa(pagination.MaxLimit)).
			WithDetails(map[string]any{"field": "limit", "value": raw})
	}
	return limit, nil
}

// QueryText returns a trimmed, rune-capped query parameter.
func QueryText(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}
