package billing

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/gostly/gostly-backend/pkg/enums"
)

const (
	MetadataUserID = "supabase_user_id"
	MetadataPlan   = "plan"
)

// PlanFromMetadata reads the purchased plan, defaulting to pro. Unknown plan
// names map to free.
func PlanFromMetadata(metadata map[string]string) enums.Plan {
	raw := strings.TrimSpace(metadata[MetadataPlan])
	if raw == "" {
		return enums.PlanPro
	}
	plan, err := enums.ParsePlan(raw)
	if err != nil {
		return enums.PlanFree
	}
	return plan
}

// PeriodEnd returns the latest billing period end across subscription items,
// falling back to the trial end.
func PeriodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil {
		return nil
	}
	var latest int64
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.CurrentPeriodEnd > latest {
				latest = item.CurrentPeriodEnd
			}
		}
	}
	if latest == 0 {
		latest = sub.TrialEnd
	}
	if latest == 0 {
		return nil
	}
	ts := time.Unix(latest, 0).UTC()
	return &ts
}
