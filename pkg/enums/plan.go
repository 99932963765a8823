package enums

import (
	"fmt"
	"strings"
)

// Plan identifies a billing tier sold through Stripe.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStarter  Plan = "starter"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

var validPlans = []Plan{PlanFree, PlanStarter, PlanPro, PlanBusiness}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return string(p)
}

// IsValid reports whether the value matches a known plan.
func (p Plan) IsValid() bool {
	for _, candidate := range validPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// MonthlyLimit is the reply quota that comes with the plan.
func (p Plan) MonthlyLimit() int {
	switch p {
	case PlanBusiness:
		return 3000
	case PlanPro:
		return 1000
	case PlanStarter:
		return 300
	default:
		return 100
	}
}

// ParsePlan converts raw input into a Plan.
func ParsePlan(value string) (Plan, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPlans {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan %q", value)
}
