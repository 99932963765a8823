package controllers

import (
	"time"

	"github.com/gostly/gostly-backend/pkg/db/models"
	"github.com/gostly/gostly-backend/pkg/enums"
)

type propertyResponse struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	KnowledgeText string    `json:"knowledge_text"`
	Languages     string    `json:"languages"`
	HandoffEmail  *string   `json:"handoff_email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newPropertyResponse(p *models.Property) propertyResponse {
	return propertyResponse{
		ID:            p.ID.String(),
		OwnerID:       p.OwnerID.String(),
		Code:          p.Code,
		Name:          p.Name,
		KnowledgeText: p.KnowledgeText,
		Languages:     p.Languages,
		HandoffEmail:  p.HandoffEmail,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type messageResponse struct {
	ID           string    `json:"id"`
	PropertyID   string    `json:"property_id"`
	FromNumber   string    `json:"from_number"`
	ToNumber     *string   `json:"to_number"`
	GuestMessage string    `json:"guest_message"`
	BotReply     string    `json:"bot_reply"`
	Escalated    bool      `json:"escalated"`
	CreatedAt    time.Time `json:"created_at"`
}

func newMessageResponse(m models.Message) messageResponse {
	return messageResponse{
		ID:           m.ID.String(),
		PropertyID:   m.PropertyID.String(),
		FromNumber:   m.FromNumber,
		ToNumber:     m.ToNumber,
		GuestMessage: m.GuestMessage,
		BotReply:     m.BotReply,
		Escalated:    m.Escalated,
		CreatedAt:    m.CreatedAt,
	}
}

type billingProfileResponse struct {
	Plan             *enums.Plan `json:"plan"`
	MonthlyLimit     int         `json:"monthly_limit"`
	StripeStatus     *string     `json:"stripe_status"`
	CurrentPeriodEnd *time.Time  `json:"current_period_end"`
}

func newBillingProfileResponse(p *models.BillingProfile) billingProfileResponse {
	return billingProfileResponse{
		Plan:             p.Plan,
		MonthlyLimit:     p.MonthlyLimit,
		StripeStatus:     p.StripeStatus,
		CurrentPeriodEnd: p.CurrentPeriodEnd,
	}
}
