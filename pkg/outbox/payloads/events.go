package payloads

import "github.com/google/uuid"

// HandoffRequestedEvent asks the relay to email a host about an escalated guest question.
type HandoffRequestedEvent struct {
	PropertyID   uuid.UUID `json:"property_id"`
	PropertyCode string    `json:"property_code"`
	PropertyName string    `json:"property_name"`
	To           string    `json:"to"`
	GuestNumber  string    `json:"guest_number"`
	GuestMessage string    `json:"guest_message"`
	Language     string    `json:"language,omitempty"`
	Trigger      string    `json:"trigger,omitempty"`
}
