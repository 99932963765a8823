package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one logged guest turn. BotReply is the text the guest received.
type Message struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PropertyID   uuid.UUID `gorm:"column:property_id;type:uuid;not null;index:idx_messages_property_created,priority:1"`
	FromNumber   string    `gorm:"column:from_number;type:text;not null"`
	ToNumber     *string   `gorm:"column:to_number;type:text"`
	GuestMessage string    `gorm:"column:guest_message;type:text;not null"`
	BotReply     string    `gorm:"column:bot_reply;type:text;not null"`
	Escalated    bool      `gorm:"column:escalated;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime;index:idx_messages_property_created,priority:2"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
