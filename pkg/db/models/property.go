package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Property is a host-configured tenant addressed by its short code.
type Property struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID       uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Code          string    `gorm:"column:code;type:text;not null;uniqueIndex"`
	Name          string    `gorm:"column:name;type:text;not null"`
	KnowledgeText string    `gorm:"column:knowledge_text;type:text;not null"`
	Languages     string    `gorm:"column:languages;type:text;not null;default:auto"`
	HandoffEmail  *string   `gorm:"column:handoff_email;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Property) TableName() string { return "properties" }

func (p *Property) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
