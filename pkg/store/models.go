package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID        string    `gorm:"primaryKey"`
	FirstName string    `gorm:"not null"`
	LastName  string
	Email     string    `gorm:"uniqueIndex;not null"`
	PhotoURL  string
	Plan      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type PdfFileModel struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null;index:idx_pdf_identity"`
	URL       string    `gorm:"not null"`
	OwnerID   string    `gorm:"not null;index:idx_pdf_identity;index"`
	SizeInMB  float64   `gorm:"not null;index:idx_pdf_identity"`
	CreatedAt time.Time `gorm:"not null"`
}

type ConversationModel struct {
	ID           string         `gorm:"primaryKey"`
	Name         string         `gorm:"not null"`
	OwnerID      string         `gorm:"not null;index"`
	Participants datatypes.JSON
	PdfFileID    string         `gorm:"not null;uniqueIndex"`
	IsPublic     bool
	IsArchived   bool
	CreatedAt    time.Time      `gorm:"not null"`
}

type MessageModel struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"not null;index"`
	SenderID       string `gorm:"not null"`
	Content        string `gorm:"type:text;not null"`
	IsAIResponse   bool
	// Seq disambiguates messages created within the same timestamp.
	Seq       uint64    `gorm:"autoIncrement;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null;index"`
}
