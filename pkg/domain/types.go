package domain

import (
	"strings"
	"time"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	PhotoURL  string    `json:"photoURL"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Participant is a user as exposed to other conversation members.
// Email, plan and update time stay private.
type Participant struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	PhotoURL  string    `json:"photoURL"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participant strips the private fields from a user.
func (u User) Participant() Participant {
	return Participant{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		PhotoURL:  u.PhotoURL,
		CreatedAt: u.CreatedAt,
	}
}

// DisplayName joins first and last name, dropping empty parts.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type PdfFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	OwnerID   string    `json:"owner"`
	SizeInMB  float64   `json:"sizeInMB"`
	CreatedAt time.Time `json:"createdAt"`
}

type Conversation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OwnerID      string    `json:"owner"`
	Participants []string  `json:"participants"`
	PdfFileID    string    `json:"pdfFile"`
	IsPublic     bool      `json:"isPublic"`
	IsArchived   bool      `json:"isArchived"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasParticipant reports whether the user id is in the participant set.
func (c Conversation) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation"`
	SenderID       string    `json:"sender"`
	Content        string    `json:"content"`
	IsAIResponse   bool      `json:"isAiResponse"`
	CreatedAt      time.Time `json:"timestamp"`
}

// ConversationView is a conversation with its references resolved:
// participant users in place of raw ids plus the attached file's URL.
type ConversationView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	OwnerID      string        `json:"owner"`
	Participants []Participant `json:"participants"`
	PdfFileID    string        `json:"pdfFile"`
	PdfFileURL   string        `json:"pdfFileUrl"`
	IsPublic     bool          `json:"isPublic"`
	IsArchived   bool          `json:"isArchived"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// ConversationMessage carries a message whose sender field holds the
// resolved Participant when one matches, and the raw sender id otherwise.
type ConversationMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation"`
	Sender         any       `json:"sender"`
	Content        string    `json:"content"`
	IsAIResponse   bool      `json:"isAiResponse"`
	CreatedAt      time.Time `json:"timestamp"`
}

type ConversationMessages struct {
	Messages     []ConversationMessage `json:"messages"`
	Participants []Participant         `json:"participants"`
}

// ConversationWithFile annotates a conversation with its file URL.
// The URL is empty when the referenced file record is missing.
type ConversationWithFile struct {
	Conversation
	PdfFileURL string `json:"pdfFileURL,omitempty"`
}

// ProfileConversation is a conversation as embedded in a user profile,
// with participants resolved.
type ProfileConversation struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	OwnerID      string        `json:"owner"`
	Participants []Participant `json:"participants"`
	PdfFileID    string        `json:"pdfFile"`
	PdfFileURL   string        `json:"pdfFileURL,omitempty"`
	IsPublic     bool          `json:"isPublic"`
	IsArchived   bool          `json:"isArchived"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// UserProfile is the signup and profile-fetch response payload.
type UserProfile struct {
	ID               string                `json:"id"`
	FirstName        string                `json:"firstName"`
	LastName         string                `json:"lastName"`
	Email            string                `json:"email"`
	PhotoURL         string                `json:"photoURL"`
	Plan             Plan                  `json:"plan"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	StorageUsageInMB float64               `json:"storageUsageInMb"`
	Conversations    []ProfileConversation `json:"conversations"`
}
