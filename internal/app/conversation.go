package app

import (
	"context"
	"fmt"

	"pdfchat/internal/util"
	"pdfchat/pkg/domain"
)

// CreateConversationRequest carries everything needed to start a
// conversation over an uploaded pdf.
type CreateConversationRequest struct {
	Email        string
	FileName     string
	FileURL      string
	FileSizeInMB float64
}

// GetConversation returns the conversation with its participant users and
// file URL resolved. A dangling file reference is reported as
// ErrPdfFileNotFound, matching what callers of the raw records would see.
func (a *App) GetConversation(ctx context.Context, id string) (domain.ConversationView, error) {
	conv, found, err := a.store.FindConversationByID(ctx, id)
	if err != nil {
		return domain.ConversationView{}, fmt.Errorf("find conversation: %w", err)
	}
	if !found {
		return domain.ConversationView{}, ErrConversationNotFound
	}
	file, found, err := a.store.FindPdfFileByID(ctx, conv.PdfFileID)
	if err != nil {
		return domain.ConversationView{}, fmt.Errorf("find pdf file: %w", err)
	}
	if !found {
		return domain.ConversationView{}, ErrPdfFileNotFound
	}
	users, err := a.store.FindUsersByIDs(ctx, conv.Participants)
	if err != nil {
		return domain.ConversationView{}, fmt.Errorf("find participants: %w", err)
	}
	participants := make([]domain.Participant, 0, len(users))
	for _, u := range users {
		participants = append(participants, u.Participant())
	}
	return domain.ConversationView{
		ID:           conv.ID,
		Name:         conv.Name,
		OwnerID:      conv.OwnerID,
		Participants: participants,
		PdfFileID:    conv.PdfFileID,
		PdfFileURL:   file.URL,
		IsPublic:     conv.IsPublic,
		IsArchived:   conv.IsArchived,
		CreatedAt:    conv.CreatedAt,
	}, nil
}

// GetConversationMessages returns the message history with senders
// substituted by their participant records where known, alongside the
// resolved participant list.
func (a *App) GetConversationMessages(ctx context.Context, id string) (domain.ConversationMessages, error) {
	conv, found, err := a.store.FindConversationByID(ctx, id)
	if err != nil {
		return domain.ConversationMessages{}, fmt.Errorf("find conversation: %w", err)
	}
	if !found {
		return domain.ConversationMessages{}, ErrConversationNotFound
	}
	msgs, err := a.store.FindMessagesByConversation(ctx, id)
	if err != nil {
		return domain.ConversationMessages{}, fmt.Errorf("find messages: %w", err)
	}
	users, err := a.store.FindUsersByIDs(ctx, conv.Participants)
	if err != nil {
		return domain.ConversationMessages{}, fmt.Errorf("find participants: %w", err)
	}
	byID := make(map[string]domain.Participant, len(users))
	participants := make([]domain.Participant, 0, len(users))
	for _, u := range users {
		p := u.Participant()
		byID[u.ID] = p
		participants = append(participants, p)
	}
	out := make([]domain.ConversationMessage, 0, len(msgs))
	for _, m := range msgs {
		var sender any = m.SenderID
		if p, ok := byID[m.SenderID]; ok {
			sender = p
		}
		out = append(out, domain.ConversationMessage{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Sender:         sender,
			Content:        m.Content,
			IsAIResponse:   m.IsAIResponse,
			CreatedAt:      m.CreatedAt,
		})
	}
	return domain.ConversationMessages{Messages: out, Participants: participants}, nil
}

// CreateConversation registers the pdf file and its conversation for the
// user with the email. Both creates are idempotent on their natural keys,
// so re-submitting the same file yields the existing conversation.
func (a *App) CreateConversation(ctx context.Context, req CreateConversationRequest) (domain.Conversation, error) {
	user, found, err := a.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("find user: %w", err)
	}
	if !found {
		return domain.Conversation{}, ErrUserNotFound
	}
	file, err := a.store.CheckAndCreatePdfFile(ctx, domain.PdfFile{
		ID:       util.NewID(),
		Name:     req.FileName,
		URL:      req.FileURL,
		OwnerID:  user.ID,
		SizeInMB: req.FileSizeInMB,
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create pdf file: %w", err)
	}
	conv, err := a.store.CheckAndCreateConversation(ctx, domain.Conversation{
		ID:           util.NewID(),
		Name:         req.FileName,
		OwnerID:      user.ID,
		Participants: []string{user.ID},
		PdfFileID:    file.ID,
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// AddParticipant adds the user to the conversation's participant set.
// Adding an existing member is a no-op returning the unchanged record.
func (a *App) AddParticipant(ctx context.Context, conversationID, userID string) (domain.Conversation, error) {
	conv, found, err := a.store.AddParticipant(ctx, conversationID, userID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("add participant: %w", err)
	}
	if !found {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// RemoveParticipant removes the user from the conversation's participant
// set. Removing a non-member is a no-op returning the unchanged record.
func (a *App) RemoveParticipant(ctx context.Context, conversationID, userID string) (domain.Conversation, error) {
	conv, found, err := a.store.RemoveParticipant(ctx, conversationID, userID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("remove participant: %w", err)
	}
	if !found {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// DeleteConversation removes the conversation, its pdf file and its
// messages. The steps run in that order and each is independently
// fallible; a mid-sequence failure leaves the later records behind.
func (a *App) DeleteConversation(ctx context.Context, id string) error {
	conv, found, err := a.store.FindConversationByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find conversation: %w", err)
	}
	if !found {
		return ErrConversationNotFound
	}
	if _, err := a.store.DeleteConversations(ctx, []string{conv.ID}); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if _, err := a.store.DeletePdfFiles(ctx, []string{conv.PdfFileID}); err != nil {
		return fmt.Errorf("delete pdf file: %w", err)
	}
	if _, err := a.store.DeleteMessagesByConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}
