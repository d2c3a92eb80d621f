package store

import (
	"context"

	"pdfchat/pkg/domain"
)

// Store defines persistence operations for users, pdf files,
// conversations and messages.
//
// Lookup methods return (record, false, nil) when nothing matches; errors
// are reserved for upstream failures. Delete methods report whether at
// least one record was removed. CheckAndCreate methods return the existing
// record when the idempotency key already matches one; the check and the
// insert are not atomic, so concurrent identical callers can race — the
// keys are scoped tightly enough per caller that this is acceptable.
type Store interface {
	// users
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	FindUserByID(ctx context.Context, id string) (domain.User, bool, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	// pdf files, keyed on (owner, name, sizeInMB) for idempotent re-creation
	CheckAndCreatePdfFile(ctx context.Context, file domain.PdfFile) (domain.PdfFile, error)
	FindPdfFileByID(ctx context.Context, id string) (domain.PdfFile, bool, error)
	FindPdfFilesByOwner(ctx context.Context, ownerID string) ([]domain.PdfFile, error)
	FindPdfFilesByIDs(ctx context.Context, ids []string) ([]domain.PdfFile, error)
	DeletePdfFiles(ctx context.Context, ids []string) (bool, error)

	// conversations, keyed on pdfFile for idempotent creation
	CheckAndCreateConversation(ctx context.Context, conv domain.Conversation) (domain.Conversation, error)
	FindConversationByID(ctx context.Context, id string) (domain.Conversation, bool, error)
	FindConversationsByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, userID string) (domain.Conversation, bool, error)
	RemoveParticipant(ctx context.Context, conversationID, userID string) (domain.Conversation, bool, error)
	DeleteConversations(ctx context.Context, ids []string) (bool, error)

	// messages, immutable, insertion-ordered within a conversation
	CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	FindMessagesByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	DeleteMessagesByConversation(ctx context.Context, conversationID string) (bool, error)
}
