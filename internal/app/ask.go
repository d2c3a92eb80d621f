package app

import (
	"context"
	"fmt"

	"pdfchat/internal/util"
	"pdfchat/pkg/domain"
)

const questionPromptFormat = "Here is the content of the PDF document:\n\n%s\n\nUser's question: %s"

// Ask runs the full question workflow for a conversation: fetch the
// attached pdf, extract its text, generate an answer and persist the
// question followed by the answer. Nothing is persisted when any step
// before generation fails, so a failed ask leaves no half-written
// exchange in the history.
func (a *App) Ask(ctx context.Context, conversationID, senderID, question string) error {
	logger := util.LoggerFromContext(ctx)

	view, err := a.GetConversation(ctx, conversationID)
	if err != nil {
		logger.Error("ask: load conversation", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("load conversation: %w", err)
	}

	text, err := a.extractor.ExtractFromURL(ctx, view.PdfFileURL)
	if err != nil {
		logger.Error("ask: extract pdf text", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("extract pdf text: %w", err)
	}

	prompt := fmt.Sprintf(questionPromptFormat, text, question)
	answer, err := a.generator.GenerateText(ctx, prompt)
	if err != nil {
		logger.Error("ask: generate answer", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("generate answer: %w", err)
	}

	if _, err := a.store.CreateMessage(ctx, domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        question,
		IsAIResponse:   false,
	}); err != nil {
		logger.Error("ask: persist question", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("persist question: %w", err)
	}
	if _, err := a.store.CreateMessage(ctx, domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        answer,
		IsAIResponse:   true,
	}); err != nil {
		logger.Error("ask: persist answer", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("persist answer: %w", err)
	}
	return nil
}
