package ai

import "context"

// TextGenerator produces an answer for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}
