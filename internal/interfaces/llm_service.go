package interfaces

import (
	"context"
)

// LLMService defines the language model operations used by the search pipeline
type LLMService interface {
	// Complete generates text for prompt. systemInstruction is appended to the configured system prompt.
	Complete(ctx context.Context, prompt string, systemInstruction string) (string, error)

	// Summarize condenses review texts into one short description
	Summarize(ctx context.Context, reviews []string) (string, error)

	// Caption describes an image in one sentence
	Caption(ctx context.Context, image []byte) (string, error)
}
