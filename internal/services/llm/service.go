package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/common"
)

const (
	summarizeInstruction = "summarize these restaurant reviews in at most three sentences, omit explanations"
	captionPrompt        = "Describe this photo in one sentence."
	captionInstruction   = "only return the description, omit explanations"
)

// Service implements interfaces.LLMService on top of a Generator
type Service struct {
	generator    Generator
	llmConfig    *common.LLMConfig
	captionModel string
	logger       arbor.ILogger
}

// NewService creates an LLM service. Captions always go to the Gemini caption model.
func NewService(generator Generator, llmConfig *common.LLMConfig, geminiConfig *common.GeminiConfig, logger arbor.ILogger) *Service {
	captionModel := geminiConfig.CaptionModel
	if captionModel == "" {
		captionModel = geminiConfig.Model
	}
	return &Service{
		generator:    generator,
		llmConfig:    llmConfig,
		captionModel: "gemini/" + strings.TrimPrefix(captionModel, "gemini/"),
		logger:       logger,
	}
}

// Complete generates text for prompt under the configured system prompt plus instruction
func (s *Service) Complete(ctx context.Context, prompt string, instruction string) (string, error) {
	resp, err := s.generator.GenerateContent(ctx, &ContentRequest{
		Prompt:            prompt,
		SystemInstruction: s.systemPrompt(instruction),
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	s.logger.Debug().
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Int("response_length", len(resp.Text)).
		Msg("Completion received")

	return resp.Text, nil
}

// Summarize condenses reviews into a short description. No reviews gives an empty summary.
func (s *Service) Summarize(ctx context.Context, reviews []string) (string, error) {
	if len(reviews) == 0 {
		return "", nil
	}

	text, err := s.Complete(ctx, strings.Join(reviews, ". "), summarizeInstruction)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Caption describes a JPEG image in one sentence
func (s *Service) Caption(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", nil
	}

	resp, err := s.generator.GenerateContent(ctx, &ContentRequest{
		Prompt:            captionPrompt,
		Image:             image,
		ImageMIMEType:     "image/jpeg",
		Model:             s.captionModel,
		SystemInstruction: s.systemPrompt(captionInstruction),
	})
	if err != nil {
		return "", fmt.Errorf("caption failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (s *Service) systemPrompt(instruction string) string {
	base := strings.TrimSpace(s.llmConfig.SystemInstruction)
	instruction = strings.TrimSpace(instruction)
	switch {
	case base == "":
		return instruction
	case instruction == "":
		return base
	default:
		return base + "\n" + instruction
	}
}
