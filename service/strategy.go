package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	model "github.com/ankitm14/ContractSage/models"

	openai "github.com/sashabaranov/go-openai"
)

// documentInput is one routed contract document handed to a strategy.
// Text is populated only for text-routed formats.
type documentInput struct {
	Text     string
	Bytes    []byte
	MimeType string
	Filename string
}

// extractionStrategy turns one contract document into a structured
// AnalysisResult via the external completion service. The two variants are
// mutually exclusive: the format router picks exactly one per document.
type extractionStrategy interface {
	Extract(ctx context.Context, doc documentInput) (*model.AnalysisResult, error)
}

// textCompletionStrategy sends extracted text through a JSON-constrained
// chat completion against an OpenAI-compatible endpoint. Low temperature
// favors determinism, but callers must still treat results as best-effort.
type textCompletionStrategy struct {
	client *openai.Client
	model  string
}

func newTextCompletionStrategy(cfg Config) *textCompletionStrategy {
	s := &textCompletionStrategy{model: cfg.GroqModel}
	if cfg.GroqAPIKey == "" {
		// Missing credential surfaces as ErrExtractionFailed at dispatch time.
		return s
	}
	oc := openai.DefaultConfig(cfg.GroqAPIKey)
	oc.BaseURL = cfg.GroqBaseURL
	s.client = openai.NewClientWithConfig(oc)
	return s
}

func (t *textCompletionStrategy) Extract(ctx context.Context, doc documentInput) (*model.AnalysisResult, error) {
	if t.client == nil {
		return nil, fmt.Errorf("%w: completion service credential is not configured", ErrExtractionFailed)
	}

	req := openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0.1,
		MaxTokens:   maxCompletionTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildExtractionPrompt(doc.Text)},
		},
	}

	resp, err := t.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Printf("ERROR from completion endpoint: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", ErrExtractionFailed)
	}

	return parseAnalysisResult(resp.Choices[0].Message.Content)
}

// parseAnalysisResult decodes a completion payload into the analysis
// schema. Empty or malformed output is an extraction failure, never a
// partial result.
func parseAnalysisResult(content string) (*model.AnalysisResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty completion response", ErrExtractionFailed)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		log.Printf("ERROR parsing completion output: %v", err)
		return nil, fmt.Errorf("%w: malformed completion output: %v", ErrExtractionFailed, err)
	}
	return &result, nil
}
