package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Summary is the structured result of summarizing a book excerpt.
type Summary struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Options configure the summarizer client.
type Options struct {
	APIKey  string
	BaseURL string // override for tests and proxies
	Model   string
	Logger  *zap.Logger
}

// Summarizer produces book summaries from extracted plain text.
type Summarizer struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

// defaultModel is used when the caller specifies none.
const defaultModel = "gpt-4o-mini"

const systemPrompt = `You summarize books from a plain-text excerpt of their opening pages. ` +
	`Respond with exactly one JSON object of the form ` +
	`{"title": string, "summary": string, "keywords": [string, ...]} ` +
	`and no prose outside the JSON. The summary is 3-5 sentences; keywords are 5-10 short topical terms.`

// New creates a summarizer.
func New(opts Options) (*Summarizer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("summarizer: API key required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log,
	}, nil
}

// Summarize sends the excerpt for summarization and parses the
// structured response.
func (s *Summarizer) Summarize(ctx context.Context, excerpt string) (*Summary, error) {
	if strings.TrimSpace(excerpt) == "" {
		return nil, errors.New("summarizer: empty excerpt")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: excerpt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		s.log.Error("summarization call failed", zap.String("model", s.model), zap.Error(err))
		return nil, fmt.Errorf("summarization request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("summarization returned no choices")
	}

	return parseSummary(resp.Choices[0].Message.Content)
}

// parseSummary tolerates markdown code fences around the JSON payload.
func parseSummary(content string) (*Summary, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var s Summary
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &s); err != nil {
		return nil, fmt.Errorf("unexpected summarization response: %w", err)
	}
	return &s, nil
}
