package assist

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = openai.GPT4o

// OpenAIBackend talks to the OpenAI chat completion API, or to any
// API-compatible server when constructed with a base URL.
type OpenAIBackend struct {
	client    *openai.Client
	name      string
	model     string
	maxTokens int
}

// NewOpenAIBackend builds the hosted-API backend. The key comes from the
// OPENAI_API_KEY environment variable.
func NewOpenAIBackend(maxTokens int) (*OpenAIBackend, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return &OpenAIBackend{
		client:    openai.NewClient(apiKey),
		name:      "openai",
		model:     defaultModel,
		maxTokens: maxTokens,
	}, nil
}

// NewCompatBackend builds a backend against an OpenAI-compatible endpoint,
// typically a local model server. The key may be empty for servers that do
// not authenticate.
func NewCompatBackend(baseURL, model string, maxTokens int) *OpenAIBackend {
	cfg := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	cfg.BaseURL = baseURL
	if model == "" {
		model = defaultModel
	}
	return &OpenAIBackend{
		client:    openai.NewClientWithConfig(cfg),
		name:      "compat",
		model:     model,
		maxTokens: maxTokens,
	}
}

func (b *OpenAIBackend) Name() string { return b.name }

// Complete answers a text query in one attempt.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPromptFor(req)},
		{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)},
	}
	return b.chat(ctx, messages)
}

// AnalyzeImage sends a screenshot as a base64 data URL alongside the prompt.
func (b *OpenAIBackend) AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error) {
	imageData, err := os.ReadFile(req.PNGPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot: %w", err)
	}
	dataURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(imageData))

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Analyze this screenshot."
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: imageSystemPrompt},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
				},
			},
		},
	}
	return b.chat(ctx, messages)
}

func (b *OpenAIBackend) chat(ctx context.Context, messages []openai.ChatCompletionMessage) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     b.model,
		Messages:  messages,
		MaxTokens: b.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", b.name)
	}

	return &Response{
		Text:    resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Backend: b.name,
		Elapsed: time.Since(start),
	}, nil
}

// HealthCheck lists models as a cheap connectivity probe.
func (b *OpenAIBackend) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := b.client.ListModels(ctx); err != nil {
		return &HealthStatus{OK: false, Backend: b.name, Message: err.Error()}, nil
	}
	return &HealthStatus{OK: true, Backend: b.name, Latency: time.Since(start)}, nil
}
