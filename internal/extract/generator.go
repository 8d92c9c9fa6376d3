package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/pkg/anthropic"
	"github.com/sells-group/company-extractor/pkg/gemini"
	"github.com/sells-group/company-extractor/pkg/openai"
)

// AnthropicGenerator adapts the Anthropic Messages API to Generator.
type AnthropicGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicGenerator creates a Generator backed by Claude.
func NewAnthropicGenerator(client anthropic.Client, model string, maxTokens int, temperature float64) *AnthropicGenerator {
	return &AnthropicGenerator{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}
}

// Name implements Generator.
func (g *AnthropicGenerator) Name() string { return "anthropic" }

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	temp := g.temperature
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      []anthropic.SystemBlock{{Text: system}},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(g.model, "extract")
	return resp.Text(), nil
}

// GeminiGenerator adapts the Gemini API to Generator.
type GeminiGenerator struct {
	client      gemini.Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewGeminiGenerator creates a Generator backed by Gemini in JSON mode.
func NewGeminiGenerator(client gemini.Client, model string, maxTokens int, temperature float64) *GeminiGenerator {
	return &GeminiGenerator{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
	}
}

// Name implements Generator.
func (g *GeminiGenerator) Name() string { return "gemini" }

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.GenerateJSON(ctx, gemini.Request{
		Model:           g.model,
		System:          system,
		Prompt:          prompt,
		Temperature:     g.temperature,
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// OpenAIGenerator adapts an OpenAI-compatible chat completions API to
// Generator. Requests use JSON mode.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIGenerator creates a Generator backed by chat completions.
func NewOpenAIGenerator(client openai.Client, model string, maxTokens int, temperature float64) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Name implements Generator.
func (g *OpenAIGenerator) Name() string { return "openai" }

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	temp := g.temperature
	maxTokens := g.maxTokens
	resp, err := g.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    &temp,
		MaxTokens:      &maxTokens,
		ResponseFormat: openai.JSONObject,
	})
	if err != nil {
		return "", err
	}
	zap.L().Debug("extract: openai usage",
		zap.String("model", g.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Content()
}
