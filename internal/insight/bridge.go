// Package insight answers natural-language questions about the inventory
// through a hosted text-generation model.
package insight

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"inventoflow/internal/domain"
)

const (
	// NoInventoryData stands in for the inventory summary when there are no items.
	NoInventoryData = "No inventory data available."

	// NotConfigured is the reply when no API key is set.
	NotConfigured = "Gemini API key is not configured. Please contact your administrator."

	// Unavailable is the reply when generation fails for any reason.
	Unavailable = "Sorry, I encountered an error while generating insights. The API may be unavailable or the request could not be processed. Please try again later."
)

const promptTemplate = `
You are an expert inventory management assistant called InventoFlow AI.
Based on the following inventory data, please answer the user's question.
Be insightful, concise, and friendly. If the user asks a general question not related to inventory, politely decline.

Inventory Data:
---
%s
---

User Question: "%s"
`

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// InsightError wraps a failed generation call. It is logged and never shown.
type InsightError struct {
	Err error
}

func (e *InsightError) Error() string { return "insight generation failed: " + e.Err.Error() }

func (e *InsightError) Unwrap() error { return e.Err }

// Bridge builds prompts and fails closed on every error.
type Bridge struct {
	generator Generator
	logger    *zap.Logger
}

// NewBridge returns a bridge. A nil generator means no API key is configured.
func NewBridge(generator Generator, logger *zap.Logger) *Bridge {
	return &Bridge{generator: generator, logger: logger}
}

// Ask returns the model's reply to question about items, or a fixed
// fallback message.
func (b *Bridge) Ask(ctx context.Context, items []domain.InventoryItem, question string) string {
	if b.generator == nil {
		return NotConfigured
	}

	reply, err := b.generator.Generate(ctx, BuildPrompt(items, question))
	if err != nil {
		b.logger.Error("Insight request failed", zap.Error(&InsightError{Err: err}))
		return Unavailable
	}
	return reply
}

// FormatInventory renders one line per item.
func FormatInventory(items []domain.InventoryItem) string {
	if len(items) == 0 {
		return NoInventoryData
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("Item: %s, Category: %s, Quantity: %d, Price: %s",
			item.Name, item.Category, item.Quantity, item.Price.String())
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt embeds the inventory summary and the question verbatim.
func BuildPrompt(items []domain.InventoryItem, question string) string {
	return fmt.Sprintf(promptTemplate, FormatInventory(items), question)
}

// GenAIGenerator calls the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator returns nil, nil when apiKey is empty.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model %s returned no text", g.model)
	}
	return text, nil
}
