// Package ai implements the task generator over the Anthropic Messages
// API.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fasttrack/core/internal/infrastructure/config"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

const systemPrompt = `You are a project planning assistant. Given a goal,
break it into a short list of concrete, actionable tasks. Respond with a
JSON array only, no prose, where each element is an object with a "title"
string and a "description" string. Keep titles under ten words.`

// AnthropicGenerator asks a Claude model to break a prompt into task
// drafts.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *logger.Logger
}

// NewAnthropicGenerator creates a generator from the AI configuration.
func NewAnthropicGenerator(cfg config.AIConfig, log *logger.Logger) *AnthropicGenerator {
	return &AnthropicGenerator{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
		logger:    log.WithComponent("ai"),
	}
}

// Generate produces task drafts for the prompt. The model is asked for a
// bare JSON array; fenced or prose-wrapped responses are salvaged by
// extracting the outermost array.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt, projectID string) ([]ports.TaskDraft, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	drafts, err := parseDrafts(text.String())
	if err != nil {
		return nil, err
	}

	g.logger.Infow("Generated task drafts", "project_id", projectID, "count", len(drafts))
	return drafts, nil
}

// parseDrafts decodes the model response into drafts, tolerating text
// around the JSON array.
func parseDrafts(text string) ([]ports.TaskDraft, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("model response contains no JSON array")
	}

	var drafts []ports.TaskDraft
	if err := json.Unmarshal([]byte(text[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return drafts, nil
}
