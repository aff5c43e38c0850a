// Package claude is the self-hosted alternative to the webhook recognizer:
// it asks Claude's vision model for the same response envelope, so the rest
// of the pipeline cannot tell the backends apart.
package claude

import (
	"context"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/kingpromise/promeals/internal/analyzer"
)

// prompt pins the model to the recognizer's wire shape so the shared
// classifier can parse both backends.
const prompt = `Identify every distinct food item in this meal photo and estimate its nutrition.
Respond with ONLY a JSON object, no prose, in exactly this shape:
{"output":{"food":[{"name":"...","quantity":"...","calories":0,"protein":0,"carbs":0,"fat":0}]}}
quantity is a human-readable portion estimate like "150g" or "1 cup".
calories are kcal; protein, carbs and fat are grams. Use numbers, not strings.`

type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

func New(apiKey, model string, opts ...anthropic.ClientOption) *Client {
	return &Client{
		api:   anthropic.NewClient(apiKey, opts...),
		model: anthropic.Model(model),
	}
}

func (c *Client) Analyze(ctx context.Context, imageData []byte, mimeType string) analyzer.Outcome {
	resp, err := c.api.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: c.model,
		// A meal photo yields a handful of items at ~40 tokens each; 1024
		// leaves room for verbose models.
		MaxTokens: 1024,
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					normaliseMIME(mimeType),
					imageData,
				)),
				anthropic.NewTextMessageContent(prompt),
			},
		}},
	})
	if err != nil {
		return analyzer.Failedf("failed to call claude: %v", err)
	}

	text := stripFences(resp.GetFirstContentText())
	if text == "" {
		return analyzer.Failedf("claude returned no text content")
	}
	return analyzer.Classify([]byte(text))
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite the prompt.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normaliseMIME maps sniffed MIME types to the values the Anthropic API
// accepts; unknown types are coerced to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
