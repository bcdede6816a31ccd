package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const defaultMaxTokens = 8192

// callResult is the package-internal outcome of one provider call.
type callResult struct {
	Text         string
	RequestID    string
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// complete makes one message call and returns the concatenated text output.
func (c *Client) complete(ctx context.Context, system, prompt string) (*callResult, error) {
	resp, err := c.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, wrapCallError(c.provider, c.model, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return &callResult{
		Text:         text.String(),
		RequestID:    resp.ID,
		Provider:     c.provider,
		Model:        string(c.model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Cost:         c.pricing.Cost(string(c.model), resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}

// completeJSON makes one message call and unmarshals the first JSON value in
// the response into out. Models wrap JSON in prose and code fences; the
// bracket scan tolerates both.
func (c *Client) completeJSON(ctx context.Context, system, prompt string, out any) (*callResult, error) {
	res, err := c.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	if err := parseJSONBlock(res.Text, out); err != nil {
		return res, err
	}
	return res, nil
}

// parseJSONBlock extracts the outermost JSON object or array from text and
// unmarshals it into out.
func parseJSONBlock(text string, out any) error {
	start, end := -1, -1
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	switch {
	case arrStart != -1 && (objStart == -1 || arrStart < objStart):
		start = arrStart
		end = strings.LastIndex(text, "]")
	case objStart != -1:
		start = objStart
		end = strings.LastIndex(text, "}")
	}

	if start == -1 || end == -1 || end <= start {
		preview := text
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return fmt.Errorf("%w: no JSON value found in response (%d chars): %q", ErrMalformedOutput, len(text), preview)
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
