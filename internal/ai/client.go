package ai

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shortform-agent/internal/agent"
	"github.com/shortform-agent/internal/config"
	"github.com/shortform-agent/pkg/logger"
	"github.com/shortform-agent/pkg/ratelimit"
)

// Client wraps the Anthropic SDK client
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	inPerMTok   float64
	outPerMTok  float64
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// Response is the provider's reply plus usage/cost metadata
type Response struct {
	Text  string
	Usage agent.Usage
}

// NewClient creates a new Anthropic client
func NewClient(cfg config.AnthropicConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &Client{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		inPerMTok:   cfg.InputPricePerMTok,
		outPerMTok:  cfg.OutputPricePerMTok,
		rateLimiter: limiter,
		log:         log.WithComponent("ai"),
	}
}

// Complete sends a message to Claude and returns the full response.
// If sink is non-nil the response is streamed and each text delta is
// forwarded to it as "thinking" output before the final result returns.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string, sink agent.ThinkingSink) (*Response, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterAnthropic); err != nil {
		return nil, &agent.TransportError{Err: err}
	}

	c.log.Debug().
		Str("model", c.model).
		Int("max_tokens", c.maxTokens).
		Bool("streaming", sink != nil).
		Msg("Sending request to Claude")

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		},
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(userMessage),
				},
			},
		},
	}

	var message *anthropic.Message
	if sink != nil {
		streamed, err := c.stream(ctx, params, sink)
		if err != nil {
			c.log.Error().Err(err).Msg("Claude API error")
			return nil, &agent.TransportError{Err: err}
		}
		message = streamed
	} else {
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			c.log.Error().Err(err).Msg("Claude API error")
			return nil, &agent.TransportError{Err: err}
		}
		message = msg
	}

	// Extract text from response
	var text string
	for _, block := range message.Content {
		textBlock := block.AsText()
		if textBlock.Text != "" {
			text += textBlock.Text
		}
	}

	usage := c.usageOf(message)

	c.log.Debug().
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Float64("cost_usd", usage.CostUSD).
		Msg("Received Claude response")

	return &Response{Text: text, Usage: usage}, nil
}

// CompleteJSON sends a message and expects a JSON response
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, sink agent.ThinkingSink) (*Response, error) {
	// Add JSON instruction to system prompt
	enhancedSystem := systemPrompt + "\n\nIMPORTANT: Respond ONLY with valid JSON. No markdown, no explanation, just the JSON object."

	return c.Complete(ctx, enhancedSystem, userMessage, sink)
}

// stream runs the request in streaming mode, forwarding text deltas to sink
func (c *Client) stream(ctx context.Context, params anthropic.MessageNewParams, sink agent.ThinkingSink) (*anthropic.Message, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, err
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				sink(deltaVariant.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &message, nil
}

// usageOf converts SDK usage into token counts and USD cost
func (c *Client) usageOf(message *anthropic.Message) agent.Usage {
	in := int(message.Usage.InputTokens)
	out := int(message.Usage.OutputTokens)
	return agent.Usage{
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      float64(in)/1e6*c.inPerMTok + float64(out)/1e6*c.outPerMTok,
	}
}
