package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
)

type Client struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	requestOpts []option.RequestOption
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = anthropic.Model(model)
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.requestOpts = append(c.requestOpts, option.WithBaseURL(url))
		}
	}
}

// WithDirectTransport makes the client connect straight to the API, ignoring
// HTTP_PROXY, HTTPS_PROXY and ALL_PROXY from the environment.
func WithDirectTransport() Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		c.requestOpts = append(c.requestOpts, option.WithHTTPClient(&http.Client{Transport: transport}))
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		model:     anthropic.Model(DefaultModel),
		maxTokens: DefaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, c.requestOpts...)
	c.client = anthropic.NewClient(reqOpts...)
	return c
}

func (c *Client) Model() string { return string(c.model) }

func (c *Client) CompleteWithTools(ctx context.Context, system string, messages []Message, tools []Tool) (*Response, error) {
	apiMessages, err := toAPIMessages(messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  apiMessages,
		Tools:     toAPITools(tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api: %w", err)
	}
	return fromAPIMessage(resp), nil
}

func toAPIMessages(messages []Message) ([]anthropic.MessageParam, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	out := make([]anthropic.MessageParam, 0, len(messages))
	for i, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for j, b := range m.Content {
			block, err := toAPIBlock(m.Role, b)
			if err != nil {
				return nil, fmt.Errorf("message[%d] block[%d]: %w", i, j, err)
			}
			blocks = append(blocks, block)
		}
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message[%d]: unknown role %q", i, m.Role)
		}
	}

	if last := out[len(out)-1]; last.Role != anthropic.MessageParamRoleUser {
		return nil, fmt.Errorf("last message must be from user, got %q", last.Role)
	}

	return out, nil
}

func toAPIBlock(role Role, b Block) (anthropic.ContentBlockParamUnion, error) {
	switch {
	case b.Type == BlockText:
		return anthropic.NewTextBlock(b.Text), nil
	case b.Type == BlockToolUse && role == RoleAssistant:
		input := b.Input
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		return anthropic.NewToolUseBlock(b.ID, input, b.Name), nil
	case b.Type == BlockToolResult && role == RoleUser:
		return anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError), nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%s block not allowed in %s message", b.Type, role)
	}
}

func toAPITools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Properties,
					Required:   t.Required,
				},
			},
		})
	}
	return out
}

// fromAPIMessage keeps text and tool_use blocks; other block kinds (thinking,
// server tools) carry nothing the loop acts on.
func fromAPIMessage(msg *anthropic.Message) *Response {
	resp := &Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content = append(resp.Content, TextBlock(block.Text))
		case "tool_use":
			input := append(json.RawMessage(nil), block.Input...)
			resp.Content = append(resp.Content, ToolUseBlock(block.ID, block.Name, input))
		}
	}
	return resp
}
