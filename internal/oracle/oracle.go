// Package oracle is the single boundary between the pipeline and the language
// model. Everything past this package sees a TextResponse or a decoded value,
// never a provider response object.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/tally/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

var (
	// ErrUnexpectedFormat is returned when a response has neither a choices list
	// nor a direct content value.
	ErrUnexpectedFormat = errors.New("unexpected oracle response format")

	// ErrNoStructuredOutput is returned when a structured call produced neither
	// the requested tool call nor a JSON body.
	ErrNoStructuredOutput = errors.New("oracle returned no structured output")
)

// TextResponse is the normalized answer of a free-form generation.
type TextResponse struct {
	Text string
}

// Client wraps an llms.Model with per-call timeouts and event logging.
// It holds no per-request state and is safe for concurrent use when the
// underlying model is.
type Client struct {
	model     llms.Model
	modelName string
	timeout   time.Duration
	logger    *observability.Logger
	options   []llms.CallOption
}

type Option func(*Client)

// WithTimeout bounds every oracle call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithModelName sets the model name reported in cost events.
func WithModelName(name string) Option {
	return func(c *Client) { c.modelName = name }
}

// WithCallOptions appends options passed to every generation call.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(c *Client) { c.options = append(c.options, opts...) }
}

func New(model llms.Model, opts ...Option) *Client {
	c := &Client{
		model:   model,
		timeout: 60 * time.Second,
		options: []llms.CallOption{llms.WithTemperature(0)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate runs a free-form generation and normalizes the reply to text.
func (c *Client) Generate(ctx context.Context, messages []llms.MessageContent) (TextResponse, error) {
	resp, err := c.generate(ctx, messages)
	if err != nil {
		return TextResponse{}, err
	}
	return Normalize(resp)
}

// GenerateStructured asks the model to answer through tool and decodes the
// tool call arguments into out. A reply carrying a JSON body instead of a
// tool call is accepted as well.
func (c *Client) GenerateStructured(ctx context.Context, messages []llms.MessageContent, tool llms.Tool, out any) error {
	resp, err := c.generate(ctx, messages, llms.WithTools([]llms.Tool{tool}))
	if err != nil {
		return err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return ErrUnexpectedFormat
	}

	choice := resp.Choices[0]
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != tool.Function.Name {
			continue
		}
		if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), out); err != nil {
			return fmt.Errorf("failed to parse %s arguments: %w", tool.Function.Name, err)
		}
		return nil
	}

	body := stripCodeFence(choice.Content)
	if body == "" {
		return ErrNoStructuredOutput
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", ErrNoStructuredOutput, err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, messages []llms.MessageContent, extra ...llms.CallOption) (*llms.ContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	opts := make([]llms.CallOption, 0, len(c.options)+len(extra))
	opts = append(opts, c.options...)
	opts = append(opts, extra...)

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}

	c.record(ctx, messages, resp)
	return resp, nil
}

func (c *Client) record(ctx context.Context, messages []llms.MessageContent, resp *llms.ContentResponse) {
	if c.logger == nil || resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return
	}
	req := observability.RequestFromContext(ctx)
	choice := resp.Choices[0]

	c.logger.LogLLM(req.ChatID, req.TaskID, describeMessages(messages), choice.Content, choice.ToolCalls)

	prompt := intInfo(choice.GenerationInfo, "PromptTokens")
	completion := intInfo(choice.GenerationInfo, "CompletionTokens")
	if prompt+completion > 0 {
		c.logger.LogCost(req.ChatID, req.TaskID, prompt, completion, c.modelName)
	}
}

// Normalize converts a provider response into a TextResponse. Two shapes are
// recognized: a choices list whose first element carries the content, or a
// value that carries the content directly.
func Normalize(resp any) (TextResponse, error) {
	switch r := resp.(type) {
	case *llms.ContentResponse:
		if r == nil || len(r.Choices) == 0 || r.Choices[0] == nil {
			return TextResponse{}, fmt.Errorf("%w: empty choices", ErrUnexpectedFormat)
		}
		return TextResponse{Text: r.Choices[0].Content}, nil
	case *llms.ContentChoice:
		if r == nil {
			return TextResponse{}, fmt.Errorf("%w: nil choice", ErrUnexpectedFormat)
		}
		return TextResponse{Text: r.Content}, nil
	case llms.TextContent:
		return TextResponse{Text: r.Text}, nil
	default:
		return TextResponse{}, fmt.Errorf("%w: %T", ErrUnexpectedFormat, resp)
	}
}

func describeMessages(messages []llms.MessageContent) []map[string]string {
	out := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		var parts []string
		for _, p := range m.Parts {
			if t, ok := p.(llms.TextContent); ok {
				parts = append(parts, t.Text)
			}
		}
		out = append(out, map[string]string{
			"role":    string(m.Role),
			"content": strings.Join(parts, "\n"),
		})
	}
	return out
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Messages builds the system + human exchange every pipeline stage sends.
func Messages(system, human string) []llms.MessageContent {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	return append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(human)},
	})
}
