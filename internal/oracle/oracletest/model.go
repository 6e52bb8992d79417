// Package oracletest provides a scripted llms.Model for tests.
package oracletest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call is one recorded GenerateContent invocation.
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// System returns the text of the first system message.
func (c Call) System() string {
	return c.text(llms.ChatMessageTypeSystem)
}

// Human returns the text of the last human message.
func (c Call) Human() string {
	var out string
	for _, m := range c.Messages {
		if m.Role == llms.ChatMessageTypeHuman {
			out = partsText(m)
		}
	}
	return out
}

// HasTool reports whether the call offered a tool with the given name.
func (c Call) HasTool(name string) bool {
	for _, t := range c.Options.Tools {
		if t.Function != nil && t.Function.Name == name {
			return true
		}
	}
	return false
}

func (c Call) text(role llms.ChatMessageType) string {
	for _, m := range c.Messages {
		if m.Role == role {
			return partsText(m)
		}
	}
	return ""
}

func partsText(m llms.MessageContent) string {
	var parts []string
	for _, p := range m.Parts {
		if t, ok := p.(llms.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Model is an llms.Model whose answers come from Respond.
type Model struct {
	Respond func(ctx context.Context, call Call) (*llms.ContentResponse, error)

	mu    sync.Mutex
	calls []Call
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	call := Call{Messages: messages, Options: opts}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Respond == nil {
		return nil, errors.New("oracletest: no responder configured")
	}
	return m.Respond(ctx, call)
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns a copy of every recorded call.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Text builds a single-choice response carrying content.
func Text(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

// ToolCall builds a single-choice response carrying one function call.
func ToolCall(name, arguments string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{
				ID:   "call_1",
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: arguments,
				},
			}},
		}},
	}
}
