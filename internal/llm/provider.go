// Package llm talks to hosted language models. Essay analysis runs in raw
// text mode: the model is told the JSON shape in the system prompt and the
// completion is handed to the repair parser untouched, because a truncated
// or sloppy answer is still worth salvaging.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates one completion per call.
type Provider interface {
	// Generate sends the request. With a Schema the provider's native
	// structured output is used and Content is validated JSON. Without one
	// Content holds the model's raw text, which may not be valid JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the configured model identifier.
	ModelID() string
}

// Request describes what to send.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt builds a single-turn request.
func UserPrompt(system, user string) Request {
	return Request{System: system, Messages: []Message{{Role: RoleUser, Content: user}}}
}

// Schema is a JSON schema for structured output.
type Schema struct {
	// Name identifies the schema, kebab-case, e.g. "essay-analysis".
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the model output.
type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string
	// StopReason is normalised to "end" or "max_tokens".
	StopReason string
}

// Text returns the content as text.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Content)
}

// Truncated reports whether generation stopped at the token limit.
func (r *Response) Truncated() bool {
	return r != nil && r.StopReason == stopMaxTokens
}

// Usage tracks token consumption for one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

const (
	stopEnd       = "end"
	stopMaxTokens = "max_tokens"
)

// finish validates structured content and assembles the response shared
// by every SDK adapter.
func finish(req Request, content string, usage Usage, model, stop string) (*Response, error) {
	raw := json.RawMessage(content)
	if req.Schema != nil {
		if stop == stopMaxTokens {
			return nil, &ErrMaxTokensExceeded{Content: raw}
		}
		if err := validateResponse(req.Schema, raw); err != nil {
			return nil, err
		}
	}
	return &Response{Content: raw, Usage: usage, Model: model, StopReason: stop}, nil
}

// resolveModel maps a friendly model name to a provider model ID. Unknown
// names pass through so direct IDs work.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
