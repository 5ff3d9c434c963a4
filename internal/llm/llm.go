// Package llm defines the model backend contract for agent reasoning.
//
// A backend turns accumulated conversation context plus a tool catalog into
// either a tool-call request or a final answer. The response is a tagged
// variant validated at this boundary; downstream components never branch on
// unchecked free-form text.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Backend errors, classified for retry policy.
var (
	// ErrTimeout indicates the model call exceeded its deadline. Transient.
	ErrTimeout = errors.New("model backend timeout")

	// ErrUnavailable indicates the backend rejected or failed the call for
	// infrastructure reasons. Transient.
	ErrUnavailable = errors.New("model backend unavailable")

	// ErrMalformed indicates the model produced output that does not parse
	// as either a tool call or a final answer.
	ErrMalformed = errors.New("malformed model output")
)

// Message is one entry of the context sent to the model.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant", "tool"
	Content string `json:"content"`
}

// Context roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolDef describes one callable tool to the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCallRequest is the model asking for one tool invocation.
type ToolCallRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Completion is the validated model response: exactly one of ToolCall or
// Final is set.
type Completion struct {
	ToolCall *ToolCallRequest
	Final    json.RawMessage
}

// IsToolCall reports whether the completion requests a tool invocation.
func (c *Completion) IsToolCall() bool { return c.ToolCall != nil }

// Backend is the language-model inference collaborator.
type Backend interface {
	Complete(ctx context.Context, msgs []Message, tools []ToolDef) (*Completion, error)
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}
