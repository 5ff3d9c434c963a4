// Package llmtest provides scripted model backends for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/jaredassist/jared/internal/llm"
)

// Step is one scripted backend response: either a completion or an error.
type Step struct {
	Completion *llm.Completion
	Err        error
}

// Script is a Backend that replays a fixed sequence of steps. When the script
// is exhausted it repeats the last step, so "always requests another tool
// call" scenarios only need one step.
type Script struct {
	mu    sync.Mutex
	steps []Step
	calls int

	// LastMessages holds the context of the most recent Complete call for
	// assertions on what the model saw.
	LastMessages []llm.Message
}

// NewScript creates a scripted backend.
func NewScript(steps ...Step) *Script {
	return &Script{steps: steps}
}

// ToolCall returns a step that requests a tool invocation.
func ToolCall(tool string, args map[string]any) Step {
	return Step{Completion: &llm.Completion{ToolCall: &llm.ToolCallRequest{Tool: tool, Args: args}}}
}

// Final returns a step that produces a final answer.
func Final(payload string) Step {
	return Step{Completion: &llm.Completion{Final: []byte(payload)}}
}

// Fail returns a step that fails with err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Complete replays the next scripted step.
func (s *Script) Complete(_ context.Context, msgs []llm.Message, _ []llm.ToolDef) (*llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastMessages = append([]llm.Message(nil), msgs...)

	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.calls++

	step := s.steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Completion, nil
}

// Calls returns the number of Complete invocations observed.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
