// Package agent implements the role-scoped reasoning loop pairing a model
// backend with a bounded tool subset.
//
// Per invocation the loop is a small state machine:
//
//	Thinking -> (ToolCall -> ToolResult -> Thinking)* -> Finalizing -> Done | Aborted
//
// Tool failures are folded back into context as observations so the model can
// correct its arguments; that local recovery is distinct from the
// orchestrator's retry policy, which only handles transient infrastructure
// errors.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jaredassist/jared/internal/bridge"
	"github.com/jaredassist/jared/internal/llm"
	"github.com/jaredassist/jared/internal/logging"
	"github.com/jaredassist/jared/internal/state"
)

// Agent contract errors.
var (
	// ErrExhausted indicates the turn budget ran out before a final
	// answer. Bounds runaway reasoning loops.
	ErrExhausted = errors.New("agent exhausted turn budget")

	// ErrForbiddenTool indicates the model requested a tool outside the
	// role's declared subset. Always a contract bug, never a retryable
	// condition; the call is rejected before reaching the tool bridge.
	ErrForbiddenTool = errors.New("forbidden tool")

	// ErrBadOutput indicates the final answer failed the role's output
	// schema even after the corrective retry.
	ErrBadOutput = errors.New("agent output failed schema validation")
)

// DefaultModelTimeout bounds each individual model call, independent of the
// tool bridge's own timeouts.
const DefaultModelTimeout = 90 * time.Second

// Agent executes one role against a model backend and a tool bridge.
type Agent struct {
	id           string
	role         Role
	backend      llm.Backend
	bridge       *bridge.Bridge
	store        *state.Store
	logger       *slog.Logger
	modelTimeout time.Duration
}

// New creates an agent for one orchestration run.
func New(role Role, backend llm.Backend, br *bridge.Bridge, store *state.Store, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		id:           role.Name + "-" + uuid.NewString()[:8],
		role:         role,
		backend:      backend,
		bridge:       br,
		store:        store,
		logger:       logging.WithAgent(logger, role.Name),
		modelTimeout: DefaultModelTimeout,
	}
}

// ID returns the agent's run-unique identifier.
func (a *Agent) ID() string { return a.id }

// Run drives the reasoning loop until a validated final answer, the turn
// budget, or a backend failure ends it. ctxMsgs carries context from earlier
// agents in the plan (e.g. the Reader's hydration for the Analyzer).
func (a *Agent) Run(ctx context.Context, instruction string, ctxMsgs []llm.Message) (json.RawMessage, error) {
	maxTurns := a.role.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	msgs := make([]llm.Message, 0, len(ctxMsgs)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.role.SystemPrompt})
	msgs = append(msgs, ctxMsgs...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: instruction})

	tools := bridge.Defs(a.role.AllowedTools)
	formatRetried := false

	for turn := 1; turn <= maxTurns; turn++ {
		// Cancellation is checked at turn boundaries only; an in-flight
		// tool call always completes.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		completion, err := a.complete(ctx, msgs, tools)
		if err != nil {
			return nil, err
		}

		if !completion.IsToolCall() {
			final := completion.Final
			if err := a.validateFinal(final); err != nil {
				if formatRetried {
					return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
				}
				formatRetried = true
				a.logger.Warn("final answer failed schema, requesting correction",
					logging.Turn(turn), logging.Err(err))
				msgs = append(msgs,
					llm.Message{Role: llm.RoleAssistant, Content: string(final)},
					llm.Message{Role: llm.RoleUser, Content: formatReminder(err)})
				continue
			}
			a.store.AppendTurn(a.id, state.Turn{Role: a.role.Name, Final: final})
			a.logger.Info("agent finished", logging.Turn(turn), logging.Status(logging.StatusSuccess))
			return final, nil
		}

		call := completion.ToolCall
		if !a.role.Allows(call.Tool) {
			// Rejected before the bridge: zero provider calls.
			a.logger.Error("tool outside declared subset",
				logging.Tool(call.Tool), logging.Turn(turn))
			return nil, fmt.Errorf("%w: role %s requested %s", ErrForbiddenTool, a.role.Name, call.Tool)
		}

		result := a.bridge.Invoke(ctx, bridge.ToolCall{
			Tool:    call.Tool,
			Args:    call.Args,
			AgentID: a.id,
		})
		observation := renderObservation(call.Tool, result)

		a.store.AppendTurn(a.id, state.Turn{
			Role:        a.role.Name,
			Tool:        call.Tool,
			Args:        call.Args,
			Observation: observation,
		})

		callJSON, _ := json.Marshal(call)
		msgs = append(msgs,
			llm.Message{Role: llm.RoleAssistant, Content: string(callJSON)},
			llm.Message{Role: llm.RoleTool, Content: observation})
	}

	return nil, fmt.Errorf("%w after %d turns", ErrExhausted, maxTurns)
}

func (a *Agent) complete(ctx context.Context, msgs []llm.Message, tools []llm.ToolDef) (*llm.Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.modelTimeout)
	defer cancel()
	return a.backend.Complete(callCtx, msgs, tools)
}

func (a *Agent) validateFinal(raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty final answer")
	}
	if a.role.ValidateOutput == nil {
		return nil
	}
	return a.role.ValidateOutput(raw)
}

func formatReminder(err error) string {
	return fmt.Sprintf(
		"Your answer did not match the required output format (%v). "+
			"Reply again with only the JSON object in the format described in your instructions.", err)
}

// renderObservation folds a tool result into a textual observation for the
// model. Errors become typed observations so the model can correct its
// arguments on the next turn.
func renderObservation(tool string, result bridge.ToolResult) string {
	if result.OK {
		payload, err := json.Marshal(result.Payload)
		if err != nil {
			return fmt.Sprintf("%s succeeded but payload was unserializable", tool)
		}
		return string(payload)
	}
	return fmt.Sprintf("tool %s failed (%s): %s", tool, result.ErrKind, result.Detail)
}
