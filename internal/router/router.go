// Package router turns a top-level request into an agent plan and merges the
// partial results.
//
// Plans are sequential: write operations are single-agent and serialized per
// thread, and the Analyzer requires the complete hydrated message set rather
// than a stream, so there is nothing to fan out inside one run. Independent
// runs parallelize freely above this layer.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaredassist/jared/internal/agent"
	"github.com/jaredassist/jared/internal/bridge"
	"github.com/jaredassist/jared/internal/llm"
	"github.com/jaredassist/jared/internal/logging"
	"github.com/jaredassist/jared/internal/state"
)

// Request kinds routed by the planner.
const (
	KindReadFilter          = "ReadFilter"
	KindDraft               = "Draft"
	KindAnalyzeConversation = "AnalyzeConversation"
)

// AgentResult is one agent's contribution to a run.
type AgentResult struct {
	AgentID    string
	Role       string
	Output     json.RawMessage
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Router selects and sequences agents for each request kind.
type Router struct {
	backend llm.Backend
	roles   map[string]agent.Role
	logger  *slog.Logger
}

// New creates a router with the given role configurations. Roles missing
// from the map fall back to the package defaults.
func New(backend llm.Backend, roles map[string]agent.Role, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	merged := map[string]agent.Role{
		agent.RoleReader:   agent.ReaderRole(),
		agent.RoleDrafter:  agent.DrafterRole(),
		agent.RoleAnalyzer: agent.AnalyzerRole(),
	}
	for name, role := range roles {
		merged[name] = role
	}
	return &Router{backend: backend, roles: merged, logger: logger}
}

// Route executes the plan for the request kind and returns per-role results.
// A dependent step is skipped when its prerequisite failed; the prerequisite
// failure is what surfaces.
func (r *Router) Route(ctx context.Context, kind string, params map[string]string, br *bridge.Bridge, st *state.Store) (map[string]AgentResult, error) {
	switch kind {
	case KindReadFilter:
		return r.readFilter(ctx, params, br, st), nil
	case KindDraft:
		return r.draft(ctx, params, br, st), nil
	case KindAnalyzeConversation:
		return r.analyze(ctx, params, br, st), nil
	default:
		return nil, fmt.Errorf("unroutable request kind %q", kind)
	}
}

func (r *Router) runAgent(ctx context.Context, role agent.Role, instruction string, ctxMsgs []llm.Message, br *bridge.Bridge, st *state.Store) AgentResult {
	a := agent.New(role, r.backend, br, st, r.logger)
	res := AgentResult{AgentID: a.ID(), Role: role.Name, StartedAt: time.Now()}
	res.Output, res.Err = a.Run(ctx, instruction, ctxMsgs)
	res.FinishedAt = time.Now()

	status := logging.StatusSuccess
	if res.Err != nil {
		status = logging.StatusError
	}
	r.logger.Info("agent step finished",
		logging.Agent(role.Name),
		logging.Status(status),
		logging.Err(res.Err),
		slog.Duration(logging.KeyDuration, res.FinishedAt.Sub(res.StartedAt)))
	return res
}

func (r *Router) readFilter(ctx context.Context, params map[string]string, br *bridge.Bridge, st *state.Store) map[string]AgentResult {
	instruction := fmt.Sprintf("Find and summarize messages matching the query %q.", params["query"])
	if max := params["max"]; max != "" {
		instruction += fmt.Sprintf(" Return at most %s results.", max)
	}
	reader := r.runAgent(ctx, r.roles[agent.RoleReader], instruction, nil, br, st)
	return map[string]AgentResult{agent.RoleReader: reader}
}

func (r *Router) draft(ctx context.Context, params map[string]string, br *bridge.Bridge, st *state.Store) map[string]AgentResult {
	results := make(map[string]AgentResult)

	var ctxMsgs []llm.Message
	if threadID := params["threadId"]; threadID != "" {
		reader := r.runAgent(ctx, r.roles[agent.RoleReader],
			fmt.Sprintf("Fetch every message of thread %s and summarize the conversation so a reply can be drafted.", threadID),
			nil, br, st)
		results[agent.RoleReader] = reader
		if reader.Err != nil {
			return results
		}
		ctxMsgs = r.threadContext(st, threadID, reader.Output)
	}

	instruction := fmt.Sprintf("Compose a draft. Instruction: %s.", params["instruction"])
	if to := params["to"]; to != "" {
		instruction += fmt.Sprintf(" Recipient: %s.", to)
	}
	if threadID := params["threadId"]; threadID != "" {
		instruction += fmt.Sprintf(" The draft replies within thread %s.", threadID)
	}
	results[agent.RoleDrafter] = r.runAgent(ctx, r.roles[agent.RoleDrafter], instruction, ctxMsgs, br, st)
	return results
}

func (r *Router) analyze(ctx context.Context, params map[string]string, br *bridge.Bridge, st *state.Store) map[string]AgentResult {
	results := make(map[string]AgentResult)
	threadID := params["threadId"]

	reader := r.runAgent(ctx, r.roles[agent.RoleReader],
		fmt.Sprintf("Fetch every message of thread %s and summarize the conversation.", threadID),
		nil, br, st)
	results[agent.RoleReader] = reader
	if reader.Err != nil {
		return results
	}

	// The Analyzer's prompt requires the complete message set, so it runs
	// strictly after hydration with the full thread in its context.
	ctxMsgs := r.threadContext(st, threadID, reader.Output)
	results[agent.RoleAnalyzer] = r.runAgent(ctx, r.roles[agent.RoleAnalyzer],
		fmt.Sprintf("Analyze the conversation in thread %s: sentiment, intent, action items and priority.", threadID),
		ctxMsgs, br, st)
	return results
}

// threadContext builds the context messages a dependent agent receives: the
// full hydrated thread snapshot plus the Reader's summary. The snapshot comes
// from run state, so the dependent agent always sees at least everything the
// Reader hydrated.
func (r *Router) threadContext(st *state.Store, threadID string, readerOutput json.RawMessage) []llm.Message {
	var msgs []llm.Message
	if th, ok := st.Get(threadID); ok {
		if payload, err := json.Marshal(th.Snapshot()); err == nil {
			msgs = append(msgs, llm.Message{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf("Full thread %s: %s", threadID, payload),
			})
		}
	}
	if len(readerOutput) > 0 {
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Reader summary: %s", readerOutput),
		})
	}
	return msgs
}
