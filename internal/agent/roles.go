package agent

import (
	"encoding/json"
	"fmt"

	"github.com/jaredassist/jared/internal/bridge"
	"github.com/jaredassist/jared/internal/mailbox"
)

// Role names.
const (
	RoleReader   = "reader"
	RoleDrafter  = "drafter"
	RoleAnalyzer = "analyzer"
)

// DefaultMaxTurns bounds the reasoning loop when a role does not override it.
const DefaultMaxTurns = 8

// Role is the immutable configuration of one agent: its prompt, the tool
// subset it may call, its output contract, and its turn budget. Constructed
// once and injected; never mutated at runtime.
type Role struct {
	Name         string
	SystemPrompt string
	AllowedTools []string
	MaxTurns     int

	// ValidateOutput checks the model's final answer against the role's
	// output schema. Returning an error triggers one corrective retry.
	ValidateOutput func(json.RawMessage) error
}

// Allows reports whether the role's tool subset contains the named tool.
func (r Role) Allows(tool string) bool {
	for _, t := range r.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// MessageSummary is one entry of the Reader's output.
type MessageSummary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
	Summary string `json:"summary"`
}

// ReadResult is the Reader's final answer.
type ReadResult struct {
	Summaries []MessageSummary `json:"summaries"`
}

// DraftResult is the Drafter's final answer: a proposed message, never sent.
type DraftResult struct {
	Draft mailbox.Draft `json:"draft"`
	Note  string        `json:"note,omitempty"`
}

// Priority levels assigned by the Analyzer.
const (
	PriorityUrgent   = "urgent"
	PriorityFollowup = "followup"
	PriorityNormal   = "normal"
)

// Analysis is the Analyzer's final answer.
type Analysis struct {
	Sentiment   string   `json:"sentiment"`
	Intent      string   `json:"intent"`
	ActionItems []string `json:"actionItems"`
	Priority    string   `json:"priority"`
}

// ReaderRole returns the default Reader configuration: read-only mailbox
// comprehension.
func ReaderRole() Role {
	return Role{
		Name: RoleReader,
		SystemPrompt: "You are an expert at reading and comprehending email. " +
			"Use the search and fetch tools to locate the requested messages, " +
			"then answer with JSON: {\"summaries\":[{\"id\",\"from\",\"subject\",\"snippet\",\"summary\"}]}.",
		AllowedTools: []string{bridge.ToolSearch, bridge.ToolFetch},
		MaxTurns:     DefaultMaxTurns,
		ValidateOutput: func(raw json.RawMessage) error {
			var out ReadResult
			if err := json.Unmarshal(raw, &out); err != nil {
				return fmt.Errorf("not a valid read result: %w", err)
			}
			if out.Summaries == nil {
				return fmt.Errorf("missing summaries field")
			}
			return nil
		},
	}
}

// DrafterRole returns the default Drafter configuration. The subset
// deliberately excludes send: a draft becomes mail only through the explicit
// confirmation step, never inside an agent turn.
func DrafterRole() Role {
	return Role{
		Name: RoleDrafter,
		SystemPrompt: "You are an expert at writing clear, effective email. " +
			"Compose a draft per the instruction, using fetch for any thread context you need. " +
			"You cannot send mail. Answer with JSON: " +
			"{\"draft\":{\"to\":[],\"subject\",\"body\",\"threadId\"},\"note\"}.",
		AllowedTools: []string{bridge.ToolFetch},
		MaxTurns:     DefaultMaxTurns,
		ValidateOutput: func(raw json.RawMessage) error {
			var out DraftResult
			if err := json.Unmarshal(raw, &out); err != nil {
				return fmt.Errorf("not a valid draft result: %w", err)
			}
			if len(out.Draft.To) == 0 {
				return fmt.Errorf("draft has no recipients")
			}
			if out.Draft.Subject == "" && out.Draft.Body == "" {
				return fmt.Errorf("draft is empty")
			}
			return nil
		},
	}
}

// AnalyzerRole returns the default Analyzer configuration. It runs over a
// fully hydrated thread, so its subset only needs fetch for stray references.
func AnalyzerRole() Role {
	return Role{
		Name: RoleAnalyzer,
		SystemPrompt: "You are an expert at analyzing email conversations: patterns, " +
			"priorities and action items. Answer with JSON: " +
			"{\"sentiment\",\"intent\",\"actionItems\":[],\"priority\":\"urgent|followup|normal\"}.",
		AllowedTools: []string{bridge.ToolFetch},
		MaxTurns:     DefaultMaxTurns,
		ValidateOutput: func(raw json.RawMessage) error {
			var out Analysis
			if err := json.Unmarshal(raw, &out); err != nil {
				return fmt.Errorf("not a valid analysis: %w", err)
			}
			switch out.Priority {
			case PriorityUrgent, PriorityFollowup, PriorityNormal:
				return nil
			default:
				return fmt.Errorf("invalid priority %q", out.Priority)
			}
		},
	}
}
