package bridge

import (
	"fmt"

	"github.com/jaredassist/jared/internal/llm"
)

// Tool names exposed to agents.
const (
	ToolSearch = "search"
	ToolFetch  = "fetch"
	ToolSend   = "send"
	ToolLabel  = "label"
)

// argSpec declares one tool argument for validation and for the tool catalog
// shown to the model.
type argSpec struct {
	name        string
	typ         string // "string", "number", "array"
	required    bool
	description string
}

// toolSpec declares one tool's argument schema.
type toolSpec struct {
	name        string
	description string
	args        []argSpec
	mutating    bool
}

var toolSpecs = map[string]toolSpec{
	ToolSearch: {
		name:        ToolSearch,
		description: "Search the mailbox with a provider query string",
		args: []argSpec{
			{name: "query", typ: "string", required: true, description: "Mail search query, e.g. 'from:boss@example.com'"},
			{name: "max", typ: "number", description: "Maximum number of results (default 10)"},
		},
	},
	ToolFetch: {
		name:        ToolFetch,
		description: "Fetch a full message by id, or every message of a thread by threadId",
		args: []argSpec{
			{name: "messageId", typ: "string", description: "Message id to fetch"},
			{name: "threadId", typ: "string", description: "Thread id to hydrate in full"},
		},
	},
	ToolSend: {
		name:        ToolSend,
		description: "Send a mail message. Requires an idempotency token bound at draft approval",
		mutating:    true,
		args: []argSpec{
			{name: "to", typ: "array", required: true, description: "Recipient addresses"},
			{name: "subject", typ: "string", required: true, description: "Subject line"},
			{name: "body", typ: "string", required: true, description: "Plain text body"},
			{name: "threadId", typ: "string", description: "Thread to reply within"},
			{name: "idempotencyToken", typ: "string", required: true, description: "Caller-supplied token deduplicating retried sends"},
		},
	},
	ToolLabel: {
		name:        ToolLabel,
		description: "Add and remove labels on a message",
		mutating:    true,
		args: []argSpec{
			{name: "messageId", typ: "string", required: true, description: "Message to relabel"},
			{name: "add", typ: "array", description: "Labels to add"},
			{name: "remove", typ: "array", description: "Labels to remove"},
		},
	},
}

// Defs returns the model-facing tool catalog for the given subset.
// Unknown names are skipped; the agent layer has already rejected
// out-of-subset calls by then.
func Defs(names []string) []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		spec, ok := toolSpecs[name]
		if !ok {
			continue
		}
		props := make(map[string]any, len(spec.args))
		var required []string
		for _, a := range spec.args {
			props[a.name] = map[string]any{
				"type":        jsonType(a.typ),
				"description": a.description,
			}
			if a.required {
				required = append(required, a.name)
			}
		}
		params := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		defs = append(defs, llm.ToolDef{
			Name:        spec.name,
			Description: spec.description,
			Parameters:  params,
		})
	}
	return defs
}

func jsonType(t string) any {
	if t == "array" {
		return "array"
	}
	return t
}

// validateArgs checks the call arguments against the tool's schema.
func validateArgs(spec toolSpec, args map[string]any) error {
	for _, a := range spec.args {
		val, present := args[a.name]
		if !present {
			if a.required {
				return fmt.Errorf("missing required argument %q", a.name)
			}
			continue
		}
		switch a.typ {
		case "string":
			s, ok := val.(string)
			if !ok || (a.required && s == "") {
				return fmt.Errorf("argument %q must be a non-empty string", a.name)
			}
		case "number":
			switch val.(type) {
			case float64, int, int64:
			default:
				return fmt.Errorf("argument %q must be a number", a.name)
			}
		case "array":
			if _, ok := toStringSlice(val); !ok {
				return fmt.Errorf("argument %q must be an array of strings", a.name)
			}
		}
	}
	for name := range args {
		known := false
		for _, a := range spec.args {
			if a.name == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown argument %q", name)
		}
	}
	return nil
}

// toStringSlice accepts both []string and the []any produced by JSON
// decoding of model output.
func toStringSlice(val any) ([]string, bool) {
	switch v := val.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// A single string is accepted as a one-element array; models
		// frequently produce this shape for single recipients.
		return []string{v}, true
	default:
		return nil, false
	}
}
