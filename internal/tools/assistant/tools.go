// Package assistant exposes the orchestrator's request kinds as MCP tools.
//
// Every tool builds an orchestration request, runs it, and renders the
// Result. Failed runs come back as tool errors carrying the stable failure
// kind, so a calling agent can distinguish a bad request from an exhausted
// one.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jaredassist/jared/internal/orchestrator"
	"github.com/jaredassist/jared/internal/router"
	"github.com/jaredassist/jared/internal/server"
)

// RegisterAssistantTools registers the assistant's tools with the MCP server.
func RegisterAssistantTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	readFilterTool := mcp.NewTool("assistant_read_filter",
		mcp.WithDescription("Search the mailbox and return summarized matches"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Mailbox search query (e.g. 'in:inbox', 'from:user@example.com')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	s.AddTool(readFilterTool, InstrumentedToolHandler("assistant_read_filter", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleReadFilter(ctx, request, sc)
		}))

	draftTool := mcp.NewTool("assistant_draft",
		mcp.WithDescription("Compose an email draft; returns the draft and a confirmation token, never sends"),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("What the draft should say (e.g. 'politely decline the invitation')"),
		),
		mcp.WithString("to",
			mcp.Description("Recipient address when not replying within a thread"),
		),
		mcp.WithString("threadId",
			mcp.Description("Thread to reply within; its history is read for context"),
		),
	)
	s.AddTool(draftTool, InstrumentedToolHandler("assistant_draft", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDraft(ctx, request, sc)
		}))

	analyzeTool := mcp.NewTool("assistant_analyze_thread",
		mcp.WithDescription("Analyze a conversation thread: sentiment, intent, action items and priority"),
		mcp.WithString("threadId",
			mcp.Required(),
			mcp.Description("The ID of the thread to analyze"),
		),
	)
	s.AddTool(analyzeTool, InstrumentedToolHandler("assistant_analyze_thread", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAnalyze(ctx, request, sc)
		}))

	sendDraftTool := mcp.NewTool("assistant_send_draft",
		mcp.WithDescription("Confirm delivery of a previously composed draft by its token; repeat confirmations are deduplicated"),
		mcp.WithString("idempotencyToken",
			mcp.Required(),
			mcp.Description("The token returned by assistant_draft"),
		),
	)
	s.AddTool(sendDraftTool, InstrumentedToolHandler("assistant_send_draft", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendDraft(ctx, request, sc)
		}))

	return nil
}

func handleReadFilter(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	params := map[string]string{"query": query}
	if maxVal, ok := args["maxResults"].(float64); ok && maxVal > 0 {
		params["max"] = fmt.Sprintf("%d", int(maxVal))
	}

	return renderResult(sc.Orchestrator().Handle(ctx, orchestrator.Request{
		Kind:   router.KindReadFilter,
		Params: params,
	})), nil
}

func handleDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	instruction, ok := args["instruction"].(string)
	if !ok || instruction == "" {
		return mcp.NewToolResultError("instruction is required"), nil
	}

	params := map[string]string{"instruction": instruction}
	if to, ok := args["to"].(string); ok && to != "" {
		params["to"] = to
	}
	if threadID, ok := args["threadId"].(string); ok && threadID != "" {
		params["threadId"] = threadID
	}

	return renderResult(sc.Orchestrator().Handle(ctx, orchestrator.Request{
		Kind:   router.KindDraft,
		Params: params,
	})), nil
}

func handleAnalyze(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	threadID, ok := args["threadId"].(string)
	if !ok || threadID == "" {
		return mcp.NewToolResultError("threadId is required"), nil
	}

	return renderResult(sc.Orchestrator().Handle(ctx, orchestrator.Request{
		Kind:   router.KindAnalyzeConversation,
		Params: map[string]string{"threadId": threadID},
	})), nil
}

func handleSendDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	token, ok := args["idempotencyToken"].(string)
	if !ok || token == "" {
		return mcp.NewToolResultError("idempotencyToken is required"), nil
	}

	return renderResult(sc.Orchestrator().Handle(ctx, orchestrator.Request{
		Kind:   orchestrator.KindSendDraft,
		Params: map[string]string{"idempotencyToken": token},
	})), nil
}

// renderResult maps an orchestration result onto the tool protocol: failed
// runs become tool errors, everything else is serialized for the caller.
func renderResult(res orchestrator.Result) *mcp.CallToolResult {
	if res.Status == orchestrator.StatusFailed && res.Failure != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", res.Failure.Kind, res.Failure.Message))
	}

	payload, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize result: %v", err))
	}
	return mcp.NewToolResultText(string(payload))
}
