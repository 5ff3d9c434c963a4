// Package display provides terminal formatting for assistant output.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jaredassist/jared/internal/agent"
	"github.com/jaredassist/jared/internal/orchestrator"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	WarnText = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	UrgentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	FollowupStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	NormalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// PriorityDot returns a colored dot for an analyzer priority.
func PriorityDot(priority string) string {
	switch priority {
	case agent.PriorityUrgent:
		return UrgentStyle.Render("●")
	case agent.PriorityFollowup:
		return FollowupStyle.Render("○")
	case agent.PriorityNormal:
		return NormalStyle.Render("○")
	default:
		return Dim.Render("·")
	}
}

// PriorityLabel returns a styled, padded priority label.
func PriorityLabel(priority string) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(priority))
	switch priority {
	case agent.PriorityUrgent:
		return UrgentStyle.Render(label)
	case agent.PriorityFollowup:
		return FollowupStyle.Render(label)
	case agent.PriorityNormal:
		return NormalStyle.Render(label)
	default:
		return label
	}
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// RenderResult writes a human-readable rendering of an orchestration result.
func RenderResult(w io.Writer, res orchestrator.Result) {
	switch res.Status {
	case orchestrator.StatusCompleted:
		fmt.Fprintln(w, Success.Render("✓")+" "+Bold.Render(res.Status))
	case orchestrator.StatusPartialFailure:
		fmt.Fprintln(w, WarnText.Render("◐")+" "+Bold.Render(res.Status))
	default:
		fmt.Fprintln(w, ErrStyle.Render("✗")+" "+Bold.Render(res.Status))
	}

	if res.Failure != nil {
		fmt.Fprintf(w, "  %s %s\n", ErrStyle.Render(res.Failure.Kind), res.Failure.Message)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "  %s %s\n", WarnText.Render("!"), warning)
	}

	switch payload := res.Payload.(type) {
	case *agent.ReadResult:
		renderSummaries(w, payload)
	case orchestrator.DraftReceipt:
		renderDraft(w, payload)
	case orchestrator.AnalysisReport:
		renderAnalysis(w, payload)
	case orchestrator.SendReceipt:
		renderSend(w, payload)
	}
}

func renderSummaries(w io.Writer, result *agent.ReadResult) {
	if len(result.Summaries) == 0 {
		fmt.Fprintln(w, Muted.Render("  no matching messages"))
		return
	}
	for _, s := range result.Summaries {
		fmt.Fprintf(w, "  %s %s  %s\n",
			Bold.Render(Truncate(s.From, 28)),
			Truncate(s.Subject, 40),
			Dim.Render(s.ID))
		if s.Summary != "" {
			fmt.Fprintf(w, "    %s\n", Truncate(s.Summary, 100))
		}
	}
}

func renderDraft(w io.Writer, receipt orchestrator.DraftReceipt) {
	fmt.Fprintf(w, "  %s %s\n", Muted.Render("To:"), strings.Join(receipt.Draft.To, ", "))
	if len(receipt.Draft.Cc) > 0 {
		fmt.Fprintf(w, "  %s %s\n", Muted.Render("Cc:"), strings.Join(receipt.Draft.Cc, ", "))
	}
	fmt.Fprintf(w, "  %s %s\n", Muted.Render("Subject:"), Bold.Render(receipt.Draft.Subject))
	fmt.Fprintln(w)
	for _, line := range strings.Split(strings.TrimSpace(receipt.Draft.Body), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w)
	if receipt.Note != "" {
		fmt.Fprintf(w, "  %s %s\n", Muted.Render("Note:"), receipt.Note)
	}
	fmt.Fprintf(w, "  %s %s\n", Muted.Render("Confirm with token:"), Bold.Render(receipt.IdempotencyToken))
}

func renderAnalysis(w io.Writer, report orchestrator.AnalysisReport) {
	fmt.Fprintf(w, "  %s %s %s\n",
		PriorityDot(report.Analysis.Priority),
		PriorityLabel(report.Analysis.Priority),
		Dim.Render(report.ThreadID))
	fmt.Fprintf(w, "  %s %s\n", Muted.Render("Sentiment:"), report.Analysis.Sentiment)
	fmt.Fprintf(w, "  %s %s\n", Muted.Render("Intent:"), report.Analysis.Intent)
	if len(report.Analysis.ActionItems) > 0 {
		fmt.Fprintln(w, Muted.Render("  Action items:"))
		for _, item := range report.Analysis.ActionItems {
			fmt.Fprintf(w, "    - %s\n", item)
		}
	}
}

func renderSend(w io.Writer, receipt orchestrator.SendReceipt) {
	if receipt.Duplicate {
		fmt.Fprintf(w, "  %s already sent as %s\n", Muted.Render("duplicate:"), receipt.MessageID)
		return
	}
	fmt.Fprintf(w, "  sent as %s\n", Bold.Render(receipt.MessageID))
}
