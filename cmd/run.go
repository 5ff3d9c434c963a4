package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jaredassist/jared/internal/config"
	"github.com/jaredassist/jared/internal/display"
	"github.com/jaredassist/jared/internal/orchestrator"
	"github.com/jaredassist/jared/internal/outbox"
	"github.com/jaredassist/jared/internal/router"
)

func newReadCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "read <query>",
		Short: "Search the mailbox and summarize matching messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"query": args[0]}
			if maxResults > 0 {
				params["max"] = strconv.Itoa(maxResults)
			}
			return runLocal(orchestrator.Request{
				Kind:   router.KindReadFilter,
				Params: params,
			})
		},
	}
	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of results")
	return cmd
}

func newDraftCmd() *cobra.Command {
	var (
		to       string
		threadID string
	)

	cmd := &cobra.Command{
		Use:   "draft <instruction>",
		Short: "Compose a draft without sending it",
		Long: `Compose a draft from an instruction. The draft is stored together with a
confirmation token and is never sent; use "jared send <token>" to deliver it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"instruction": args[0]}
			if to != "" {
				params["to"] = to
			}
			if threadID != "" {
				params["threadId"] = threadID
			}
			return runLocal(orchestrator.Request{
				Kind:   router.KindDraft,
				Params: params,
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread to reply within")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <threadId>",
		Short: "Analyze a conversation thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(orchestrator.Request{
				Kind:   router.KindAnalyzeConversation,
				Params: map[string]string{"threadId": args[0]},
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <token>",
		Short: "Confirm delivery of a previously composed draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(orchestrator.Request{
				Kind:   orchestrator.KindSendDraft,
				Params: map[string]string{"idempotencyToken": args[0]},
			})
		},
	}
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List drafts awaiting send confirmation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := outbox.Open(outboxPath(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			pending, err := store.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println(display.Muted.Render("no pending drafts"))
				return nil
			}
			for _, p := range pending {
				fmt.Printf("%s  %s  %s\n",
					display.Bold.Render(p.Token),
					display.Truncate(p.Draft.Subject, 40),
					display.Dim.Render(p.CreatedAt.Format("2006-01-02 15:04")))
			}
			return nil
		},
	}
}

// runLocal executes one orchestration with production dependencies and
// renders the result to the terminal. A non-Completed status maps to a
// non-zero exit through the returned error.
func runLocal(req orchestrator.Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	orch, draftStore, err := buildAssistant(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer draftStore.Close()

	res := orch.Handle(ctx, req)
	display.RenderResult(os.Stdout, res)

	if res.Status == orchestrator.StatusFailed {
		return fmt.Errorf("request %s failed", res.RequestID)
	}
	return nil
}
