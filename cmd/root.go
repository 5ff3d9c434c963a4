package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the jared application
var rootCmd = &cobra.Command{
	Use:   "jared",
	Short: "Multi-agent email assistant",
	Long: `jared orchestrates specialized reasoning agents over your mailbox:
a Reader that searches and summarizes, a Drafter that composes replies
without ever sending them, and an Analyzer that extracts sentiment,
intent and action items from a conversation.

It can run as:
  - A local CLI (read, draft, analyze, send, pending)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// configPath is the optional YAML configuration file, shared by all commands.
var configPath string

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "jared version %s\n" .Version}}`)

	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newDraftCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newPendingCmd())
	rootCmd.AddCommand(newVersionCmd())
}
