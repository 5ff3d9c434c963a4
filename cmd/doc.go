// Package cmd implements the command-line interface for jared.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the assistant's tools over stdio
//   - read: Search the mailbox and summarize matching messages
//   - draft: Compose a draft without sending it
//   - analyze: Analyze a conversation thread
//   - send: Confirm delivery of a previously composed draft
//   - pending: List drafts awaiting send confirmation
//   - version: Display version information
package cmd
