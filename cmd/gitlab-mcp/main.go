// Gitlab-mcp exposes the GitLab REST API as Model Context Protocol tools.
//
// The server speaks MCP over stdio by default, or over streamable HTTP or SSE
// when STREAMABLE_HTTP or SSE is set. Configuration comes from the environment
// and an optional YAML file. See internal/config for details.
//
// Usage:
//
//	# Serve MCP over stdio
//	GITLAB_PERSONAL_ACCESS_TOKEN=glpat-... gitlab-mcp
//
//	# List the enabled tools
//	USE_PIPELINE=true gitlab-mcp tools list
//
//	# Invoke a tool once, outside an MCP session
//	gitlab-mcp call list_issues --args '{"project_id":"group/app"}'
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags.
type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "gitlab-mcp",
		Short: "GitLab tools for MCP clients",
		Long: `gitlab-mcp serves GitLab projects, merge requests, issues, pipelines,
wikis and milestones as Model Context Protocol tools.

Without a subcommand it behaves like "gitlab-mcp serve".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.SetVersionTemplate(versionString() + "\n")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default ~/.config/gitlab-mcp/config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newToolsCmd(opts),
		newCallCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP on the configured transport",
		Long: `Serve MCP on the transport selected by the configuration:
stdio (default), streamable-http (STREAMABLE_HTTP=true) or sse (SSE=true).

Logs are written to stderr; on stdio, stdout carries the MCP stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("gitlab-mcp %s (commit %s, built %s)", version, gitCommit, buildDate)
}
