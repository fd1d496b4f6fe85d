package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/mcp"
)

func newToolsCmd(opts *options) *cobra.Command {
	var (
		group  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the enabled tools",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tools enabled by the current configuration",
		Long: `List the tools enabled by the current configuration.

Examples:
  # All enabled tools
  gitlab-mcp tools list

  # Only the pipeline group, as JSON
  USE_PIPELINE=true gitlab-mcp tools list --group pipelines --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			reg := a.server.Registry()
			tools := reg.List()
			if group != "" {
				tools = reg.ListByGroup(mcp.Group(group))
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tools)
			}
			return writeToolTable(cmd.OutOrStdout(), cmd.ErrOrStderr(), tools)
		},
	}
	list.Flags().StringVar(&group, "group", "", "only tools of this group (core, pipelines, wiki, milestones)")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search enabled tools by name or description",
		Long: `Search enabled tools by name or description. The query may be a
regular expression.

Examples:
  gitlab-mcp tools search draft
  gitlab-mcp tools search '^get_.*merge'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			results := a.server.Registry().Search(args[0])
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			tools := make([]mcp.ToolMetadata, len(results))
			for i, r := range results {
				tools[i] = r.Tool
			}
			return writeToolTable(cmd.OutOrStdout(), cmd.ErrOrStderr(), tools)
		},
	}
	search.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(list, search)
	return cmd
}

func newCallCmd(opts *options) *cobra.Command {
	var args string

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool and print its result as JSON",
		Long: `Invoke one tool outside an MCP session. The same policy checks apply:
read-only mode, the project allow-list and the default project.

Arguments are a JSON object, given inline or read from stdin with --args -.

Examples:
  gitlab-mcp call get_merge_request --args '{"branch_name":"feature"}'
  echo '{"title":"Flaky test"}' | gitlab-mcp call create_issue --args -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			raw, err := readArgs(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.server.Call(cmd.Context(), pos[0], raw)
			if errors.Is(err, mcp.ErrUnknownTool) {
				return fmt.Errorf("%w: %s (see gitlab-mcp tools list)", err, pos[0])
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&args, "args", "{}", "tool arguments as a JSON object, or - for stdin")
	return cmd
}

func readArgs(stdin io.Reader, flag string) (json.RawMessage, error) {
	data := []byte(flag)
	if flag == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("failed to read arguments from stdin: %w", err)
		}
	}
	if strings.TrimSpace(string(data)) == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("arguments are not valid JSON")
	}
	return json.RawMessage(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeToolTable(w, errW io.Writer, tools []mcp.ToolMetadata) error {
	if len(tools) == 0 {
		fmt.Fprintln(errW, "no tools matched")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tGROUP\tINTENT\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Group, t.Intent, t.Description)
	}
	return tw.Flush()
}
