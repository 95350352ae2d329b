package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/usecase"
)

// newLogsCommand creates the logs command.
func newLogsCommand(c *app.Container) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [issue]",
		Short: "Show daemon or per-issue logs",
		Long: `Show the daemon log, or the log of a single issue.

Without arguments the global daemon log is shown. With an issue number,
only the lines recorded while working that issue are shown.`,
		Example: `  # Show the daemon log
  pilot logs

  # Show the last 50 lines for issue 12
  pilot logs 12 -n 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var issue int
			if len(args) > 0 {
				n, err := parseIssueNumber(args[0])
				if err != nil {
					return err
				}
				issue = n
			}

			uc := c.ShowLogsUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowLogsInput{Issue: issue, Lines: lines})
			if err != nil {
				return err
			}

			content := out.Content
			if !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Show only the last N lines")

	return cmd
}

// parseIssueNumber parses an issue number string to int.
func parseIssueNumber(s string) (int, error) {
	// Remove leading # if present
	s = strings.TrimPrefix(s, "#")
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid issue number %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("issue number must be positive")
	}
	return n, nil
}
