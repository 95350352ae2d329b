package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/tui/board"
	"github.com/runoshun/git-pilot/internal/usecase"
)

// statusRenderWidth is the total width of the one-shot board rendering.
const statusRenderWidth = 110

// newStatusCommand creates the status command.
func newStatusCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a one-shot board snapshot",
		Long: `Show the current board as one column per pipeline stage.

The snapshot is taken directly from the tracker, so it reflects the remote
board rather than any daemon state. Use 'pilot watch' for a live view.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ShowStatusUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowStatusInput{})
			if err != nil {
				return err
			}

			styles := board.DefaultStyles()
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, board.Render(out.Board, styles, statusRenderWidth))
			_, _ = fmt.Fprintln(w, styles.Taken.Render("as of "+out.Board.TakenAt.Format("2006-01-02 15:04:05")))
			return nil
		},
	}

	return cmd
}
