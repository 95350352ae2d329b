package cli

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/tui/board"
)

// newWatchCommand creates the watch command for the live board view.
func newWatchCommand(c *app.Container) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the board in a live view",
		Long: `Watch the board in a live terminal view.

The view reloads the board from the tracker on an interval and on demand
with 'r'. Quit with 'q'.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			p := tea.NewProgram(board.New(c, refresh), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 10*time.Second, "Board reload interval")

	return cmd
}
