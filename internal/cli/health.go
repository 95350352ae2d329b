package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/tui/board"
	"github.com/runoshun/git-pilot/internal/usecase"
)

// newHealthCommand creates the health command.
func newHealthCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show dependency health",
		Long: `Show the circuit breaker state for each external dependency.

A service is healthy while its circuit is closed, degraded while the
circuit is half-open, and unavailable while the circuit is open. The
daemon skips stages whose dependency is unavailable instead of failing
the whole cycle.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ShowHealthUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowHealthInput{})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, svc := range out.Services {
				_, _ = fmt.Fprintln(w, renderServiceHealth(svc))
			}
			return nil
		},
	}

	return cmd
}

// renderServiceHealth formats one dependency line. The status cell is
// padded before styling so the ANSI codes do not shift the columns.
func renderServiceHealth(svc domain.ServiceHealth) string {
	status := healthStyle(svc.Status).Render(fmt.Sprintf("%-12s", svc.Status))

	detail := fmt.Sprintf("circuit=%s", svc.Circuit)
	if svc.ConsecutiveFailures > 0 {
		detail += fmt.Sprintf(" failures=%d", svc.ConsecutiveFailures)
	}
	if svc.RateLimitRemaining >= 0 {
		detail += fmt.Sprintf(" rate-limit=%d", svc.RateLimitRemaining)
	}
	if !svc.LastSuccess.IsZero() {
		detail += fmt.Sprintf(" last-success=%s", svc.LastSuccess.Format("15:04:05"))
	}

	muted := lipgloss.NewStyle().Foreground(board.Colors.Muted)
	return fmt.Sprintf("%-10s %s %s", svc.Service, status, muted.Render(detail))
}

func healthStyle(status domain.HealthStatus) lipgloss.Style {
	switch status {
	case domain.HealthHealthy:
		return lipgloss.NewStyle().Foreground(board.Colors.Done)
	case domain.HealthDegraded:
		return lipgloss.NewStyle().Foreground(board.Colors.InProgress)
	case domain.HealthUnavailable:
		return lipgloss.NewStyle().Foreground(board.Colors.Error).Bold(true)
	}
	return lipgloss.NewStyle()
}
