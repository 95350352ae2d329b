package cli

import (
	"fmt"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/usecase"
	"github.com/spf13/cobra"
)

// newInitCommand creates the init command.
func newInitCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize repository for git-pilot",
		Long: `Initialize a repository for git-pilot.

This command creates the .git/pilot/ directory with:
- config.toml: commented configuration template
- logs/: daemon and per-issue log files
- cache/: persistent analysis cache

Preconditions:
- Current directory must be inside a git repository

Running init twice is safe; an existing config file is left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.InitRepoUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.InitRepoInput{
				PilotDir: c.Paths.PilotDir,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out.AlreadyInitialized {
				_, _ = fmt.Fprintf(w, "git-pilot already initialized in %s\n", out.PilotDir)
				return nil
			}
			_, _ = fmt.Fprintf(w, "Initialized git-pilot in %s\n", out.PilotDir)
			_, _ = fmt.Fprintf(w, "Edit %s and set tracker.owner, tracker.repo and tracker.project_number.\n", out.ConfigPath)
			return nil
		},
	}
}
