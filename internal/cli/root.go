// Package cli provides the command-line interface for git-pilot.
package cli

import (
	"fmt"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/spf13/cobra"
)

// Command group IDs.
const (
	groupSetup   = "setup"
	groupDaemon  = "daemon"
	groupInspect = "inspect"
)

// NewRootCommand creates the root command for git-pilot.
// It receives the container for dependency injection and version for display.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "pilot",
		Short: "Autonomous issue-to-merge orchestration daemon",
		Long: `git-pilot watches a repository for TODO/FIXME markers, files them as
tracker issues, hands them to remote coding-agent sessions, and walks each
change through review and merge. One issue = one branch = one session.

Run 'pilot init' once inside a repository, fill in .git/pilot/config.toml,
then start the loop with 'pilot daemon'.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip for init; there is nothing to load yet
			if cmd.Name() == "init" {
				return nil
			}

			// Skip if container is nil (e.g. in tests)
			if c == nil {
				return nil
			}

			cfg, err := c.ConfigLoader.Load()
			if err != nil {
				// Ignore error (e.g. not initialized)
				return nil
			}

			for _, w := range cfg.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}

	// Define command groups
	root.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
		&cobra.Group{ID: groupInspect, Title: "Inspection:"},
	)

	// Setup commands
	initCmd := newInitCommand(c)
	initCmd.GroupID = groupSetup

	configCmd := newConfigCommand(c)
	configCmd.GroupID = groupSetup

	// Daemon commands
	daemonCmd := newDaemonCommand(c)
	daemonCmd.GroupID = groupDaemon

	// Inspection commands
	statusCmd := newStatusCommand(c)
	statusCmd.GroupID = groupInspect

	watchCmd := newWatchCommand(c)
	watchCmd.GroupID = groupInspect

	logsCmd := newLogsCommand(c)
	logsCmd.GroupID = groupInspect

	healthCmd := newHealthCommand(c)
	healthCmd.GroupID = groupInspect

	cacheCmd := newCacheCommand(c)
	cacheCmd.GroupID = groupInspect

	// Add subcommands
	root.AddCommand(
		initCmd,
		configCmd,
		daemonCmd,
		statusCmd,
		watchCmd,
		logsCmd,
		healthCmd,
		cacheCmd,
	)

	return root
}
