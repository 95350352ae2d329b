package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/usecase"
)

// newCacheCommand creates the cache command.
func newCacheCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analysis cache",
		Long:  `Inspect and clear the persistent marker-scan cache under .git/pilot/cache.`,
		// No RunE: shows subcommand list when called without arguments
	}

	cmd.AddCommand(newCacheStatsCommand(c))
	cmd.AddCommand(newCacheClearCommand(c))

	return cmd
}

// newCacheStatsCommand creates the cache stats subcommand.
func newCacheStatsCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ShowCacheStatsUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowCacheStatsInput{})
			if err != nil {
				return err
			}

			s := out.Stats
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "entries:     %d\n", s.Entries)
			_, _ = fmt.Fprintf(w, "total bytes: %d\n", s.TotalBytes)
			_, _ = fmt.Fprintf(w, "hits:        %d\n", s.Hits)
			_, _ = fmt.Fprintf(w, "misses:      %d\n", s.Misses)
			_, _ = fmt.Fprintf(w, "hit rate:    %.1f%%\n", s.HitRate()*100)
			_, _ = fmt.Fprintf(w, "evictions:   %d\n", s.Evictions)
			_, _ = fmt.Fprintf(w, "expirations: %d\n", s.Expirations)
			return nil
		},
	}
}

// newCacheClearCommand creates the cache clear subcommand.
func newCacheClearCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached analyses for this repository",
		Long: `Drop all cached analyses for this repository.

The next discovery pass scans every file from scratch and repopulates
the cache.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ClearCacheUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ClearCacheInput{RepoPath: c.Paths.RepoRoot})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared analysis cache for %s\n", out.RepoPath)
			return nil
		},
	}
}
