package cli

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/usecase"
)

// newConfigCommand creates the config command.
func newConfigCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage git-pilot configuration files and settings.`,
		// No RunE: shows subcommand list when called without arguments
	}

	cmd.AddCommand(newConfigShowCommand(c))
	cmd.AddCommand(newConfigInitCommand(c))

	return cmd
}

// newConfigShowCommand creates the config show subcommand.
func newConfigShowCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display effective configuration after merging all sources.

Shows which config files were found and the final merged configuration.
The merge order is defaults, then the global file, then the repository file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ShowConfigUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowConfigInput{})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(w, "[Loaded from]")
			for _, info := range []domain.ConfigInfo{out.GlobalConfig, out.RepoConfig} {
				if info.Exists {
					_, _ = fmt.Fprintf(w, "- %s\n", info.Path)
				} else {
					_, _ = fmt.Fprintf(w, "- %s (not found)\n", info.Path)
				}
			}
			_, _ = fmt.Fprintln(w)

			cfg, err := c.ConfigLoader.Load()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(w, "[Effective Config]")
			if err := toml.NewEncoder(w).Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return nil
		},
	}

	return cmd
}

// newConfigInitCommand creates the config init subcommand.
func newConfigInitCommand(c *app.Container) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate configuration file template",
		Long: `Generate a configuration file template.

By default, creates the repository configuration file at .git/pilot/config.toml.
With --global, creates the global configuration file under the user config
directory. Existing files are never overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.InitConfigUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.InitConfigInput{Global: global})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", out.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Generate global configuration")

	return cmd
}
