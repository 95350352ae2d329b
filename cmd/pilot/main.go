// Package main is the entry point for the git-pilot CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/cli"
	"github.com/runoshun/git-pilot/internal/domain"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	container, err := app.New(cwd)
	if err != nil {
		// Allow running without a git repo for no-args/help/version
		if errors.Is(err, domain.ErrNotGitRepository) {
			return runWithoutContainer(err)
		}
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = container.Close() }()

	rootCmd := cli.NewRootCommand(container, version)
	return rootCmd.Execute()
}

// runWithoutContainer handles cases where no git repo is found. This keeps
// no-args, help and version working from any directory.
func runWithoutContainer(gitErr error) error {
	rootCmd := cli.NewRootCommand(nil, version)

	if canRunWithoutGit(os.Args[1:]) {
		return rootCmd.Execute()
	}
	// For other commands, return the git error
	return gitErr
}

func canRunWithoutGit(args []string) bool {
	if len(args) == 0 {
		return true
	}
	if args[0] == "help" {
		return true
	}
	for _, arg := range args {
		if arg == "--version" || arg == "-v" || arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}
