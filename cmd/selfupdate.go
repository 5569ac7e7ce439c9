package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

const githubRepoSlug = "terakael/flowrs"

// For swapping the release source and target binary in tests
var (
	newUpdater = func() (*selfupdate.Updater, error) {
		return selfupdate.NewUpdater(selfupdate.Config{})
	}
	executablePath = selfupdate.ExecutablePath
)

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update flowrs to the latest release",
		Long: `Checks for the latest release of flowrs on GitHub and replaces the
running binary with it when it is newer. Development builds cannot be
updated.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, _ []string) error {
	current := rootCmd.Version
	if current == "" || current == "dev" {
		return errors.New("cannot self-update a development version")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	up, err := newUpdater()
	if err != nil {
		return fmt.Errorf("creating updater: %w", err)
	}
	latest, found, err := up.DetectLatest(ctx, selfupdate.ParseSlug(githubRepoSlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found", runtime.GOOS, runtime.GOARCH)
	}
	if latest.LessOrEqual(current) {
		fmt.Fprintf(out, "Current version (%s) is the latest\n", current)
		return nil
	}

	exe, err := executablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	fmt.Fprintf(out, "Updating flowrs %s to %s\n", current, latest.Version())
	if err := up.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}
	fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version())
	return nil
}
