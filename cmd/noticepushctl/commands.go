package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"notice-push/internal/models"
	dispatchnotices "notice-push/internal/workers/push/dispatch-notices"
	tokencleanup "notice-push/internal/workers/push/token-cleanup"

	"github.com/spf13/cobra"
)

func dispatchCmd(opts *globalOptions) *cobra.Command {
	var (
		dryRun      bool
		noticesFile string
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run one notice dispatch",
		Long: `Run one dispatch over the window since the last successful run.

Examples:
  # Count matched subscribers without writing or sending
  noticepushctl dispatch --dry-run

  # Dispatch an explicit notice list instead of querying the notice source
  noticepushctl dispatch --notices-file notices.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := dispatchnotices.Input{DryRun: dryRun}
			if noticesFile != "" {
				notices, err := readNotices(noticesFile)
				if err != nil {
					return err
				}
				input.Notices = notices
			}

			client, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := contextWithTimeout(cmd, opts)
			defer cancel()

			var output dispatchnotices.Output
			if err := client.post(ctx, "/dispatch", input, &output); err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), opts.output, output)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count matched subscribers")
	cmd.Flags().StringVar(&noticesFile, "notices-file", "", "JSON file holding an array of notices")

	return cmd
}

func cleanupCmd(opts *globalOptions) *cobra.Command {
	var (
		mode          string
		days          int
		tokens        []string
		userIDs       []string
		apply         bool
		includeQueued bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune stale or invalid push subscriptions",
		Long: `Prune push subscriptions. Runs are dry unless --apply is given.

Examples:
  # Report subscriptions idle for more than 45 days
  noticepushctl cleanup --mode stale --days 45

  # Delete subscriptions for provider-rejected tokens, including the queued ones
  noticepushctl cleanup --mode invalid --token tok-1 --include-queued --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun := !apply
			input := tokencleanup.Input{
				Mode:          mode,
				InvalidTokens: tokens,
				UserIDs:       userIDs,
				DryRun:        &dryRun,
				IncludeQueued: includeQueued,
			}
			if cmd.Flags().Changed("days") {
				input.StaleBeforeDays = &days
			}

			client, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := contextWithTimeout(cmd, opts)
			defer cancel()

			var output tokencleanup.Output
			if err := client.post(ctx, "/token-cleanup", input, &output); err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), opts.output, output)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Cleanup mode: stale or invalid")
	cmd.Flags().IntVar(&days, "days", 30, "Inactivity threshold in days for stale mode")
	cmd.Flags().StringSliceVar(&tokens, "token", nil, "Provider token reported invalid (repeatable)")
	cmd.Flags().StringSliceVar(&userIDs, "user", nil, "Restrict cleanup to these user ids (repeatable)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Delete matched subscriptions")
	cmd.Flags().BoolVar(&includeQueued, "include-queued", false, "Merge tokens queued by dispatch runs (invalid mode)")
	_ = cmd.MarkFlagRequired("mode")

	return cmd
}

func readNotices(path string) ([]models.Notice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notices file: %w", err)
	}
	var notices []models.Notice
	if err := json.Unmarshal(data, &notices); err != nil {
		return nil, fmt.Errorf("parse notices file: %w", err)
	}
	return notices, nil
}

func contextWithTimeout(cmd *cobra.Command, opts *globalOptions) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opts.timeout)
}
