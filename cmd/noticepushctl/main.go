// noticepushctl triggers dispatch and token-cleanup runs on a running
// notice-push service. It is meant for operators and cron jobs.
//
// Usage:
//
//	noticepushctl dispatch --dry-run
//	noticepushctl cleanup --mode stale --days 45
//	noticepushctl cleanup --mode invalid --include-queued --apply
//	noticepushctl registry check --path configs/activity-registry.json
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalOptions struct {
	baseURL string
	key     string
	timeout time.Duration
	output  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "noticepushctl",
		Short: "Trigger notice-push dispatch and token cleanup runs",
		Long: `noticepushctl calls the notice-push HTTP surface with the service-role
credential. The key is read from --key or STORE_SERVICE_ROLE_KEY.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("NOTICE_PUSH_URL", "http://localhost:8080"), "Base URL of the notice-push service")
	rootCmd.PersistentFlags().StringVar(&opts.key, "key", os.Getenv("STORE_SERVICE_ROLE_KEY"), "Service-role key used as bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Request timeout")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "Output format: json, yaml")

	rootCmd.AddCommand(dispatchCmd(opts))
	rootCmd.AddCommand(cleanupCmd(opts))
	rootCmd.AddCommand(registryCmd(opts))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
