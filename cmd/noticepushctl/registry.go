package main

import (
	"fmt"
	"strings"
	"time"

	"notice-push/pkg/registry"

	"github.com/spf13/cobra"
)

func registryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Export or check the job-type registry used by BPMN models",
	}

	var path string

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the registry for this build",
		Long: `Write the job types, their input/output schemas and error codes.

Examples:
  noticepushctl registry export --path configs/activity-registry.json
  noticepushctl registry export -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Build(version, time.Now())
			if path == "" {
				return writeResult(cmd.OutOrStdout(), opts.output, reg)
			}
			if err := registry.Save(reg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d activities to %s\n", len(reg.Activities), path)
			return nil
		},
	}
	export.Flags().StringVar(&path, "path", "", "Registry file to write (stdout when empty)")

	var checkPath string
	check := &cobra.Command{
		Use:   "check",
		Short: "Fail when a stored registry no longer matches this build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := registry.LoadRegistry(checkPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := stored.Validate(); err != nil {
				return err
			}
			if drift := registry.Drift(stored, registry.Build(version, time.Now())); len(drift) > 0 {
				return fmt.Errorf("registry out of date:\n  %s", strings.Join(drift, "\n  "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registry up to date (%d activities)\n", len(stored.Activities))
			return nil
		},
	}
	check.Flags().StringVar(&checkPath, "path", "configs/activity-registry.json", "Registry file to check")

	cmd.AddCommand(export, check)
	return cmd
}
