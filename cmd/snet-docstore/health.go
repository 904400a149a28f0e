package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the storage backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCore(core)

			report := core.Health(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Healthy {
				return errors.New("storage backend unhealthy")
			}
			return nil
		},
	}
}
