package main

import (
	"errors"
	"fmt"

	"github.com/singnet/snet-docstore-go/pkg/gateway"
	"github.com/spf13/cobra"
)

func urlCmd() *cobra.Command {
	var gw string

	cmd := &cobra.Command{
		Use:   "url <locator>",
		Short: "Print the gateway URL of a locator without fetching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := gateway.New(gateway.Options{Gateways: cfg.GatewayList()})
			if err != nil {
				return err
			}
			u := r.ToFetchableURL(args[0], gw)
			if u == "" {
				return errors.New("locator does not contain a valid content identifier")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
			return err
		},
	}

	cmd.Flags().StringVar(&gw, "gateway", "", "gateway base URL (default: first configured)")
	return cmd
}
