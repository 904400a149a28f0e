package main

import (
	"github.com/singnet/snet-docstore-go/pkg/gateway"
	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	var (
		gateways []string
		noLocal  bool
		raw      bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <locator>",
		Short: "Fetch content by ipfs:// locator or CID",
		Long: `Fetches content from the local node first and then from each gateway
in order. JSON content is printed indented; use --raw for the exact bytes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCore(core)

			c, err := core.Resolver().FetchContent(cmd.Context(), args[0], gateway.FetchOptions{
				Gateways: gateways,
				NoLocal:  noLocal,
			})
			if err != nil {
				return err
			}
			cmd.PrintErrf("%s (%s) from %s\n", c.CID, c.Kind, c.Gateway)
			if c.Kind == gateway.KindJSON && !raw {
				return printJSON(cmd.OutOrStdout(), c.JSON)
			}
			_, err = cmd.OutOrStdout().Write(c.Raw)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&gateways, "gateway", nil, "gateway base URL to use instead of the configured ones (repeatable)")
	cmd.Flags().BoolVar(&noLocal, "no-local", false, "skip the local node")
	cmd.Flags().BoolVar(&raw, "raw", false, "print content bytes unmodified")
	return cmd
}
