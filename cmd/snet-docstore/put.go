package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func putCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "put <collection> [json]",
		Short: "Store a JSON object as a record",
		Long: `Creates a record in the collection, stores and pins it, and prints the
record with its CID. An "id" field in the object is used as the record id.

	snet-docstore put orgs '{"name":"Acme"}'
	echo '{"name":"Acme"}' | snet-docstore put orgs --stdin
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			switch {
			case fromStdin:
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				raw = b
			case len(args) == 2:
				raw = []byte(args[1])
			default:
				return fmt.Errorf("record JSON is required, as an argument or with --stdin")
			}

			var data map[string]any
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("record must be a JSON object: %w", err)
			}

			core, err := openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCore(core)

			rec, err := core.Store().Create(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the record from standard input")
	return cmd
}
