package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/singnet/snet-docstore-go/pkg/docstore"
	"github.com/spf13/cobra"
)

func uploadCmd() *cobra.Command {
	var mimeType string

	cmd := &cobra.Command{
		Use:   "upload <file|->",
		Short: "Store and pin a file",
		Long: `Stores the file's bytes, pins them and prints the resulting locator.

Usage examples:

1. From a file:

	snet-docstore upload logo.png

2. From standard input:

	cat org.json | snet-docstore upload - --mime application/json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var (
				data []byte
				err  error
			)
			if name == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
				name = ""
			} else {
				data, err = os.ReadFile(name)
				name = filepath.Base(name)
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if mimeType == "" && name != "" {
				mimeType = mime.TypeByExtension(filepath.Ext(name))
			}

			core, err := openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCore(core)

			res, err := core.Store().UploadFile(cmd.Context(), data, docstore.FileMeta{FileName: name, MimeType: mimeType})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&mimeType, "mime", "", "declared MIME type (default: from file extension)")
	return cmd
}
