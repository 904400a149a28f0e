// Command snet-docstore is an operator tool for the document store: it
// checks the storage backend, uploads files, stores records and resolves
// content locators through the configured gateways.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/singnet/snet-docstore-go/pkg/config"
	"github.com/singnet/snet-docstore-go/pkg/sdk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	verbose    bool
	ipfsURL    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snet-docstore",
		Short: "Content-addressed document store",
		Long: `Stores JSON records and files on IPFS, pins them, and resolves
ipfs:// locators through the local node and public gateways.

Configuration is read from the file given with --config and from
SNET_DOCSTORE_* environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&ipfsURL, "ipfs-url", "", "IPFS RPC endpoint (overrides config)")

	rootCmd.AddCommand(
		healthCmd(),
		uploadCmd(),
		fetchCmd(),
		urlCmd(),
		putCmd(),
	)
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if ipfsURL != "" {
		cfg.IpfsURL = ipfsURL
	}
	if verbose {
		cfg.Debug = true
	} else {
		// keep stdout for command output
		sdk.SetLogLevel(zapcore.WarnLevel)
	}
	return cfg, nil
}

// openCore loads the configuration and connects to storage.
func openCore(ctx context.Context) (*sdk.Core, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sdk.NewSDK(ctx, cfg)
}

func closeCore(core *sdk.Core) {
	if err := core.Close(); err != nil {
		zap.L().Warn("closing storage", zap.Error(err))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
