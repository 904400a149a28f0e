// Package sdk exposes the high-level document store entry point. It wires
// together configuration, the storage connection (remote Kubo node with an
// embedded fallback), the document store and the gateway resolver.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/singnet/snet-docstore-go/pkg/config"
	"github.com/singnet/snet-docstore-go/pkg/connection"
	"github.com/singnet/snet-docstore-go/pkg/docstore"
	"github.com/singnet/snet-docstore-go/pkg/gateway"
	"github.com/singnet/snet-docstore-go/pkg/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SnetSDK is the public interface of an initialized document store.
type SnetSDK interface {
	// Store returns the record store.
	Store() *docstore.Store
	// Resolver returns the gateway resolver, which reads through the store first.
	Resolver() *gateway.Resolver
	// Connection returns the storage connection manager.
	Connection() *connection.Manager
	// Health probes the backend and reports the current state.
	Health(ctx context.Context) HealthReport
	// Close stops background work and releases the backends.
	Close() error
}

var logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            logLevel,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// SetLogLevel changes the level of the default logger installed by this package.
func SetLogLevel(level zapcore.Level) {
	logLevel.SetLevel(level)
}

// Core is the concrete SDK implementation. It embeds the validated runtime
// configuration.
type Core struct {
	*config.Config
	conn     *connection.Manager
	store    *docstore.Store
	resolver *gateway.Resolver
}

var _ SnetSDK = (*Core)(nil)

// NewSDK validates cfg, connects to the primary IPFS node (or the embedded
// fallback), starts the periodic health check and builds the store and the
// resolver. A *connection.ConnectionError means no backend could be reached.
func NewSDK(ctx context.Context, cfg *config.Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Debug {
		SetLogLevel(zap.DebugLevel)
	}

	conn := connection.NewManager(connectionOptions(cfg))
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	store := docstore.New(conn, docstore.Options{Retry: cfg.Retry})

	resolver, err := gateway.New(gateway.Options{
		Gateways:         cfg.GatewayList(),
		Timeout:          cfg.Timeouts.GatewayFetch,
		MaxRedirects:     cfg.MaxRedirects,
		MaxBodySize:      cfg.MaxContentBytes,
		ContentTTL:       cfg.Cache.ContentTTL,
		ContentCacheSize: cfg.Cache.ContentSize,
		ResolveTTL:       cfg.Cache.ResolveTTL,
		ResolveCacheSize: cfg.Cache.ResolveSize,
		RateLimit:        cfg.GatewayRateLimit,
		Headers:          cfg.GatewayHeaders,
		Local:            store,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init gateway resolver: %w", err)
	}

	conn.Start(context.Background())

	zap.L().Info("document store ready",
		zap.String("source", string(conn.Source())),
		zap.String("ipfs_url", cfg.IpfsURL),
		zap.Int("gateways", len(resolver.Gateways())))

	return &Core{
		Config:   cfg,
		conn:     conn,
		store:    store,
		resolver: resolver,
	}, nil
}

func connectionOptions(cfg *config.Config) connection.Options {
	opts := connection.Options{
		Primary: func(context.Context) (storage.Backend, error) {
			return storage.NewIPFSNode(cfg.IpfsURL, cfg.Timeouts.Request)
		},
		HealthInterval: cfg.Timeouts.HealthInterval,
		ProbeTimeout:   cfg.Timeouts.Dial,
	}
	if cfg.DisableEmbedded {
		return opts
	}
	if cfg.LocalRepoPath == "" {
		opts.Embedded = func(context.Context) (storage.Backend, error) {
			return storage.NewMemoryNode(), nil
		}
		return opts
	}
	path := cfg.LocalRepoPath
	opts.Embedded = func(context.Context) (storage.Backend, error) {
		return storage.OpenBadgerNode(path)
	}
	return opts
}

// Store returns the record store.
func (c *Core) Store() *docstore.Store { return c.store }

// Resolver returns the gateway resolver.
func (c *Core) Resolver() *gateway.Resolver { return c.resolver }

// Connection returns the storage connection manager.
func (c *Core) Connection() *connection.Manager { return c.conn }

// UploadJSON encodes v, stores it as a file and returns its ipfs:// locator.
func (c *Core) UploadJSON(ctx context.Context, v any) (*docstore.UploadResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return c.store.UploadFile(ctx, data, docstore.FileMeta{MimeType: "application/json"})
}

// Close shuts down the health loop and the storage backends.
func (c *Core) Close() error {
	return c.conn.Close()
}
