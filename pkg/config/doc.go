// Package config provides configuration management for the document store.
//
// This package defines the Config structure that controls storage endpoints,
// the embedded fallback node, gateways, retries, caches and timeouts.
//
// # Basic Configuration
//
// Every field is optional. The zero Config talks to a local Kubo daemon and
// falls back to an in-memory embedded node:
//
//	cfg := &config.Config{}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// # Storage
//
//	IpfsURL:         "http://127.0.0.1:5001" // Kubo RPC API
//	LocalRepoPath:   ""                      // Badger repo for the embedded node; empty = memory
//	DisableEmbedded: false                   // fail instead of falling back
//
// # Gateways
//
// Content that is not available locally is fetched from public gateways,
// LighthouseURL first and then Gateways in order:
//
//	cfg.LighthouseURL = "https://gateway.lighthouse.storage/ipfs/"
//	cfg.Gateways = []string{"https://ipfs.io/ipfs/", "https://dweb.link/ipfs/"}
//	cfg.GatewayHeaders = map[string]string{"Authorization": "Bearer TOKEN"}
//	cfg.GatewayRateLimit = 5 // requests per second per gateway
//
// # Retries, Timeouts and Caches
//
//	cfg.Retry = retry.Policy{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}
//	cfg.Timeouts = config.Timeouts{
//		Dial:           5 * time.Second,  // primary node probe
//		Request:        30 * time.Second, // single RPC call
//		GatewayFetch:   10 * time.Second, // single gateway GET
//		HealthCheck:    5 * time.Second,  // liveness probe
//		HealthInterval: time.Minute,      // between probes
//	}
//	cfg.Cache = config.Cache{ContentTTL: time.Hour, ContentSize: 200}
//
// Zero values are replaced with defaults via WithDefaults().
//
// # Loading
//
// Load reads an optional YAML/JSON/TOML file and SNET_DOCSTORE_* environment
// variables. Nested keys use underscores:
//
//	SNET_DOCSTORE_IPFS_URL=http://kubo:5001
//	SNET_DOCSTORE_GATEWAYS=https://ipfs.io/ipfs/,https://dweb.link/ipfs/
//	SNET_DOCSTORE_TIMEOUTS_HEALTH_INTERVAL=30s
//	SNET_DOCSTORE_RETRY_MAX_ATTEMPTS=5
//
//	cfg, err := config.Load("docstore.yaml")
//
// # Thread Safety
//
// Config instances should be created once and not modified after passing to
// sdk.NewSDK(). The Config is read-only afterwards.
package config
