// Package config defines the runtime configuration of the document store:
// the IPFS RPC endpoint, the embedded fallback node, gateways, retry policy,
// caches and timeouts. It also provides validation and defaulting helpers.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/singnet/snet-docstore-go/pkg/gateway"
	"github.com/singnet/snet-docstore-go/pkg/retry"
)

const (
	// DefaultIpfsURL is the RPC API of a local Kubo daemon.
	DefaultIpfsURL = "http://127.0.0.1:5001"
	// DefaultLighthouseURL is the Filecoin-backed gateway tried first.
	DefaultLighthouseURL = "https://gateway.lighthouse.storage/ipfs/"
)

// Config holds all settings required to build the store, its connection and
// the gateway resolver. Use Validate to fill implicit defaults and to check
// field values.
type Config struct {
	// IpfsURL is the HTTP RPC endpoint of the primary IPFS node.
	// Default: http://127.0.0.1:5001
	IpfsURL string `json:"ipfs_url" yaml:"ipfs_url" mapstructure:"ipfs_url"`
	// LocalRepoPath persists the embedded node in a Badger repository. Empty
	// keeps the embedded node in memory.
	LocalRepoPath string `json:"local_repo_path" yaml:"local_repo_path" mapstructure:"local_repo_path"`
	// DisableEmbedded turns off the fallback to the embedded node.
	DisableEmbedded bool `json:"disable_embedded" yaml:"disable_embedded" mapstructure:"disable_embedded"`
	// LighthouseURL is the first gateway tried when fetching content.
	// Default: https://gateway.lighthouse.storage/ipfs/
	LighthouseURL string `json:"lighthouse_url" yaml:"lighthouse_url" mapstructure:"lighthouse_url"`
	// Gateways are tried after LighthouseURL, in order. Default: the public
	// gateways in gateway.DefaultGateways.
	Gateways []string `json:"gateways" yaml:"gateways" mapstructure:"gateways"`
	// GatewayHeaders are sent with every gateway request.
	GatewayHeaders map[string]string `json:"gateway_headers" yaml:"gateway_headers" mapstructure:"gateway_headers"`
	// GatewayRateLimit caps requests per second to each gateway. Zero disables it.
	GatewayRateLimit float64 `json:"gateway_rate_limit" yaml:"gateway_rate_limit" mapstructure:"gateway_rate_limit"`
	// MaxRedirects bounds redirects followed per gateway request. Default: 5
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects" mapstructure:"max_redirects"`
	// MaxContentBytes caps the body read from one gateway response.
	// Default: 64 MiB
	MaxContentBytes int64 `json:"max_content_bytes" yaml:"max_content_bytes" mapstructure:"max_content_bytes"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`
	// Retry applies to adding and pinning content. See retry.Default.
	Retry retry.Policy `json:"retry" yaml:"retry" mapstructure:"retry"`
	// Timeouts configures per-operation timeouts. See Timeouts.WithDefaults for defaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts" mapstructure:"timeouts"`
	// Cache sizes the gateway caches. See Cache.WithDefaults for defaults.
	Cache Cache `json:"cache" yaml:"cache" mapstructure:"cache"`
}

// Timeouts controls operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	Dial           time.Duration `json:"dial" yaml:"dial" mapstructure:"dial"`                                  // primary node probe
	Request        time.Duration `json:"request" yaml:"request" mapstructure:"request"`                         // single RPC call
	GatewayFetch   time.Duration `json:"gateway_fetch" yaml:"gateway_fetch" mapstructure:"gateway_fetch"`       // single gateway GET
	HealthCheck    time.Duration `json:"health_check" yaml:"health_check" mapstructure:"health_check"`          // liveness probe
	HealthInterval time.Duration `json:"health_interval" yaml:"health_interval" mapstructure:"health_interval"` // between probes
}

// Cache configures the gateway content and resolution caches.
type Cache struct {
	ContentTTL  time.Duration `json:"content_ttl" yaml:"content_ttl" mapstructure:"content_ttl"`
	ContentSize int           `json:"content_size" yaml:"content_size" mapstructure:"content_size"`
	ResolveTTL  time.Duration `json:"resolve_ttl" yaml:"resolve_ttl" mapstructure:"resolve_ttl"`
	ResolveSize int           `json:"resolve_size" yaml:"resolve_size" mapstructure:"resolve_size"`
}

// Validate normalizes the configuration by applying implicit defaults for
// IpfsURL, LighthouseURL, Gateways, MaxRedirects, MaxContentBytes, Retry,
// Timeouts and Cache, and checks that every endpoint is an http(s) URL.
func (c *Config) Validate() error {

	if c.IpfsURL == "" {
		c.IpfsURL = DefaultIpfsURL
	}

	if c.LighthouseURL == "" {
		c.LighthouseURL = DefaultLighthouseURL
	}

	if len(c.Gateways) == 0 {
		c.Gateways = append([]string(nil), gateway.DefaultGateways...)
	}

	if c.MaxRedirects == 0 {
		c.MaxRedirects = gateway.DefaultMaxRedirects
	}

	if c.MaxContentBytes == 0 {
		c.MaxContentBytes = gateway.DefaultMaxBodySize
	}

	c.Retry = c.Retry.WithDefaults()
	c.Timeouts = c.Timeouts.WithDefaults()
	c.Cache = c.Cache.WithDefaults()

	var errs []error
	if err := checkHTTPURL("ipfs_url", c.IpfsURL); err != nil {
		errs = append(errs, err)
	}
	for _, gw := range c.GatewayList() {
		if err := checkHTTPURL("gateway", gw); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MaxRedirects < 0 {
		errs = append(errs, errors.New("max_redirects must not be negative"))
	}
	if c.MaxContentBytes < 0 {
		errs = append(errs, errors.New("max_content_bytes must not be negative"))
	}
	if c.GatewayRateLimit < 0 {
		errs = append(errs, errors.New("gateway_rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

func checkHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", field, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q is not an http(s) URL", field, raw)
	}
	return nil
}

// GatewayList returns the fallback order: LighthouseURL first, then Gateways
// with duplicates removed.
func (c *Config) GatewayList() []string {
	out := make([]string, 0, len(c.Gateways)+1)
	seen := make(map[string]bool, len(c.Gateways)+1)
	for _, gw := range append([]string{c.LighthouseURL}, c.Gateways...) {
		if gw == "" || seen[gw] {
			continue
		}
		seen[gw] = true
		out = append(out, gw)
	}
	return out
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Dial:           5s
//	Request:        30s
//	GatewayFetch:   10s
//	HealthCheck:    5s
//	HealthInterval: 60s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Dial == 0 {
		tt.Dial = 5 * time.Second
	}
	if tt.Request == 0 {
		tt.Request = 30 * time.Second
	}
	if tt.GatewayFetch == 0 {
		tt.GatewayFetch = gateway.DefaultTimeout
	}
	if tt.HealthCheck == 0 {
		tt.HealthCheck = 5 * time.Second
	}
	if tt.HealthInterval == 0 {
		tt.HealthInterval = 60 * time.Second
	}
	return tt
}

// WithDefaults returns a copy of c with zero values replaced by defaults:
//
//	ContentTTL:  24h
//	ContentSize: 500
//	ResolveTTL:  30m
//	ResolveSize: 1000
func (c Cache) WithDefaults() Cache {
	cc := c
	if cc.ContentTTL == 0 {
		cc.ContentTTL = gateway.DefaultContentTTL
	}
	if cc.ContentSize == 0 {
		cc.ContentSize = gateway.DefaultContentCacheSize
	}
	if cc.ResolveTTL == 0 {
		cc.ResolveTTL = gateway.DefaultResolveTTL
	}
	if cc.ResolveSize == 0 {
		cc.ResolveSize = gateway.DefaultResolveCacheSize
	}
	return cc
}
