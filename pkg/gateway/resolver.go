package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/singnet/snet-docstore-go/pkg/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// DefaultGateways is the fallback order used when none is configured.
var DefaultGateways = []string{
	"https://gateway.lighthouse.storage/ipfs/",
	"https://ipfs.io/ipfs/",
	"https://dweb.link/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
}

const (
	DefaultTimeout          = 10 * time.Second
	DefaultMaxRedirects     = 5
	DefaultContentTTL       = 24 * time.Hour
	DefaultContentCacheSize = 500
	DefaultResolveTTL       = 30 * time.Minute
	DefaultResolveCacheSize = 1000
	DefaultRankWindow       = 30 * time.Minute
	DefaultMaxBodySize      = 64 << 20

	urlMemoSize = 1024
)

// LocalSource reads content without network egress. *docstore.Store
// satisfies it.
type LocalSource interface {
	ReadContent(ctx context.Context, cid string) ([]byte, error)
}

// Options configures a Resolver. Zero values take the defaults above.
type Options struct {
	// Gateways are tried in this order. Each is a base URL the CID is
	// appended to, e.g. "https://ipfs.io/ipfs/".
	Gateways     []string
	Timeout      time.Duration
	MaxRedirects int
	// MaxBodySize caps the bytes read from one gateway response. A larger
	// body counts as that gateway failing.
	MaxBodySize int64

	ContentTTL       time.Duration
	ContentCacheSize int
	ResolveTTL       time.Duration
	ResolveCacheSize int
	// RankWindow bounds the age of resolutions RankGateways counts.
	RankWindow time.Duration

	// RateLimit caps requests per second to each gateway. Zero disables it.
	RateLimit float64
	// Headers are sent with every gateway request.
	Headers map[string]string

	// Local is tried before any gateway. Optional.
	Local LocalSource
	// Client overrides the HTTP client. Its Timeout and CheckRedirect are
	// replaced.
	Client *http.Client
	Now    func() time.Time
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if len(o.Gateways) == 0 {
		o.Gateways = append([]string(nil), DefaultGateways...)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = DefaultMaxRedirects
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = DefaultMaxBodySize
	}
	if o.ContentTTL <= 0 {
		o.ContentTTL = DefaultContentTTL
	}
	if o.ContentCacheSize <= 0 {
		o.ContentCacheSize = DefaultContentCacheSize
	}
	if o.ResolveTTL <= 0 {
		o.ResolveTTL = DefaultResolveTTL
	}
	if o.ResolveCacheSize <= 0 {
		o.ResolveCacheSize = DefaultResolveCacheSize
	}
	if o.RankWindow <= 0 {
		o.RankWindow = DefaultRankWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FetchOptions adjusts a single FetchContent call.
type FetchOptions struct {
	// Gateways replaces the configured list for this call.
	Gateways []string
	// Headers are added to the configured ones.
	Headers map[string]string
	// NoCache skips the content cache lookup. The result is still cached.
	NoCache bool
	// NoLocal skips the local source.
	NoLocal bool
}

// Resolution records which gateway last served a content identifier.
type Resolution struct {
	Gateway string
	URL     string
	At      time.Time
}

// Resolver turns locators into URLs and content, preferring the local
// source, then gateways in fixed order.
type Resolver struct {
	gateways   []string
	headers    map[string]string
	local      LocalSource
	client     *http.Client
	maxBody    int64
	now        func() time.Time
	rankWindow time.Duration

	content  *expirable.LRU[string, *Content]
	resolved *expirable.LRU[string, Resolution]
	urls     *lru.Cache[string, string]

	flight   singleflight.Group
	limiters map[string]*rate.Limiter
}

// New builds a resolver from opts.
func New(opts Options) (*Resolver, error) {
	opts = opts.WithDefaults()
	for _, gw := range opts.Gateways {
		if !isHTTPURL(gw) {
			return nil, fmt.Errorf("gateway %q is not an http(s) URL", gw)
		}
	}
	urls, err := lru.New[string, string](urlMemoSize)
	if err != nil {
		return nil, fmt.Errorf("create url cache: %w", err)
	}

	client := &http.Client{}
	if opts.Client != nil {
		cp := *opts.Client
		client = &cp
	}
	client.Timeout = opts.Timeout
	maxRedirects := opts.MaxRedirects
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	r := &Resolver{
		gateways:   append([]string(nil), opts.Gateways...),
		headers:    opts.Headers,
		local:      opts.Local,
		client:     client,
		maxBody:    opts.MaxBodySize,
		now:        opts.Now,
		rankWindow: opts.RankWindow,
		content:    expirable.NewLRU[string, *Content](opts.ContentCacheSize, nil, opts.ContentTTL),
		resolved:   expirable.NewLRU[string, Resolution](opts.ResolveCacheSize, nil, opts.ResolveTTL),
		urls:       urls,
	}
	if opts.RateLimit > 0 {
		r.limiters = make(map[string]*rate.Limiter, len(r.gateways))
		for _, gw := range r.gateways {
			r.limiters[gw] = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		}
	}
	return r, nil
}

// Gateways returns the configured fallback order.
func (r *Resolver) Gateways() []string {
	return append([]string(nil), r.gateways...)
}

// FetchContent returns the content behind locator. It tries, in order, the
// content cache, the local source and every gateway, stopping at the first
// success. Local failures are logged and skipped. When every gateway fails
// the error is a *FetchExhaustedError. Concurrent calls for the same content
// share one fetch.
func (r *Resolver) FetchContent(ctx context.Context, locator string, opts FetchOptions) (*Content, error) {
	id, rest := splitLocator(locator)
	if !storage.IsCID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	key := id + rest

	if !opts.NoCache {
		if c, ok := r.content.Get(key); ok {
			zap.L().Debug("content cache hit", zap.String("cid", id))
			return c, nil
		}
	}

	ch := r.flight.DoChan(flightKey(key, opts), func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), locator, id, rest, opts)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Content), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flightKey identifies a shared fetch. Calls only share when their per-call
// options would drive the same fetch; NoCache does not change the fetch and is
// left out.
func flightKey(key string, opts FetchOptions) string {
	if !opts.NoLocal && len(opts.Gateways) == 0 && len(opts.Headers) == 0 {
		return key
	}
	var b strings.Builder
	b.WriteString(key)
	if opts.NoLocal {
		b.WriteString("\x00nolocal")
	}
	for _, gw := range opts.Gateways {
		b.WriteString("\x00gw=")
		b.WriteString(gw)
	}
	pairs := make([]string, 0, len(opts.Headers))
	for k, v := range opts.Headers {
		pairs = append(pairs, http.CanonicalHeaderKey(k)+":"+v)
	}
	sort.Strings(pairs)
	for _, p := range pairs {
		b.WriteString("\x00h=")
		b.WriteString(p)
	}
	return b.String()
}

// fetch runs one uncached lookup of locator. The local source is asked first,
// but only for a bare CID: a sub-path names a file inside a directory, which
// the local backend cannot walk. Gateways are then tried in order, using the
// per-call list when one is given. Bytes fetched for a bare CID are hashed and
// compared with the CID, so a gateway serving the wrong content is skipped
// like one that is down. The first success is cached and recorded as a
// resolution; otherwise every gateway error is returned in a
// *FetchExhaustedError.
func (r *Resolver) fetch(ctx context.Context, locator, id, rest string, opts FetchOptions) (*Content, error) {
	key := id + rest

	if r.local != nil && !opts.NoLocal && rest == "" {
		data, err := r.local.ReadContent(ctx, id)
		if err == nil {
			kind, doc, _ := sniff(data)
			c := &Content{CID: id, Kind: kind, Raw: data, JSON: doc, Gateway: LocalGateway}
			r.content.Add(key, c)
			zap.L().Debug("content served locally", zap.String("cid", id))
			return c, nil
		}
		zap.L().Debug("local read failed, trying gateways", zap.String("cid", id), zap.Error(err))
	}

	gateways := r.gateways
	if len(opts.Gateways) > 0 {
		gateways = opts.Gateways
	}

	var errs error
	for _, gw := range gateways {
		target := joinGateway(gw, id, rest)
		c, err := r.get(ctx, gw, target, opts.Headers)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", gw, err))
			zap.L().Info("gateway failed, trying next", zap.String("gateway", gw), zap.String("cid", id), zap.Error(err))
			continue
		}
		if rest == "" {
			if err := storage.Verify(id, c.Raw); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", gw, err))
				zap.L().Warn("gateway returned mismatching content", zap.String("gateway", gw), zap.String("cid", id))
				continue
			}
		}
		c.CID = id
		c.Gateway = gw
		r.content.Add(key, c)
		r.resolved.Add(id, Resolution{Gateway: gw, URL: target, At: r.now()})
		zap.L().Debug("content fetched", zap.String("gateway", gw), zap.String("cid", id), zap.Stringer("kind", c.Kind))
		return c, nil
	}
	return nil, &FetchExhaustedError{Locator: locator, Errs: multierr.Errors(errs)}
}

// get performs one GET against a single gateway, waiting for its rate limiter
// first. Configured headers are sent, then extra overrides them. Only a 200
// response is accepted, its body is read up to the resolver's size cap, and
// the result is classified by Content-Type with sniffing as the fallback. The
// returned Content has no CID or gateway set; fetch fills them in.
func (r *Resolver) get(ctx context.Context, gateway, target string, extra map[string]string) (*Content, error) {
	if lim, ok := r.limiters[gateway]; ok {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			zap.L().Debug("closing gateway response", zap.Error(closeErr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if resp.ContentLength > r.maxBody {
		return nil, fmt.Errorf("%w: %d bytes declared, limit %d", ErrBodyTooLarge, resp.ContentLength, r.maxBody)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > r.maxBody {
		return nil, fmt.Errorf("%w: limit %d", ErrBodyTooLarge, r.maxBody)
	}

	contentType := resp.Header.Get("Content-Type")
	kind, doc, err := classify(contentType, body)
	if err != nil {
		return nil, err
	}
	return &Content{Kind: kind, ContentType: contentType, Raw: body, JSON: doc}, nil
}

// Resolved returns the gateway that last served locator's content, if that
// resolution has not expired.
func (r *Resolver) Resolved(locator string) (Resolution, bool) {
	return r.resolved.Get(ExtractContentID(locator))
}

// RankGateways orders the configured gateways by how many live resolutions
// younger than the rank window each one served, most first. Ties keep the
// configured order. The configured order itself is never changed.
func (r *Resolver) RankGateways() []string {
	now := r.now()
	counts := make(map[string]int)
	for _, res := range r.resolved.Values() {
		if now.Sub(res.At) < r.rankWindow {
			counts[res.Gateway]++
		}
	}

	ranked := r.Gateways()
	seen := make(map[string]bool, len(ranked))
	for _, gw := range ranked {
		seen[gw] = true
	}
	var extra []string
	for gw := range counts {
		if !seen[gw] {
			extra = append(extra, gw)
		}
	}
	sort.Strings(extra)
	ranked = append(ranked, extra...)

	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	return ranked
}

// Clear empties the content and resolution caches.
func (r *Resolver) Clear() {
	r.content.Purge()
	r.resolved.Purge()
	r.urls.Purge()
}

// IsExhausted reports whether err came from every gateway failing.
func IsExhausted(err error) bool {
	var e *FetchExhaustedError
	return errors.As(err, &e)
}
