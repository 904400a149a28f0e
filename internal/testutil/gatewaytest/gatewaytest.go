// Package gatewaytest serves content the way a public IPFS path gateway does,
// for resolver tests.
package gatewaytest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

type entry struct {
	contentType string
	body        []byte
}

// Gateway is a fake path gateway answering GET /ipfs/<cid>[/path].
type Gateway struct {
	*httptest.Server

	mu      sync.Mutex
	content map[string]entry
	headers http.Header
	status  atomic.Int32
	hits    atomic.Int32
	delay   atomic.Int64
}

// New starts a gateway that is closed when the test ends.
func New(t testing.TB) *Gateway {
	t.Helper()
	g := &Gateway{content: make(map[string]entry)}
	g.Server = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.Server.Close)
	return g
}

// Unreachable returns a gateway base URL nothing listens on.
func Unreachable(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/ipfs/"
	srv.Close()
	return base
}

// CID returns the CIDv1 raw SHA2-256 identifier of data.
func CID(t testing.TB, data []byte) string {
	t.Helper()
	c, err := cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}.Sum(data)
	if err != nil {
		t.Fatalf("hash content: %v", err)
	}
	return c.String()
}

// Base is the URL the CID is appended to.
func (g *Gateway) Base() string { return g.URL + "/ipfs/" }

// Put serves body under its raw CID (plus an optional sub-path) and returns
// the CID.
func (g *Gateway) Put(t testing.TB, path, contentType string, body []byte) string {
	t.Helper()
	id := CID(t, body)
	g.PutAt(id+path, contentType, body)
	return id
}

// PutAt serves body under an arbitrary key, which lets tests serve bytes
// that do not match their CID.
func (g *Gateway) PutAt(key, contentType string, body []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.content[key] = entry{contentType: contentType, body: body}
}

// FailWith makes every request answer status. Zero restores normal serving.
func (g *Gateway) FailWith(status int) { g.status.Store(int32(status)) }

// SetDelay holds every response for d.
func (g *Gateway) SetDelay(d time.Duration) { g.delay.Store(int64(d)) }

// Hits counts requests received.
func (g *Gateway) Hits() int { return int(g.hits.Load()) }

// LastHeaders returns the headers of the most recent request.
func (g *Gateway) LastHeaders() http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.headers.Clone()
}

func (g *Gateway) handle(w http.ResponseWriter, r *http.Request) {
	g.hits.Add(1)
	g.mu.Lock()
	g.headers = r.Header.Clone()
	g.mu.Unlock()

	if d := time.Duration(g.delay.Load()); d > 0 {
		time.Sleep(d)
	}
	if status := g.status.Load(); status != 0 {
		http.Error(w, http.StatusText(int(status)), int(status))
		return
	}

	key, ok := strings.CutPrefix(r.URL.Path, "/ipfs/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	g.mu.Lock()
	e, ok := g.content[key]
	g.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if e.contentType != "" {
		w.Header().Set("Content-Type", e.contentType)
	} else {
		// keep net/http from sniffing a type
		w.Header()["Content-Type"] = nil
	}
	_, _ = w.Write(e.body)
}

// Redirector answers every request with a redirect to itself, for redirect
// limit tests.
func Redirector(t testing.TB) string {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/ipfs/"
}
