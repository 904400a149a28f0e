package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/singnet/snet-docstore-go/internal/testutil/gatewaytest"
	"github.com/singnet/snet-docstore-go/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocal struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls int
	delay time.Duration
}

func (f *fakeLocal) ReadContent(_ context.Context, cid string) ([]byte, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if b, ok := f.data[cid]; ok {
		return b, nil
	}
	return nil, storage.ErrNotFound
}

func newResolver(t *testing.T, opts Options) *Resolver {
	t.Helper()
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestFetchContent_FallsBackAcrossGateways(t *testing.T) {
	down := gatewaytest.New(t)
	down.FailWith(http.StatusBadGateway)
	good := gatewaytest.New(t)
	body := []byte(`{"name":"Acme","tags":["a","b"]}`)
	id := good.Put(t, "", "application/json", body)

	unreachable := gatewaytest.Unreachable(t)
	r := newResolver(t, Options{Gateways: []string{unreachable, down.Base(), good.Base()}, Timeout: 2 * time.Second})

	c, err := r.FetchContent(context.Background(), storage.IpfsPrefix+id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, KindJSON, c.Kind)
	assert.Equal(t, id, c.CID)
	assert.Equal(t, good.Base(), c.Gateway)
	assert.Equal(t, map[string]any{"name": "Acme", "tags": []any{"a", "b"}}, c.JSON)
	assert.Equal(t, 1, down.Hits())

	res, ok := r.Resolved(storage.IpfsPrefix + id)
	require.True(t, ok)
	assert.Equal(t, good.Base(), res.Gateway)
	assert.Equal(t, good.Base()+id, res.URL)

	assert.Equal(t, []string{good.Base(), unreachable, down.Base()}, r.RankGateways())
	assert.Equal(t, []string{unreachable, down.Base(), good.Base()}, r.Gateways(), "configured order is fixed")
}

func TestFetchContent_ServesFromCache(t *testing.T) {
	gw := gatewaytest.New(t)
	id := gw.Put(t, "", "text/plain; charset=utf-8", []byte("hello"))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}})
	ctx := context.Background()

	first, err := r.FetchContent(ctx, id, FetchOptions{})
	require.NoError(t, err)
	second, err := r.FetchContent(ctx, "ipfs://"+id, FetchOptions{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, gw.Hits())
	assert.Equal(t, KindText, second.Kind)
	assert.Equal(t, "hello", second.Text())

	_, err = r.FetchContent(ctx, id, FetchOptions{NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Hits())
}

func TestFetchContent_CacheExpires(t *testing.T) {
	gw := gatewaytest.New(t)
	id := gw.Put(t, "", "application/json", []byte(`{"v":1}`))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}, ContentTTL: 50 * time.Millisecond})
	ctx := context.Background()

	_, err := r.FetchContent(ctx, id, FetchOptions{})
	require.NoError(t, err)
	_, err = r.FetchContent(ctx, id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.Hits())

	time.Sleep(150 * time.Millisecond)

	_, err = r.FetchContent(ctx, id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Hits())
}

func TestFetchContent_Exhausted(t *testing.T) {
	a := gatewaytest.New(t)
	a.FailWith(http.StatusInternalServerError)
	b := gatewaytest.New(t)
	r := newResolver(t, Options{Gateways: []string{a.Base(), b.Base(), gatewaytest.Unreachable(t)}})

	locator := "ipfs://" + testCID
	_, err := r.FetchContent(context.Background(), locator, FetchOptions{})
	var exhausted *FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, locator, exhausted.Locator)
	assert.Len(t, exhausted.Errs, 3)
	assert.True(t, IsExhausted(err))
	assert.Contains(t, err.Error(), locator)

	_, ok := r.Resolved(locator)
	assert.False(t, ok)
}

func TestFetchContent_InvalidLocator(t *testing.T) {
	gw := gatewaytest.New(t)
	r := newResolver(t, Options{Gateways: []string{gw.Base()}})

	_, err := r.FetchContent(context.Background(), "ipfs://nope", FetchOptions{})
	require.ErrorIs(t, err, ErrInvalidLocator)
	assert.Zero(t, gw.Hits())
}

func TestFetchContent_PrefersLocal(t *testing.T) {
	gw := gatewaytest.New(t)
	body := []byte(`{"id":"1"}`)
	id := gw.Put(t, "", "application/json", body)
	local := &fakeLocal{data: map[string][]byte{id: body}}
	r := newResolver(t, Options{Gateways: []string{gw.Base()}, Local: local})

	c, err := r.FetchContent(context.Background(), id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, LocalGateway, c.Gateway)
	assert.Equal(t, KindJSON, c.Kind)
	assert.Zero(t, gw.Hits())

	_, ok := r.Resolved(id)
	assert.False(t, ok, "local reads are not gateway resolutions")
}

func TestFetchContent_LocalFailureFallsThrough(t *testing.T) {
	gw := gatewaytest.New(t)
	id := gw.Put(t, "", "application/octet-stream", []byte{0x00, 0x01, 0xff})
	local := &fakeLocal{}
	r := newResolver(t, Options{Gateways: []string{gw.Base()}, Local: local})

	c, err := r.FetchContent(context.Background(), id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, KindBinary, c.Kind)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, gw.Hits())

	_, err = r.FetchContent(context.Background(), id, FetchOptions{NoCache: true, NoLocal: true})
	require.NoError(t, err)
	assert.Equal(t, 1, local.calls)
}

func TestFetchContent_SkipsBadResponses(t *testing.T) {
	body := []byte(`{"ok":true}`)
	id := gatewaytest.CID(t, body)

	broken := gatewaytest.New(t)
	broken.PutAt(id, "application/json", []byte(`{"ok":`))
	tampered := gatewaytest.New(t)
	tampered.PutAt(id, "", []byte(`{"ok":false}`))
	good := gatewaytest.New(t)
	good.PutAt(id, "", body)

	r := newResolver(t, Options{Gateways: []string{gatewaytest.Redirector(t), broken.Base(), tampered.Base(), good.Base()}})
	c, err := r.FetchContent(context.Background(), id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, good.Base(), c.Gateway)
	assert.Equal(t, KindJSON, c.Kind, "untyped JSON is sniffed")
	assert.Equal(t, 1, broken.Hits())
	assert.Equal(t, 1, tampered.Hits())
}

func TestFetchContent_SubPath(t *testing.T) {
	gw := gatewaytest.New(t)
	dir := testCID
	gw.PutAt(dir+"/meta/org.json", "application/json", []byte(`{"org":"acme"}`))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}})

	c, err := r.FetchContent(context.Background(), "ipfs://"+dir+"/meta/org.json", FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"org": "acme"}, c.JSON)
}

func TestFetchContent_SendsHeaders(t *testing.T) {
	gw := gatewaytest.New(t)
	id := gw.Put(t, "", "text/plain", []byte("x"))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}, Headers: map[string]string{"Authorization": "Bearer t"}})

	_, err := r.FetchContent(context.Background(), id, FetchOptions{Headers: map[string]string{"X-Trace": "42"}})
	require.NoError(t, err)
	h := gw.LastHeaders()
	assert.Equal(t, "Bearer t", h.Get("Authorization"))
	assert.Equal(t, "42", h.Get("X-Trace"))
}

func TestFetchContent_PerCallGateways(t *testing.T) {
	configured := gatewaytest.New(t)
	other := gatewaytest.New(t)
	id := other.Put(t, "", "text/plain", []byte("x"))
	r := newResolver(t, Options{Gateways: []string{configured.Base()}})

	c, err := r.FetchContent(context.Background(), id, FetchOptions{Gateways: []string{other.Base()}})
	require.NoError(t, err)
	assert.Equal(t, other.Base(), c.Gateway)
	assert.Zero(t, configured.Hits())
	assert.Equal(t, []string{other.Base(), configured.Base()}, r.RankGateways())
}

func TestFetchContent_CollapsesConcurrentFetches(t *testing.T) {
	gw := gatewaytest.New(t)
	gw.SetDelay(100 * time.Millisecond)
	id := gw.Put(t, "", "text/plain", []byte("shared"))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}})

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.FetchContent(context.Background(), id, FetchOptions{})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, gw.Hits())
}

func TestFetchContent_ConcurrentCallsKeepTheirOptions(t *testing.T) {
	gw := gatewaytest.New(t)
	body := []byte("both places")
	id := gw.Put(t, "", "text/plain", body)
	local := &fakeLocal{data: map[string][]byte{id: body}, delay: 150 * time.Millisecond}
	r := newResolver(t, Options{Gateways: []string{gw.Base()}, Local: local})

	var (
		wg     sync.WaitGroup
		viaAny *Content
		errAny error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		viaAny, errAny = r.FetchContent(context.Background(), id, FetchOptions{})
	}()
	time.Sleep(30 * time.Millisecond)

	remote, err := r.FetchContent(context.Background(), id, FetchOptions{NoLocal: true, NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, gw.Base(), remote.Gateway, "a NoLocal call must not share a local read")

	wg.Wait()
	require.NoError(t, errAny)
	assert.Equal(t, LocalGateway, viaAny.Gateway)
	assert.Equal(t, 1, gw.Hits())
}

func TestFlightKey(t *testing.T) {
	const key = "bafkqaaa"
	assert.Equal(t, key, flightKey(key, FetchOptions{}))
	assert.Equal(t, key, flightKey(key, FetchOptions{NoCache: true}))

	a := flightKey(key, FetchOptions{Headers: map[string]string{"x-trace": "1", "Authorization": "t"}})
	b := flightKey(key, FetchOptions{Headers: map[string]string{"authorization": "t", "X-Trace": "1"}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, flightKey(key, FetchOptions{Headers: map[string]string{"X-Trace": "2", "Authorization": "t"}}))

	assert.NotEqual(t, key, flightKey(key, FetchOptions{NoLocal: true}))
	assert.NotEqual(t,
		flightKey(key, FetchOptions{Gateways: []string{"https://a/ipfs/", "https://b/ipfs/"}}),
		flightKey(key, FetchOptions{Gateways: []string{"https://b/ipfs/", "https://a/ipfs/"}}))
}

func TestFetchContent_BodySizeLimit(t *testing.T) {
	body := []byte("small enough")
	id := gatewaytest.CID(t, body)

	oversized := gatewaytest.New(t)
	oversized.PutAt(id, "text/plain", []byte(strings.Repeat("x", 64)))
	good := gatewaytest.New(t)
	good.PutAt(id, "text/plain", body)

	r := newResolver(t, Options{Gateways: []string{oversized.Base(), good.Base()}, MaxBodySize: 16})
	c, err := r.FetchContent(context.Background(), id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, good.Base(), c.Gateway)
	assert.Equal(t, 1, oversized.Hits())

	only := newResolver(t, Options{Gateways: []string{oversized.Base()}, MaxBodySize: 16})
	_, err = only.FetchContent(context.Background(), id, FetchOptions{})
	require.True(t, IsExhausted(err))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetchContent_CallerCancellation(t *testing.T) {
	gw := gatewaytest.New(t)
	gw.SetDelay(200 * time.Millisecond)
	id := gw.Put(t, "", "text/plain", []byte("slow"))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.FetchContent(ctx, id, FetchOptions{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetchContent_RateLimited(t *testing.T) {
	gw := gatewaytest.New(t)
	a := gw.Put(t, "", "text/plain", []byte("a"))
	b := gw.Put(t, "", "text/plain", []byte("b"))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}, RateLimit: 10})

	start := time.Now()
	_, err := r.FetchContent(context.Background(), a, FetchOptions{})
	require.NoError(t, err)
	_, err = r.FetchContent(context.Background(), b, FetchOptions{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRankGateways_Window(t *testing.T) {
	a := gatewaytest.New(t)
	b := gatewaytest.New(t)
	c := gatewaytest.New(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newResolver(t, Options{
		Gateways: []string{a.Base(), b.Base(), c.Base()},
		Now:      func() time.Time { return now },
	})
	ctx := context.Background()

	ids := []string{
		b.Put(t, "", "text/plain", []byte("1")),
		b.Put(t, "", "text/plain", []byte("2")),
		c.Put(t, "", "text/plain", []byte("3")),
	}
	a.FailWith(http.StatusNotFound)
	for _, id := range ids {
		_, err := r.FetchContent(ctx, id, FetchOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{b.Base(), c.Base(), a.Base()}, r.RankGateways())

	now = now.Add(31 * time.Minute)
	assert.Equal(t, []string{a.Base(), b.Base(), c.Base()}, r.RankGateways())
}

func TestClear(t *testing.T) {
	gw := gatewaytest.New(t)
	id := gw.Put(t, "", "text/plain", []byte("x"))
	r := newResolver(t, Options{Gateways: []string{gw.Base()}})
	ctx := context.Background()

	_, err := r.FetchContent(ctx, id, FetchOptions{})
	require.NoError(t, err)
	r.Clear()
	_, ok := r.Resolved(id)
	assert.False(t, ok)

	_, err = r.FetchContent(ctx, id, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Hits())
}

func TestClassify(t *testing.T) {
	kind, doc, err := classify("application/ld+json", []byte(`{"@id":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, KindJSON, kind)
	assert.Equal(t, map[string]any{"@id": "x"}, doc)

	_, _, err = classify("application/json", []byte("nope"))
	assert.Error(t, err)

	kind, _, err = classify("text/html; charset=utf-8", []byte("<p>"))
	require.NoError(t, err)
	assert.Equal(t, KindText, kind)

	kind, _, err = classify("image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, KindBinary, kind)

	kind, _, err = classify("", []byte("plain words"))
	require.NoError(t, err)
	assert.Equal(t, KindText, kind)

	assert.Equal(t, "json", KindJSON.String())
	assert.Equal(t, "binary", KindBinary.String())
}
