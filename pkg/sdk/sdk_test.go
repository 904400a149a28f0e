package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/singnet/snet-docstore-go/internal/testutil/gatewaytest"
	"github.com/singnet/snet-docstore-go/internal/testutil/kubotest"
	"github.com/singnet/snet-docstore-go/pkg/config"
	"github.com/singnet/snet-docstore-go/pkg/connection"
	"github.com/singnet/snet-docstore-go/pkg/docstore"
	"github.com/singnet/snet-docstore-go/pkg/gateway"
	"github.com/singnet/snet-docstore-go/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func testConfig(ipfsURL string, gateways ...string) *config.Config {
	return &config.Config{
		IpfsURL:       ipfsURL,
		LighthouseURL: firstOr(gateways, "http://127.0.0.1:1/ipfs/"),
		Gateways:      gateways,
		Retry:         retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Timeouts:      config.Timeouts{Dial: time.Second, HealthCheck: time.Second, GatewayFetch: time.Second},
	}
}

func firstOr(list []string, def string) string {
	if len(list) > 0 {
		return list[0]
	}
	return def
}

func TestNewSDK_UsesPrimary(t *testing.T) {
	kubo := kubotest.New(t)
	core, err := NewSDK(context.Background(), testConfig(kubo.URL))
	require.NoError(t, err)
	defer core.Close()

	assert.Equal(t, connection.SourcePrimary, core.Connection().Source())

	rec, err := core.Store().Create(context.Background(), "orgs", map[string]any{"name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, 1, kubo.Calls("add"))
	assert.Equal(t, 1, kubo.Calls("pin/add"))

	pinned, err := kubo.Node.Pins(context.Background())
	require.NoError(t, err)
	assert.Contains(t, pinned, rec.CID)
}

func TestNewSDK_FallsBackToEmbedded(t *testing.T) {
	core, err := NewSDK(context.Background(), testConfig(deadURL(t)))
	require.NoError(t, err)
	defer core.Close()

	assert.Equal(t, connection.SourceEmbedded, core.Connection().Source())
	_, err = core.Store().Create(context.Background(), "orgs", map[string]any{"name": "Acme"})
	require.NoError(t, err)
}

func TestNewSDK_PersistentEmbedded(t *testing.T) {
	cfg := testConfig(deadURL(t))
	cfg.LocalRepoPath = t.TempDir()

	core, err := NewSDK(context.Background(), cfg)
	require.NoError(t, err)
	rec, err := core.Store().Create(context.Background(), "orgs", map[string]any{"name": "Acme"})
	require.NoError(t, err)
	manifest, err := core.Store().Checkpoint(context.Background())
	require.NoError(t, err)
	require.NoError(t, core.Close())

	cfg2 := testConfig(deadURL(t))
	cfg2.LocalRepoPath = cfg.LocalRepoPath
	core, err = NewSDK(context.Background(), cfg2)
	require.NoError(t, err)
	defer core.Close()

	n, err := core.Store().Restore(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got := core.Store().FindByID("orgs", rec.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Get("name"))
}

func TestNewSDK_NoBackend(t *testing.T) {
	cfg := testConfig(deadURL(t))
	cfg.DisableEmbedded = true

	_, err := NewSDK(context.Background(), cfg)
	var connErr *connection.ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestNewSDK_InvalidConfig(t *testing.T) {
	_, err := NewSDK(context.Background(), &config.Config{IpfsURL: "localhost"})
	require.ErrorContains(t, err, "invalid config")
}

func TestCore_ResolverReadsThroughStore(t *testing.T) {
	gw := gatewaytest.New(t)
	core, err := NewSDK(context.Background(), testConfig(deadURL(t), gw.Base()))
	require.NoError(t, err)
	defer core.Close()
	ctx := context.Background()

	rec, err := core.Store().Create(ctx, "orgs", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	c, err := core.Resolver().FetchContent(ctx, "ipfs://"+rec.CID, gateway.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, gateway.LocalGateway, c.Gateway)
	assert.Equal(t, gateway.KindJSON, c.Kind)
	doc := c.JSON.(map[string]any)
	assert.Equal(t, rec.ID, doc["id"])
	assert.Zero(t, gw.Hits())

	// Content the store does not hold comes from the gateway.
	other := gw.Put(t, "", "application/json", []byte(`{"remote":true}`))
	c, err = core.Resolver().FetchContent(ctx, other, gateway.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, gw.Base(), c.Gateway)
	assert.Equal(t, 1, gw.Hits())
}

func TestCore_UploadJSON(t *testing.T) {
	core, err := NewSDK(context.Background(), testConfig(deadURL(t)))
	require.NoError(t, err)
	defer core.Close()

	res, err := core.UploadJSON(context.Background(), map[string]string{"org_id": "acme"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", res.MimeType)
	assert.Equal(t, "ipfs://"+res.CID, res.Locator)

	data, err := core.Store().ReadContent(context.Background(), res.CID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"org_id":"acme"}`, string(data))
}

func TestCore_Health(t *testing.T) {
	kubo := kubotest.New(t)
	core, err := NewSDK(context.Background(), testConfig(kubo.URL))
	require.NoError(t, err)
	defer core.Close()
	ctx := context.Background()

	_, err = core.Store().Create(ctx, "orgs", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	report := core.Health(ctx)
	assert.True(t, report.Healthy)
	assert.Equal(t, "connected", report.State)
	assert.Equal(t, "primary", report.Source)
	assert.NotEmpty(t, report.Version)
	assert.Equal(t, map[string]int{"orgs": 1}, report.Collections)
	assert.Equal(t, core.GatewayList(), report.Gateways)

	kubo.SetDown(true)
	report = core.Health(ctx)
	assert.False(t, report.Healthy)
	assert.Equal(t, "disconnected", report.State)
	assert.NotEmpty(t, report.Error)

	// Reads keep working from the index while the backend is down.
	assert.Len(t, core.Store().FindMany("orgs", docstore.Filter{"name": "Acme"}), 1)
}
