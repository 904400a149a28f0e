package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ipfs/kubo/client/rpc"
	"go.uber.org/zap"
)

// IPFSNode is a Backend talking to a remote Kubo node over its HTTP RPC API.
type IPFSNode struct {
	api *rpc.HttpApi
	url string
}

// NewIPFSClient constructs a Kubo HTTP API client pointed at url. Every
// request is bounded by timeout.
func NewIPFSClient(url string, timeout time.Duration) (*rpc.HttpApi, error) {
	httpClient := http.Client{
		Timeout: timeout,
	}
	client, err := rpc.NewURLApiWithClient(url, &httpClient)
	if err != nil {
		zap.L().Error("connection failed to IPFS", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("ipfs client for %s: %w", url, err)
	}
	return client, nil
}

// NewIPFSNode wraps a Kubo RPC endpoint. No request is made until the first
// call; use Version to probe liveness.
func NewIPFSNode(url string, timeout time.Duration) (*IPFSNode, error) {
	api, err := NewIPFSClient(url, timeout)
	if err != nil {
		return nil, err
	}
	return &IPFSNode{api: api, url: url}, nil
}

// URL returns the RPC endpoint the node was created for.
func (n *IPFSNode) URL() string { return n.url }

// Add uploads data with `ipfs add` as a CIDv1 raw-leaf object. Pinning is left
// to Pin so that both steps are retried independently.
func (n *IPFSNode) Add(ctx context.Context, data []byte) (string, error) {
	var out struct {
		Name string `json:"Name"`
		Hash string `json:"Hash"`
		Size string `json:"Size"`
	}
	err := n.api.Request("add").
		Option("cid-version", 1).
		Option("raw-leaves", true).
		Option("pin", false).
		FileBody(bytes.NewReader(data)).
		Exec(ctx, &out)
	if err != nil {
		zap.L().Error("error uploading to ipfs", zap.String("url", n.url), zap.Error(err))
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("ipfs add: empty hash in response")
	}
	zap.L().Debug("uploaded to ipfs", zap.String("cid", out.Hash), zap.Int("size", len(data)))
	return out.Hash, nil
}

// Pin issues `ipfs pin add` for hash.
func (n *IPFSNode) Pin(ctx context.Context, hash string) error {
	c, err := ParseCID(hash)
	if err != nil {
		return err
	}
	var out struct {
		Pins []string `json:"Pins"`
	}
	if err := n.api.Request("pin/add", c.String()).Exec(ctx, &out); err != nil {
		return fmt.Errorf("ipfs pin add %s: %w", c, err)
	}
	return nil
}

// Cat reads content by CID with `ipfs cat`. Raw-codec CIDs are verified
// against the returned bytes. A CID the node does not hold makes Kubo search
// the network for it until ctx or the client timeout ends the request.
func (n *IPFSNode) Cat(ctx context.Context, hash string) ([]byte, error) {
	return n.cat(ctx, hash, false)
}

// CatLocal is Cat restricted to the node's own blockstore. The request carries
// Kubo's global offline option, so a missing CID fails at once instead of
// starting a Bitswap or DHT search.
func (n *IPFSNode) CatLocal(ctx context.Context, hash string) ([]byte, error) {
	return n.cat(ctx, hash, true)
}

func (n *IPFSNode) cat(ctx context.Context, hash string, offline bool) (content []byte, err error) {
	c, err := ParseCID(hash)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("hash used to retrieve from IPFS", zap.String("cid", c.String()), zap.Bool("offline", offline))

	req := n.api.Request("cat", c.String())
	if offline {
		req = req.Option("offline", true)
	}
	resp, err := req.Send(ctx)
	if err != nil {
		return nil, fmt.Errorf("ipfs cat %s: %w", c, err)
	}
	defer func(resp *rpc.Response) {
		if cerr := resp.Close(); cerr != nil {
			zap.L().Error("error closing response in ipfs", zap.String("cid", c.String()), zap.Error(cerr))
		}
	}(resp)

	if resp.Error != nil {
		return nil, fmt.Errorf("ipfs cat %s: %w", c, resp.Error)
	}
	content, err = io.ReadAll(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("ipfs cat %s: read: %w", c, err)
	}
	if err := verifyContent(c, content); err != nil {
		zap.L().Error("IPFS hash verification failed", zap.String("cid", c.String()), zap.Error(err))
		return nil, err
	}
	return content, nil
}

// Version queries `ipfs version`.
func (n *IPFSNode) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"Version"`
	}
	if err := n.api.Request("version").Exec(ctx, &out); err != nil {
		return "", fmt.Errorf("ipfs version: %w", err)
	}
	return out.Version, nil
}

// Close is a no-op: the RPC client holds no long-lived connections of its own.
func (n *IPFSNode) Close() error { return nil }
