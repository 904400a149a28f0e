package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"
	badger "github.com/ipfs/go-ds-badger"
	mh "github.com/multiformats/go-multihash"
	"go.uber.org/zap"
)

// EmbeddedVersion is reported by EmbeddedNode.Version.
const EmbeddedVersion = "snet-docstore-embedded/1"

// EmbeddedNode is a private, in-process content store used when no remote
// IPFS node is reachable. Blocks and pins live in a go-datastore; content is
// addressed by CIDv1 raw SHA2-256 identifiers so they verify on read.
type EmbeddedNode struct {
	ds     datastore.Datastore
	prefix cid.Prefix
}

// NewEmbeddedNode builds a node on top of an existing datastore. The node
// takes ownership of ds and closes it on Close.
func NewEmbeddedNode(ds datastore.Datastore) *EmbeddedNode {
	return &EmbeddedNode{
		ds: ds,
		prefix: cid.Prefix{
			Version:  1,
			Codec:    cid.Raw,
			MhType:   mh.SHA2_256,
			MhLength: -1,
		},
	}
}

// NewMemoryNode returns an embedded node whose content is lost on exit.
func NewMemoryNode() *EmbeddedNode {
	return NewEmbeddedNode(dssync.MutexWrap(datastore.NewMapDatastore()))
}

// OpenBadgerNode returns an embedded node persisted in a Badger repository at path.
func OpenBadgerNode(path string) (*EmbeddedNode, error) {
	ds, err := badger.NewDatastore(path, &badger.DefaultOptions)
	if err != nil {
		return nil, fmt.Errorf("open badger repo %s: %w", path, err)
	}
	zap.L().Info("embedded node opened", zap.String("path", path))
	return NewEmbeddedNode(ds), nil
}

func blockKey(c cid.Cid) datastore.Key {
	return datastore.KeyWithNamespaces([]string{"blocks", c.String()})
}

func pinKey(c cid.Cid) datastore.Key {
	return datastore.KeyWithNamespaces([]string{"pins", c.String()})
}

// Add hashes data and stores it under its CID. Adding the same bytes twice is
// a no-op returning the same CID.
func (n *EmbeddedNode) Add(ctx context.Context, data []byte) (string, error) {
	c, err := n.prefix.Sum(data)
	if err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	if err := n.ds.Put(ctx, blockKey(c), data); err != nil {
		return "", fmt.Errorf("store block %s: %w", c, err)
	}
	return c.String(), nil
}

// Pin records hash in the pin set. The block must already be present.
func (n *EmbeddedNode) Pin(ctx context.Context, hash string) error {
	c, err := ParseCID(hash)
	if err != nil {
		return err
	}
	has, err := n.ds.Has(ctx, blockKey(c))
	if err != nil {
		return fmt.Errorf("lookup block %s: %w", c, err)
	}
	if !has {
		return fmt.Errorf("%w: %s", ErrNotPinnable, c)
	}
	if err := n.ds.Put(ctx, pinKey(c), []byte{}); err != nil {
		return fmt.Errorf("pin %s: %w", c, err)
	}
	return nil
}

// Cat returns the stored block for hash.
func (n *EmbeddedNode) Cat(ctx context.Context, hash string) ([]byte, error) {
	c, err := ParseCID(hash)
	if err != nil {
		return nil, err
	}
	data, err := n.ds.Get(ctx, blockKey(c))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	if err != nil {
		return nil, fmt.Errorf("read block %s: %w", c, err)
	}
	if err := verifyContent(c, data); err != nil {
		return nil, err
	}
	return data, nil
}

// CatLocal is Cat. The embedded node has no network to search.
func (n *EmbeddedNode) CatLocal(ctx context.Context, hash string) ([]byte, error) {
	return n.Cat(ctx, hash)
}

// Pins lists the pinned CIDs.
func (n *EmbeddedNode) Pins(ctx context.Context) ([]string, error) {
	res, err := n.ds.Query(ctx, query.Query{Prefix: "/pins", KeysOnly: true})
	if err != nil {
		return nil, fmt.Errorf("query pins: %w", err)
	}
	entries, err := res.Rest()
	if err != nil {
		return nil, fmt.Errorf("query pins: %w", err)
	}
	pins := make([]string, 0, len(entries))
	for _, e := range entries {
		pins = append(pins, datastore.RawKey(e.Key).BaseNamespace())
	}
	return pins, nil
}

// Version always succeeds while the node is open.
func (n *EmbeddedNode) Version(context.Context) (string, error) {
	return EmbeddedVersion, nil
}

// Close closes the underlying datastore.
func (n *EmbeddedNode) Close() error {
	return n.ds.Close()
}
