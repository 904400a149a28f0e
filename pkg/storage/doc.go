// Package storage provides the content-addressed backends the document store
// writes to and reads from.
//
// # Backends
//
// Every backend implements Backend:
//
//	type Backend interface {
//		Add(ctx context.Context, data []byte) (string, error)
//		Pin(ctx context.Context, cid string) error
//		Cat(ctx context.Context, cid string) ([]byte, error)
//		Version(ctx context.Context) (string, error)
//		Close() error
//	}
//
// Two implementations are provided.
//
// IPFSNode (remote Kubo node):
//   - Access via Kubo HTTP RPC API (/api/v0/add, pin/add, cat, version)
//   - Default: http://127.0.0.1:5001
//   - Content is added as CIDv1 with raw leaves and pinned in a separate call
//
// EmbeddedNode (private in-process node):
//   - Blocks and pins kept in a go-datastore
//   - NewMemoryNode: in-memory, lost on exit
//   - OpenBadgerNode: persisted in a Badger repository
//   - CIDs are CIDv1, raw codec, SHA2-256
//
// # Usage
//
//	node, err := storage.NewIPFSNode("http://localhost:5001", 30*time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cid, err := node.Add(ctx, []byte(`{"name":"Acme"}`))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := node.Pin(ctx, cid); err != nil {
//		log.Fatal(err)
//	}
//
//	content, err := node.Cat(ctx, storage.IpfsPrefix+cid)
//
// # Locators
//
// Content may be referenced by a bare CID or by a locator with a scheme:
//
//	ipfs://bafkrei...
//	filecoin://bafkrei...
//	ipfs://bafkrei.../metadata.json
//
// FormatHash reduces any of these to the bare CID; ParseCID also decodes it.
//
// CIDv0 (legacy):
//   - Starts with "Qm"
//   - 46 characters
//   - Example: QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG
//
// CIDv1 (modern):
//   - Starts with "bafy" (dag-pb) or "bafk" (raw) in base32
//   - Variable length
//
// # Integrity
//
// For raw-codec CIDs the identifier is the hash of the bytes themselves, so
// Cat re-hashes what it received and fails with ErrIntegrity on mismatch.
// dag-pb CIDs address an encoded UnixFS node and are not re-hashed.
//
// # Errors
//
//   - ErrNotFound: Cat on content the backend does not hold
//   - ErrNotPinnable: Pin on content the backend does not hold
//   - ErrIntegrity: fetched bytes do not match the CID
//
// Errors from the Kubo RPC client are wrapped with the command that failed.
package storage
