package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
)

const (
	// IpfsPrefix is the URI scheme prefix recognized for IPFS content.
	IpfsPrefix = "ipfs://"
	// FilecoinPrefix is the URI scheme prefix recognized for Filecoin/Lighthouse content.
	FilecoinPrefix = "filecoin://"
)

var (
	// ErrNotFound is returned by Cat when the backend does not hold the content.
	ErrNotFound = errors.New("content not found")
	// ErrNotPinnable is returned by Pin when the content is unknown to the backend.
	ErrNotPinnable = errors.New("content not available for pinning")
	// ErrIntegrity is returned when fetched bytes do not hash to the requested CID.
	ErrIntegrity = errors.New("content does not match its identifier")
)

// Backend is a content-addressed store able to add, pin and read blobs and to
// answer a cheap liveness probe.
type Backend interface {
	// Add stores data and returns its CID.
	Add(ctx context.Context, data []byte) (string, error)
	// Pin marks a CID as must-retain.
	Pin(ctx context.Context, cid string) error
	// Cat returns the bytes addressed by cid, fetching them from the
	// network when the backend is a networked node.
	Cat(ctx context.Context, cid string) ([]byte, error)
	// CatLocal returns the bytes addressed by cid only when the backend
	// already holds them. It never makes network requests.
	CatLocal(ctx context.Context, cid string) ([]byte, error)
	// Version is the liveness probe.
	Version(ctx context.Context) (string, error)
	// Close releases the backend's resources.
	Close() error
}

// FormatHash reduces a locator to its bare content identifier. It removes the
// ipfs:// and filecoin:// schemes, a leading /ipfs/ path segment, and anything
// after the identifier (sub-paths, query strings, fragments).
func FormatHash(hash string) string {
	hash = strings.TrimSpace(hash)
	hash = strings.TrimPrefix(hash, IpfsPrefix)
	hash = strings.TrimPrefix(hash, FilecoinPrefix)
	hash = strings.TrimPrefix(hash, "/ipfs/")
	hash = strings.TrimLeft(hash, "/")
	if i := strings.IndexAny(hash, "/?#"); i >= 0 {
		hash = hash[:i]
	}
	return hash
}

// ParseCID normalizes hash with FormatHash and decodes it.
func ParseCID(hash string) (cid.Cid, error) {
	c, err := cid.Decode(FormatHash(hash))
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid cid %q: %w", hash, err)
	}
	return c, nil
}

// IsCID reports whether s is a syntactically valid bare content identifier.
func IsCID(s string) bool {
	if s == "" || strings.ContainsAny(s, ":/?#") {
		return false
	}
	_, err := cid.Decode(s)
	return err == nil
}

// verifyContent re-hashes data for raw-codec CIDs, where the CID covers the
// bytes directly. Other codecs hash an encoded DAG node and are not checked.
func verifyContent(c cid.Cid, data []byte) error {
	prefix := c.Prefix()
	if prefix.Codec != cid.Raw {
		return nil
	}
	got, err := prefix.Sum(data)
	if err != nil {
		return fmt.Errorf("hash content: %w", err)
	}
	if !got.Equals(c) {
		return fmt.Errorf("%w: expected %s, got %s", ErrIntegrity, c, got)
	}
	return nil
}

// Verify checks bytes fetched from an untrusted source against hash. Only
// raw-codec CIDs can be checked; others pass.
func Verify(hash string, data []byte) error {
	c, err := ParseCID(hash)
	if err != nil {
		return err
	}
	return verifyContent(c, data)
}
