package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/singnet/snet-docstore-go/pkg/connection"
	"github.com/singnet/snet-docstore-go/pkg/retry"
	"go.uber.org/zap"
)

const manifestVersion = 1

// manifest lists the CID of every indexed record, per collection, in
// insertion order.
type manifest struct {
	Version     int                 `json:"version"`
	CreatedAt   time.Time           `json:"createdAt"`
	Collections map[string][]string `json:"collections"`
}

// Checkpoint stores and pins a manifest of the current index and returns its
// CID. Passing that CID to Restore in a fresh process rebuilds the index.
func (s *Store) Checkpoint(ctx context.Context) (string, error) {
	if !s.conn.Connected() {
		return "", connection.NotConnected()
	}

	m := manifest{
		Version:     manifestVersion,
		CreatedAt:   s.now(),
		Collections: make(map[string][]string),
	}
	s.mu.RLock()
	for name, ci := range s.collections {
		if ci.len() == 0 {
			continue
		}
		cids := make([]string, 0, ci.len())
		ci.each(func(r *Record) bool {
			cids = append(cids, r.CID)
			return true
		})
		m.Collections[name] = cids
	}
	s.mu.RUnlock()

	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	cid, err := s.persist(ctx, payload)
	if err != nil {
		return "", err
	}
	zap.L().Info("index checkpoint stored", zap.String("cid", cid), zap.Int("collections", len(m.Collections)))
	return cid, nil
}

// Restore loads the manifest at manifestCID and indexes every record it
// lists. Records already in the index with the same id are replaced. It
// returns the number of records restored.
func (s *Store) Restore(ctx context.Context, manifestCID string) (int, error) {
	if !s.conn.Connected() {
		return 0, connection.NotConnected()
	}

	raw, err := s.cat(ctx, manifestCID)
	if err != nil {
		return 0, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, fmt.Errorf("decode manifest %s: %w", manifestCID, err)
	}
	if m.Version != manifestVersion {
		return 0, fmt.Errorf("unsupported manifest version %d", m.Version)
	}

	restored := 0
	for collection, cids := range m.Collections {
		for _, cid := range cids {
			raw, err := s.cat(ctx, cid)
			if err != nil {
				return restored, err
			}
			rec := &Record{}
			if err := json.Unmarshal(raw, rec); err != nil {
				return restored, fmt.Errorf("decode record %s: %w", cid, err)
			}
			if rec.Collection != collection {
				return restored, fmt.Errorf("record %s belongs to %q, manifest lists it under %q", cid, rec.Collection, collection)
			}
			rec.CID = cid

			unlock := s.writes.lock(writeKey(collection, rec.ID))
			s.mu.Lock()
			s.index(collection).put(rec)
			s.mu.Unlock()
			unlock()
			restored++
		}
	}
	zap.L().Info("index restored", zap.String("manifest", manifestCID), zap.Int("records", restored))
	return restored, nil
}

// cat reads cid under the store's retry policy. Unlike ReadContent it may let
// a remote node search the network, since a manifest or its records can live
// on other peers.
func (s *Store) cat(ctx context.Context, cid string) ([]byte, error) {
	return retry.Do(ctx, s.retry, "ipfs cat", func(ctx context.Context) ([]byte, error) {
		return s.conn.Cat(ctx, cid)
	})
}
