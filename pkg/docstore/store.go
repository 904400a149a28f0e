package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/singnet/snet-docstore-go/pkg/connection"
	"github.com/singnet/snet-docstore-go/pkg/retry"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrDuplicateID is returned by Create when the collection already holds the id.
var ErrDuplicateID = errors.New("record id already exists")

// Connection is the subset of *connection.Manager the store needs.
type Connection interface {
	Connected() bool
	Add(ctx context.Context, data []byte) (string, error)
	Pin(ctx context.Context, cid string) error
	Cat(ctx context.Context, cid string) ([]byte, error)
	CatLocal(ctx context.Context, cid string) ([]byte, error)
}

// Options configures a Store.
type Options struct {
	// Retry applies to every add and pin. Zero fields take retry.Default values.
	Retry retry.Policy
	// Now overrides the clock. Default time.Now in UTC.
	Now func() time.Time
	// NewID overrides id generation. Default random UUIDv4.
	NewID func() string
}

// Store persists records to a content-addressed backend and indexes them in
// memory, one index per collection.
type Store struct {
	conn  Connection
	retry retry.Policy
	now   func() time.Time
	newID func() string

	mu          sync.RWMutex
	collections map[string]*collectionIndex

	writes keyedMutex
}

// New returns an empty store writing through conn.
func New(conn Connection, opts Options) *Store {
	s := &Store{
		conn:        conn,
		retry:       opts.Retry.WithDefaults(),
		now:         opts.Now,
		newID:       opts.NewID,
		collections: make(map[string]*collectionIndex),
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// writeKey names the per-record write lock. The separator keeps ("ab", "c")
// and ("a", "bc") apart.
func writeKey(collection, id string) string {
	return collection + "\x00" + id
}

// Create stores a new record. The id is taken from data["id"] when it is a
// non-empty string and generated otherwise. The record is added and pinned
// before it becomes visible in the index.
//
// Data that structpb cannot represent is rejected before any network call, as
// is a disconnected store. An id already present in the collection yields
// ErrDuplicateID. Concurrent creates of the same id are serialized, so exactly
// one of them succeeds.
func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (*Record, error) {
	if collection == "" {
		return nil, errors.New("collection name is required")
	}
	fields, err := structpb.NewStruct(data)
	if err != nil {
		return nil, fmt.Errorf("unsupported record data: %w", err)
	}
	if !s.conn.Connected() {
		return nil, connection.NotConnected()
	}

	id, _ := data["id"].(string)
	if id == "" {
		id = s.newID()
	}

	unlock := s.writes.lock(writeKey(collection, id))
	defer unlock()

	if s.exists(collection, id) {
		return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateID, collection, id)
	}

	now := s.now()
	rec := &Record{
		ID:         id,
		Collection: collection,
		Data:       fields,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rec.CID, err = s.persistRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.index(collection).put(rec)
	s.mu.Unlock()

	zap.L().Debug("record created", zap.String("collection", collection), zap.String("id", id), zap.String("cid", rec.CID))
	return rec.Clone(), nil
}

// FindByID returns the record or nil. It never touches the network.
func (s *Store) FindByID(collection, id string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.collections[collection]
	if !ok {
		return nil
	}
	rec, ok := ci.get(id)
	if !ok {
		return nil
	}
	return rec.Clone()
}

// FindMany returns the records matching every filter entry, in insertion
// order. An empty filter returns the whole collection.
func (s *Store) FindMany(collection string, filter Filter) []*Record {
	matchers, err := filter.compile()
	if err != nil {
		zap.L().Debug("filter can never match", zap.String("collection", collection), zap.Error(err))
		return []*Record{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Record{}
	ci, ok := s.collections[collection]
	if !ok {
		return out
	}
	ci.each(func(r *Record) bool {
		for _, m := range matchers {
			if !m(r) {
				return true
			}
		}
		out = append(out, r.Clone())
		return true
	})
	return out
}

// Update merges partial over the record's data (given keys replace, other keys
// stay), stores the new version and replaces the index entry. A missing id
// yields (nil, nil). The previous version remains on the network.
//
// CreatedAt and the record's position in the collection are kept. UpdatedAt
// always moves forward, even when the clock has not. If persisting fails the
// index still holds the previous version.
func (s *Store) Update(ctx context.Context, collection, id string, partial map[string]any) (*Record, error) {
	patch, err := structpb.NewStruct(partial)
	if err != nil {
		return nil, fmt.Errorf("unsupported record data: %w", err)
	}

	unlock := s.writes.lock(writeKey(collection, id))
	defer unlock()

	s.mu.RLock()
	var current *Record
	if ci, ok := s.collections[collection]; ok {
		current, _ = ci.get(id)
	}
	s.mu.RUnlock()
	if current == nil {
		return nil, nil
	}
	if !s.conn.Connected() {
		return nil, connection.NotConnected()
	}

	next := current.Clone()
	if next.Data == nil {
		next.Data = &structpb.Struct{}
	}
	if next.Data.Fields == nil {
		next.Data.Fields = map[string]*structpb.Value{}
	}
	for k, v := range patch.Fields {
		next.Data.Fields[k] = proto.Clone(v).(*structpb.Value)
	}
	next.UpdatedAt = s.now()
	if !next.UpdatedAt.After(current.UpdatedAt) {
		next.UpdatedAt = current.UpdatedAt.Add(time.Nanosecond)
	}
	if next.CID, err = s.persistRecord(ctx, next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.index(collection).put(next)
	s.mu.Unlock()

	zap.L().Debug("record updated", zap.String("collection", collection), zap.String("id", id), zap.String("cid", next.CID))
	return next.Clone(), nil
}

// Delete drops the record from the index and reports whether it existed.
// Stored content is immutable and stays pinned.
func (s *Store) Delete(collection, id string) bool {
	unlock := s.writes.lock(writeKey(collection, id))
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	ci, ok := s.collections[collection]
	if !ok {
		return false
	}
	return ci.remove(id)
}

// Collections lists the collection names that hold at least one record.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name, ci := range s.collections {
		if ci.len() > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of records in collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ci, ok := s.collections[collection]; ok {
		return ci.len()
	}
	return 0
}

// ReadContent reads raw content by CID from the connected backend with a
// single attempt. Only content the backend already holds is returned; a
// remote node is asked to stay offline, so a miss fails fast instead of
// waiting on a network search.
func (s *Store) ReadContent(ctx context.Context, cid string) ([]byte, error) {
	if !s.conn.Connected() {
		return nil, connection.NotConnected()
	}
	return s.conn.CatLocal(ctx, cid)
}

// exists reports whether the index holds id in collection. Create calls it
// with the record's write lock held, so no other Create for the same id can
// slip in between the check and the insert.
func (s *Store) exists(collection, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.collections[collection]
	if !ok {
		return false
	}
	_, ok = ci.get(id)
	return ok
}

// index returns the collection's index, creating it. Callers hold s.mu.
func (s *Store) index(collection string) *collectionIndex {
	ci, ok := s.collections[collection]
	if !ok {
		ci = newCollectionIndex()
		s.collections[collection] = ci
	}
	return ci
}

// persistRecord serializes rec without its CID and persists the bytes. The
// returned CID is the identifier of exactly those bytes, so two records with
// equal fields and timestamps always share a CID.
func (s *Store) persistRecord(ctx context.Context, rec *Record) (string, error) {
	payload, err := rec.payload()
	if err != nil {
		return "", err
	}
	return s.persist(ctx, payload)
}

// persist adds and then pins payload, each step under the retry policy.
//
// The two steps retry independently: a pin failure does not add the payload
// again. When either step runs out of attempts the *retry.OperationError is
// returned unchanged and the index is left alone. Content that was added but
// never pinned stays on the backend unreferenced.
func (s *Store) persist(ctx context.Context, payload []byte) (string, error) {
	cid, err := retry.Do(ctx, s.retry, "ipfs add", func(ctx context.Context) (string, error) {
		return s.conn.Add(ctx, payload)
	})
	if err != nil {
		return "", err
	}
	_, err = retry.Do(ctx, s.retry, "ipfs pin", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.conn.Pin(ctx, cid)
	})
	if err != nil {
		return "", err
	}
	return cid, nil
}
