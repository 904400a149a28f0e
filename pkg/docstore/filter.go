package docstore

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Filter selects records by exact field values. Every entry must match.
//
// Keys name either a top-level record field (id, collection, cid, createdAt,
// updatedAt) or a data field as "data.<name>". Dotted paths below data descend
// into nested maps ("data.address.city"). A key that is not a top-level field
// is looked up in data, so {"name": "Acme"} and {"data.name": "Acme"} match
// the same records.
type Filter map[string]any

type matcher func(*Record) bool

// compile turns f into matchers. It fails when a value has no structured
// representation (channels, funcs, arbitrary structs).
func (f Filter) compile() ([]matcher, error) {
	ms := make([]matcher, 0, len(f))
	for key, want := range f {
		m, err := compileEntry(key, want)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}

func compileEntry(key string, want any) (matcher, error) {
	switch key {
	case "id":
		return stringField(want, func(r *Record) string { return r.ID }), nil
	case "collection":
		return stringField(want, func(r *Record) string { return r.Collection }), nil
	case "cid":
		return stringField(want, func(r *Record) string { return r.CID }), nil
	case "createdAt":
		return timeField(want, func(r *Record) time.Time { return r.CreatedAt }), nil
	case "updatedAt":
		return timeField(want, func(r *Record) time.Time { return r.UpdatedAt }), nil
	}

	path := strings.TrimPrefix(key, "data.")
	wantVal, err := structpb.NewValue(want)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", key, err)
	}
	segments := strings.Split(path, ".")
	return func(r *Record) bool {
		got, ok := lookup(r.Data, segments)
		return ok && proto.Equal(got, wantVal)
	}, nil
}

func stringField(want any, get func(*Record) string) matcher {
	s, ok := want.(string)
	if !ok {
		return func(*Record) bool { return false }
	}
	return func(r *Record) bool { return get(r) == s }
}

func timeField(want any, get func(*Record) time.Time) matcher {
	var t time.Time
	switch v := want.(type) {
	case time.Time:
		t = v
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return func(*Record) bool { return false }
		}
		t = parsed
	default:
		return func(*Record) bool { return false }
	}
	return func(r *Record) bool { return get(r).Equal(t) }
}

func lookup(s *structpb.Struct, path []string) (*structpb.Value, bool) {
	if s == nil || len(path) == 0 {
		return nil, false
	}
	v, ok := s.Fields[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return v, true
	}
	return lookup(v.GetStructValue(), path[1:])
}
