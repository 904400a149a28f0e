package docstore

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Record is one document of a collection. Data is schemaless: any JSON-like
// value (null, bool, number, string, list, map) may appear under any field.
type Record struct {
	ID         string
	Collection string
	Data       *structpb.Struct
	// CID identifies the stored bytes of this version of the record.
	CID       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type recordJSON struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
	CID        string          `json:"cid,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// MarshalJSON encodes the record with data keys in sorted order, so equal
// records always produce identical bytes.
func (r *Record) MarshalJSON() ([]byte, error) {
	data := []byte("{}")
	if r.Data != nil {
		var err error
		if data, err = json.Marshal(r.Data.AsMap()); err != nil {
			return nil, fmt.Errorf("encode record data: %w", err)
		}
	}
	return json.Marshal(recordJSON{
		ID:         r.ID,
		Collection: r.Collection,
		Data:       data,
		CID:        r.CID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	})
}

// UnmarshalJSON decodes a record produced by MarshalJSON.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data := &structpb.Struct{}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := protojson.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("decode record data: %w", err)
		}
	}
	if data.Fields == nil {
		data.Fields = map[string]*structpb.Value{}
	}
	*r = Record{
		ID:         raw.ID,
		Collection: raw.Collection,
		Data:       data,
		CID:        raw.CID,
		CreatedAt:  raw.CreatedAt,
		UpdatedAt:  raw.UpdatedAt,
	}
	return nil
}

// payload is the serialized form written to the network. The CID is left out
// because it is derived from these bytes.
func (r *Record) payload() ([]byte, error) {
	cp := *r
	cp.CID = ""
	return json.Marshal(&cp)
}

// Get returns the plain Go value of a data field, or nil.
func (r *Record) Get(field string) any {
	if r.Data == nil {
		return nil
	}
	v, ok := r.Data.Fields[field]
	if !ok {
		return nil
	}
	return v.AsInterface()
}

// Map returns the data as plain Go values.
func (r *Record) Map() map[string]any {
	if r.Data == nil {
		return map[string]any{}
	}
	return r.Data.AsMap()
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Data != nil {
		cp.Data = proto.Clone(r.Data).(*structpb.Struct)
	}
	return &cp
}
