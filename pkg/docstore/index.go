package docstore

// collectionIndex maps record ids to records and remembers insertion order.
// It is not safe for concurrent use; Store guards it.
type collectionIndex struct {
	order   []string
	records map[string]*Record
}

// newCollectionIndex returns an empty index.
func newCollectionIndex() *collectionIndex {
	return &collectionIndex{records: make(map[string]*Record)}
}

// get returns the stored record itself, not a copy. Store clones before
// handing records to callers.
func (ci *collectionIndex) get(id string) (*Record, bool) {
	r, ok := ci.records[id]
	return r, ok
}

// put inserts rec, or replaces an existing entry keeping its position.
func (ci *collectionIndex) put(rec *Record) {
	if _, ok := ci.records[rec.ID]; !ok {
		ci.order = append(ci.order, rec.ID)
	}
	ci.records[rec.ID] = rec
}

// remove deletes id and closes the gap in the order. It reports whether id
// was present.
func (ci *collectionIndex) remove(id string) bool {
	if _, ok := ci.records[id]; !ok {
		return false
	}
	delete(ci.records, id)
	for i, v := range ci.order {
		if v == id {
			ci.order = append(ci.order[:i], ci.order[i+1:]...)
			break
		}
	}
	return true
}

func (ci *collectionIndex) len() int { return len(ci.order) }

// each visits records in insertion order until fn returns false.
func (ci *collectionIndex) each(fn func(*Record) bool) {
	for _, id := range ci.order {
		if !fn(ci.records[id]) {
			return
		}
	}
}
