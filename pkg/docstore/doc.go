// Package docstore is a schemaless document store over content-addressed
// storage.
//
// Every Create and Update serializes the record to JSON, adds the bytes to
// the connected backend and pins them, retrying each step per retry.Policy.
// Only after both steps succeed does the new version enter the in-memory
// index. Reads (FindByID, FindMany) are served from that index and never
// touch the network.
//
//	store := docstore.New(manager, docstore.Options{Retry: retry.Default})
//	org, err := store.Create(ctx, "orgs", map[string]any{"name": "Acme"})
//	if err != nil {
//		return err
//	}
//	same := store.FindMany("orgs", docstore.Filter{"name": "Acme"})
//
// # Versions
//
// Stored content is immutable. Update writes a new version with a new CID;
// Delete only drops the index entry. Earlier versions stay pinned.
//
// # Index lifetime
//
// The index lives in process memory. Checkpoint writes a manifest of the
// current index to the backend and returns its CID; Restore rebuilds the
// index from such a manifest.
package docstore
