// Package retry runs fallible operations with bounded exponential backoff.
//
// Every network-facing component of the store (connection health checks,
// persisting and pinning records, uploads) goes through Do so the backoff
// math lives in one place:
//
//	cid, err := retry.Do(ctx, retry.Default, "ipfs add", func(ctx context.Context) (string, error) {
//		return backend.Add(ctx, payload)
//	})
//	var opErr *retry.OperationError
//	if errors.As(err, &opErr) {
//		log.Printf("gave up after %d attempts: %v", opErr.Attempts, opErr.Err)
//	}
//
// Attempts are strictly sequential. Between attempts the caller waits on a
// timer that is abandoned as soon as the context is cancelled.
package retry
