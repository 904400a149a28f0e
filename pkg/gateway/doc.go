// Package gateway resolves content locators to URLs and fetched content.
//
// A locator is either a scheme-prefixed reference (ipfs://<cid>,
// filecoin://<cid>, optionally followed by a sub-path), a bare CID, or a
// gateway URL. ToFetchableURL maps it onto a gateway base URL without any
// network access; FetchContent retrieves it.
//
// # Fetch order
//
//  1. Content cache (LRU, 24h TTL, 500 entries by default).
//  2. The local source, usually the document store's backend. Failures are
//     logged at debug level and never returned.
//  3. Each configured gateway in fixed order, with a bounded timeout and
//     redirect count. The response is classified by Content-Type as JSON,
//     text or binary. Raw-codec CIDs are re-hashed and mismatching bytes
//     rejected.
//
// The first success fills the content cache and, for gateway hits, the
// resolution cache (30min TTL, 1000 entries). When every gateway fails the
// error is a *FetchExhaustedError holding one cause per gateway.
//
// RankGateways orders gateways by recent successes. It is advisory and never
// changes the configured fallback order.
//
//	r, err := gateway.New(gateway.Options{Local: store})
//	if err != nil {
//		return err
//	}
//	c, err := r.FetchContent(ctx, "ipfs://bafkrei...", gateway.FetchOptions{})
package gateway
