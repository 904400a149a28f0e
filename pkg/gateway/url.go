package gateway

import (
	"net/url"
	"strings"

	"github.com/singnet/snet-docstore-go/pkg/storage"
)

// isHTTPURL reports whether s is an absolute http or https URL with a host.
func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ExtractContentID returns the bare content identifier of locator. It accepts
// ipfs:// and filecoin:// locators, bare identifiers with or without a
// sub-path, and gateway URLs in path (https://host/ipfs/<cid>) or subdomain
// (https://<cid>.ipfs.host) form. The result is not validated.
func ExtractContentID(locator string) string {
	id, _ := splitLocator(locator)
	return id
}

// splitLocator separates the content identifier from the sub-path that
// follows it ("/dir/file.json", or "" when there is none).
//
// Gateway URLs are reduced to their path form first: for a path gateway the
// part from "/ipfs/" on is kept, and for a subdomain gateway the first host
// label is the identifier and the URL path is the sub-path. Any other http(s)
// URL yields two empty strings. Query strings and fragments never become part
// of the sub-path. The identifier is not validated; callers check it with
// storage.IsCID.
func splitLocator(locator string) (id, rest string) {
	locator = strings.TrimSpace(locator)
	if isHTTPURL(locator) {
		u, err := url.Parse(locator)
		if err != nil {
			return "", ""
		}
		if i := strings.Index(u.Path, "/ipfs/"); i >= 0 {
			locator = u.Path[i:]
		} else if label, _, ok := strings.Cut(u.Host, ".ipfs."); ok {
			return label, u.Path
		} else {
			return "", ""
		}
	}

	id = storage.FormatHash(locator)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(locator, storage.IpfsPrefix), storage.FilecoinPrefix)
	trimmed = strings.TrimLeft(strings.TrimPrefix(trimmed, "/ipfs/"), "/")
	rest = strings.TrimPrefix(trimmed, id)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return id, rest
}

// joinGateway builds <gateway><id><rest>, adding the slash the gateway base
// may lack.
func joinGateway(gateway, id, rest string) string {
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return gateway + id + rest
}

// ToFetchableURL maps locator to a URL on gateway. An empty gateway means the
// first configured one. Values already in http(s) form are returned
// unchanged. A locator whose identifier is not a valid CID yields "". Results
// are memoized.
func (r *Resolver) ToFetchableURL(locator, gateway string) string {
	if gateway == "" && len(r.gateways) > 0 {
		gateway = r.gateways[0]
	}
	key := gateway + "\x00" + locator
	if u, ok := r.urls.Get(key); ok {
		return u
	}
	u := toFetchableURL(locator, gateway)
	r.urls.Add(key, u)
	return u
}

// toFetchableURL is the uncached form of ToFetchableURL.
func toFetchableURL(locator, gateway string) string {
	locator = strings.TrimSpace(locator)
	if isHTTPURL(locator) {
		return locator
	}
	id, rest := splitLocator(locator)
	if !storage.IsCID(id) || gateway == "" {
		return ""
	}
	return joinGateway(gateway, id, rest)
}
