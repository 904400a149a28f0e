package gateway

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Kind is the decoded shape of fetched content.
type Kind int

const (
	KindBinary Kind = iota
	KindText
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	default:
		return "binary"
	}
}

// LocalGateway is the Gateway value of content served by the local source.
const LocalGateway = "local"

// Content is a fetched and classified payload. Cached values are shared
// between callers and must not be modified.
type Content struct {
	CID         string
	Kind        Kind
	ContentType string
	Raw         []byte
	// JSON holds the decoded document when Kind is KindJSON.
	JSON any
	// Gateway is the base URL that served the content, or LocalGateway.
	Gateway string
}

// Text returns the payload as a string.
func (c *Content) Text() string { return string(c.Raw) }

// classify decodes body according to the declared content type. Without a
// usable declaration the body is sniffed.
func classify(contentType string, body []byte) (Kind, any, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if contentType == "" || err != nil || mediaType == "application/octet-stream" {
		return sniff(body)
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			return KindJSON, nil, fmt.Errorf("decode %s body: %w", mediaType, err)
		}
		return KindJSON, doc, nil
	case strings.HasPrefix(mediaType, "text/"):
		return KindText, nil, nil
	default:
		return KindBinary, nil, nil
	}
}

// sniff guesses the kind of an untyped body. Valid JSON wins, then anything
// net/http detects as text. Everything else is binary. The error is always
// nil; it matches classify's signature.
func sniff(body []byte) (Kind, any, error) {
	var doc any
	if json.Valid(body) && json.Unmarshal(body, &doc) == nil {
		return KindJSON, doc, nil
	}
	if strings.HasPrefix(http.DetectContentType(body), "text/") {
		return KindText, nil, nil
	}
	return KindBinary, nil, nil
}
