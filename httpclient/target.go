package httpclient

import (
	"net/http"
	"time"
)

// Encoding selects how Target.Parameters are serialized.
type Encoding int

const (
	// EncodingJSON sends parameters as a JSON object body. It is the zero value.
	EncodingJSON Encoding = iota
	// EncodingQuery merges parameters into the URL query.
	EncodingQuery
	// EncodingForm sends an application/x-www-form-urlencoded body.
	EncodingForm
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingQuery:
		return "query"
	case EncodingForm:
		return "form"
	default:
		return "unknown"
	}
}

// CachePolicy is expressed as request headers; the client keeps no cache.
type CachePolicy string

const (
	// CachePolicyDefault adds no headers and defers to HTTP semantics.
	CachePolicyDefault CachePolicy = ""
	// CachePolicyReload asks intermediaries to revalidate.
	CachePolicyReload CachePolicy = "reload"
	// CachePolicyNoStore asks intermediaries not to store the exchange.
	CachePolicyNoStore CachePolicy = "no-store"
	// CachePolicyPreferCache accepts stale cached responses.
	CachePolicyPreferCache CachePolicy = "prefer-cache"
)

// apply writes the headers for p into h.
func (p CachePolicy) apply(h http.Header) {
	switch p {
	case CachePolicyReload:
		h.Set("Cache-Control", "no-cache")
		h.Set("Pragma", "no-cache")
	case CachePolicyNoStore:
		h.Set("Cache-Control", "no-store")
	case CachePolicyPreferCache:
		h.Set("Cache-Control", "max-stale")
	}
}

// Target is the declarative description of one logical request. The client
// never mutates it.
type Target struct {
	// Path is resolved against the client's base URL (RFC 3986). An
	// absolute URL replaces the base entirely.
	Path string
	// Method defaults to GET.
	Method string
	// Parameters are encoded according to Encoding. Nil sends none.
	Parameters map[string]any
	// Headers override client defaults and cache policy headers.
	Headers  map[string]string
	Encoding Encoding
	// RequiresAuth attaches the stored bearer token.
	RequiresAuth bool
	// Timeout bounds each attempt. Zero uses the client default.
	Timeout time.Duration
	// CachePolicy overrides the client default when set.
	CachePolicy CachePolicy
}
