package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gaborage/courier/internal/reflection"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	bearerPrefix        = "Bearer "

	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeForm = "application/x-www-form-urlencoded; charset=utf-8"
)

// WireRequest is a fully resolved request. It is built once per logical
// request; every attempt sends its own clone.
type WireRequest struct {
	Method  string
	URL     *url.URL
	Header  http.Header
	Body    []byte
	Timeout time.Duration

	requiresAuth bool
	authToken    string
}

// Clone returns a deep copy safe to mutate in WillSend.
func (r *WireRequest) Clone() *WireRequest {
	c := *r
	u := *r.URL
	if r.URL.User != nil {
		user := *r.URL.User
		u.User = &user
	}
	c.URL = &u
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	c.Body = slices.Clone(r.Body)
	return &c
}

// RequiresAuth reports whether the request carries the stored bearer token.
func (r *WireRequest) RequiresAuth() bool { return r.requiresAuth }

func (r *WireRequest) setBearer(token string) {
	r.authToken = token
	if token == "" {
		r.Header.Del(headerAuthorization)
		return
	}
	r.Header.Set(headerAuthorization, bearerPrefix+token)
}

// HTTPRequest converts r into a *http.Request bound to ctx.
func (r *WireRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	return req, nil
}

// BuildRequest resolves target against the client configuration. Headers
// are layered as defaults, cache policy, encoding content type, target
// headers, and finally Authorization, which target headers cannot override.
func (c *Client) BuildRequest(target Target) (*WireRequest, error) {
	return c.buildRequest(target, true)
}

func (c *Client) buildRequest(target Target, encodeParams bool) (*WireRequest, error) {
	u, err := c.resolve(target.Path)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(target.Method))
	if method == "" {
		method = http.MethodGet
	}
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	policy := target.CachePolicy
	if policy == CachePolicyDefault {
		policy = c.config.CachePolicy
	}

	req := &WireRequest{
		Method:       method,
		URL:          u,
		Header:       http.Header{},
		Timeout:      timeout,
		requiresAuth: target.RequiresAuth,
	}

	for k, v := range c.config.DefaultHeaders {
		req.Header.Set(k, v)
	}
	policy.apply(req.Header)

	if encodeParams && target.Parameters != nil {
		if err := encodeParameters(req, target.Encoding, target.Parameters); err != nil {
			return nil, err
		}
	}

	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	if target.RequiresAuth && c.tokens != nil {
		if token, ok := c.tokens.Read(); ok {
			req.setBearer(token)
		}
	}
	return req, nil
}

func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, NewInvalidURLError(path, err)
	}
	u := c.config.BaseURL.ResolveReference(ref)
	if !u.IsAbs() || u.Host == "" {
		return nil, NewInvalidURLError(path, nil)
	}
	return u, nil
}

func encodeParameters(req *WireRequest, enc Encoding, params map[string]any) error {
	switch enc {
	case EncodingJSON:
		body, err := json.Marshal(params)
		if err != nil {
			return NewEncodingError("parameters are not a valid JSON object", err)
		}
		req.Body = body
		req.Header.Set(headerContentType, contentTypeJSON)
	case EncodingQuery:
		q := req.URL.Query()
		addValues(q, params)
		req.URL.RawQuery = q.Encode()
	case EncodingForm:
		form := url.Values{}
		addValues(form, params)
		req.Body = []byte(form.Encode())
		req.Header.Set(headerContentType, contentTypeForm)
	default:
		return NewEncodingError("unsupported encoding "+enc.String(), nil)
	}
	return nil
}

func addValues(dst url.Values, params map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(params)) {
		for _, v := range reflection.Flatten(params[k]) {
			dst.Add(k, v)
		}
	}
}
