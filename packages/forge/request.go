package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is a fully resolved request, ready for a Transport. At most one of
// Body and Form is set.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	// Body is the JSON-serialized object body, nil when there is none.
	Body []byte
	// Form is a multipart body. The transport encodes it and sets the
	// boundary-bearing Content-Type.
	Form *Form
}

func (r *Request) HasBody() bool {
	return r.Body != nil || r.Form != nil
}

// Transport sends a resolved request. Errors are returned to the caller
// unchanged.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Finalize turns c into a Request. The query parameters are appended to the
// URL, GET and HEAD requests lose their body, an object body is serialized as
// JSON and, unless a Content-Type header was set, marked application/json.
// The context is left unchanged.
func Finalize(c *Context) (*Request, error) {
	u := cloneURL(c.URL)
	if u == nil {
		u = &url.URL{Path: "/"}
	}
	if len(c.Params) > 0 {
		u.RawQuery = append(ParseQuery(u.RawQuery), c.Params...).Encode()
	}

	method := c.Method
	if method == "" {
		method = DefaultMethod
	}
	req := &Request{
		Method: strings.ToUpper(method),
		URL:    u,
		Header: c.Header.Clone(),
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return req, nil
	}

	switch body := c.body().(type) {
	case *Form:
		req.Form = body
	case Object:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		req.Body = data
		if len(req.Header.Values("Content-Type")) == 0 {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	return req, nil
}

// Do finalizes c and sends it with t. This is the entry point for callers
// that assemble a Context themselves.
func Do(ctx context.Context, t Transport, c *Context) (*Response, error) {
	if t == nil {
		return nil, ErrNoTransport
	}
	req, err := Finalize(c)
	if err != nil {
		return nil, err
	}
	return t.Do(ctx, req)
}
