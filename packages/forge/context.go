package forge

import (
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// DefaultMethod is the method of a fresh Context.
const DefaultMethod = "get"

// Context accumulates a request while fragments are applied. A Context
// belongs to a single resolution and is not safe for concurrent use.
type Context struct {
	URL    *url.URL
	Method string
	Header http.Header
	Params PairList
	Body   Payload

	origin *url.URL
}

// NewContext returns an empty Context anchored at the origin of base. Absolute
// path references are resolved against that origin. A nil base yields a
// Context whose location is the bare path "/".
func NewContext(base *url.URL) *Context {
	origin := &url.URL{}
	if base != nil {
		origin = &url.URL{Scheme: base.Scheme, Host: base.Host}
	}
	start := *origin
	start.Path = "/"

	return &Context{
		URL:    &start,
		Method: DefaultMethod,
		Header: make(http.Header),
		origin: origin,
	}
}

// Origin returns the origin absolute path references resolve against.
func (c *Context) Origin() *url.URL {
	return cloneURL(c.origin)
}

// SetMethod replaces the method unless method is empty.
func (c *Context) SetMethod(method string) {
	if method != "" {
		c.Method = method
	}
}

var (
	// RFC 3986 4.3: an absolute URI begins with a scheme.
	beginsWithScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
	// RFC 3986 4.2: an absolute-path reference begins with a single slash.
	beginsWithSlash = regexp.MustCompile(`^[\\/]`)
)

// ApplyURL merges a url field into the context. An absolute URL or an
// absolute-path reference replaces the location after moving its query
// entries into Params; a relative reference is appended to the escaped path,
// so escapes in either part survive.
func (c *Context) ApplyURL(loc Location) error {
	switch l := loc.(type) {
	case absolute:
		if l.u == nil {
			return nil
		}
		c.replaceURL(cloneURL(l.u))
	case Ref:
		ref := string(l)
		switch {
		case ref == "":
		case beginsWithScheme.MatchString(ref):
			u, err := url.Parse(ref)
			if err != nil {
				return err
			}
			c.replaceURL(u)
		case beginsWithSlash.MatchString(ref):
			u, err := url.Parse(joinPaths(c.origin.String(), ref))
			if err != nil {
				return err
			}
			c.replaceURL(u)
		default:
			if c.URL == nil {
				c.URL = &url.URL{}
			}
			joined := joinPaths(c.URL.EscapedPath(), escapeRef(ref))
			p, err := url.PathUnescape(joined)
			if err != nil {
				return err
			}
			c.URL.Path, c.URL.RawPath = p, joined
		}
	}
	return nil
}

func (c *Context) replaceURL(u *url.URL) {
	if c.URL != nil {
		c.Params = append(c.Params, ParseQuery(c.URL.RawQuery)...)
	}
	c.URL = u
}

// escapeRef returns ref unchanged when it is already a valid escaped path
// and percent-encodes it otherwise, so "a%20b" keeps its escape while a
// stray "%" becomes "%25".
func escapeRef(ref string) string {
	if _, err := url.PathUnescape(ref); err == nil {
		return ref
	}
	return (&url.URL{Path: ref}).EscapedPath()
}

// joinPaths joins two path segments with exactly one separator.
func joinPaths(a, b string) string {
	return strings.TrimRight(a, `/\`) + "/" + strings.TrimLeft(b, `/\`)
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// AppendHeaders adds every entry of p without discarding existing values.
func (c *Context) AppendHeaders(p Pairs) {
	if p == nil {
		return
	}
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	for _, pair := range p.Pairs() {
		c.Header.Add(pair.Key, pair.Value)
	}
}

// AppendParams adds every entry of p to the query parameters.
func (c *Context) AppendParams(p Pairs) {
	if p == nil {
		return
	}
	c.Params = append(c.Params, p.Pairs()...)
}

// MergeBody merges a body field into the context:
//
//	incoming \ current | none         | Object              | *Form
//	*Form              | copy of form | object -> form, add | add fields
//	Object             | copy         | shallow merge       | add fields
//
// Once the body is a form it stays a form.
func (c *Context) MergeBody(p Payload) {
	switch in := p.(type) {
	case *Form:
		if in == nil {
			return
		}
		switch cur := c.body().(type) {
		case *Form:
			cur.AppendForm(in)
		case Object:
			form := FormOf(cur)
			form.AppendForm(in)
			c.Body = form
		default:
			form := NewForm()
			form.AppendForm(in)
			c.Body = form
		}
	case Object:
		if in == nil {
			return
		}
		switch cur := c.body().(type) {
		case *Form:
			cur.AppendObject(in)
		case Object:
			maps.Copy(cur, in)
		default:
			c.Body = maps.Clone(in)
		}
	}
}

// body returns the current body, mapping typed nils to nil.
func (c *Context) body() Payload {
	switch b := c.Body.(type) {
	case *Form:
		if b == nil {
			return nil
		}
	case Object:
		if b == nil {
			return nil
		}
	}
	return c.Body
}
