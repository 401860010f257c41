package forge

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Location is the resolved value of a url field.
type Location interface {
	location()
}

// Ref is a url reference string. Whether it is absolute, an absolute path or
// relative is decided when it is applied.
type Ref string

func (Ref) location() {}

type absolute struct {
	u *url.URL
}

func (absolute) location() {}

// Abs wraps a URL instance. A URL instance always denotes an absolute location.
func Abs(u *url.URL) Location {
	return absolute{u: u}
}

// Pair is one key/value entry of a header or query multimap.
type Pair struct {
	Key   string
	Value string
}

// Pairs is implemented by everything headers and params accept.
type Pairs interface {
	Pairs() []Pair
}

// PairList is an ordered multimap. Entries keep insertion order, including
// duplicates under the same key.
type PairList []Pair

func (l PairList) Pairs() []Pair {
	return l
}

func (l *PairList) Add(key, value string) {
	*l = append(*l, Pair{Key: key, Value: value})
}

// Get returns the first value stored under key.
func (l PairList) Get(key string) string {
	for _, p := range l {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

func (l PairList) Values(key string) []string {
	var values []string
	for _, p := range l {
		if p.Key == key {
			values = append(values, p.Value)
		}
	}
	return values
}

// Encode serializes the entries as a query string in insertion order.
func (l PairList) Encode() string {
	var sb strings.Builder
	for i, p := range l {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// ParseQuery splits a raw query string into entries, preserving their order.
// Malformed escapes are kept verbatim.
func ParseQuery(rawQuery string) PairList {
	var l PairList
	for part := range strings.SplitSeq(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		l.Add(unescape(key), unescape(value))
	}
	return l
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// Header adapts an http.Header multimap. Keys are visited in sorted order.
type Header http.Header

func (h Header) Pairs() []Pair {
	return multimapPairs(h)
}

// Query adapts a url.Values multimap. Keys are visited in sorted order.
type Query url.Values

func (q Query) Pairs() []Pair {
	return multimapPairs(q)
}

func multimapPairs(m map[string][]string) []Pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var pairs []Pair
	for _, k := range keys {
		for _, v := range m[k] {
			pairs = append(pairs, Pair{Key: k, Value: v})
		}
	}
	return pairs
}

// Object is a plain object. As headers or params its values are coerced to
// strings: a []string or []any value yields one entry per element and nil
// yields "null". As a body it is merged key by key and serialized as JSON.
type Object map[string]any

func (o Object) Pairs() []Pair {
	var pairs []Pair
	o.each(func(key string, v any) {
		pairs = append(pairs, Pair{Key: key, Value: stringify(v)})
	})
	return pairs
}

// each calls fn for every entry in key order, once per element of a list
// value.
func (o Object) each(fn func(key string, v any)) {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		switch v := o[k].(type) {
		case []string:
			for _, s := range v {
				fn(k, s)
			}
		case []any:
			for _, e := range v {
				fn(k, e)
			}
		default:
			fn(k, v)
		}
	}
}

func (Object) payload() {}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Payload is the resolved value of a body field: an Object or a *Form.
type Payload interface {
	payload()
}
