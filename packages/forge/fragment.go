package forge

import (
	"runtime"
	"sync"
	"weak"
)

// Fragment is a partial request description. Every field is optional.
//
// Fragments are normalized once, on first use, and the result is cached by
// the fragment's identity. Changing a field of a fragment after it has been
// used has no effect on later requests: build a new fragment instead.
type Fragment[A any] struct {
	URL     Value[A, Location]
	Method  Value[A, string]
	Headers Value[A, Pairs]
	Params  Value[A, Pairs]
	Body    Value[A, Payload]
}

// Normalized is a fragment whose fields are all functions of the arguments.
type Normalized[A any] struct {
	URL     func(A) Location
	Method  func(A) string
	Headers func(A) Pairs
	Params  func(A) Pairs
	Body    func(A) Payload
}

// normalized maps weak.Pointer[Fragment[A]] to *Normalized[A]. Entries are
// dropped when their fragment is garbage collected.
var normalized sync.Map

// Normalize returns the cached normalized form of f, computing it on first use.
// A nil fragment normalizes to functions that resolve every field as absent.
func Normalize[A any](f *Fragment[A]) *Normalized[A] {
	if f == nil {
		return normalize(&Fragment[A]{})
	}
	key := weak.Make(f)
	if n, ok := normalized.Load(key); ok {
		return n.(*Normalized[A])
	}

	n, loaded := normalized.LoadOrStore(key, normalize(f))
	if !loaded {
		runtime.AddCleanup(f, func(k weak.Pointer[Fragment[A]]) {
			normalized.Delete(k)
		}, key)
	}
	return n.(*Normalized[A])
}

func normalize[A any](f *Fragment[A]) *Normalized[A] {
	return &Normalized[A]{
		URL:     resolver(f.URL),
		Method:  resolver(f.Method),
		Headers: resolver(f.Headers),
		Params:  resolver(f.Params),
		Body:    resolver(f.Body),
	}
}

// Apply merges f into c with the given arguments. Fields are applied in the
// order method, url, headers, params, body; if the url cannot be parsed the
// method stays applied and the error is returned.
func Apply[A any](c *Context, f *Fragment[A], args A) error {
	if f == nil {
		return nil
	}
	n := Normalize(f)

	c.SetMethod(n.Method(args))
	if err := c.ApplyURL(n.URL(args)); err != nil {
		return err
	}
	c.AppendHeaders(n.Headers(args))
	c.AppendParams(n.Params(args))
	c.MergeBody(n.Body(args))
	return nil
}
