package forge

import "net/url"

// Value is one fragment field: either a literal or an expression of the
// request arguments. Use Literal, Func, Expression or the per-field helpers.
type Value[A, T any] interface {
	normalize() func(A) T
}

type literal[A, T any] struct {
	v T
}

func (l literal[A, T]) normalize() func(A) T {
	v := l.v
	return func(A) T { return v }
}

// Literal returns a field that always resolves to v.
func Literal[A, T any](v T) Value[A, T] {
	return literal[A, T]{v: v}
}

// Expression is a field computed from the request arguments each time the
// fragment is applied.
type Expression[A, T any] func(A) T

func (e Expression[A, T]) normalize() func(A) T {
	return e
}

// Func wraps fn as a dynamic field.
func Func[A, T any](fn func(A) T) Value[A, T] {
	return Expression[A, T](fn)
}

// URL returns a literal url field holding a reference string.
func URL[A any](ref string) Value[A, Location] {
	return Literal[A, Location](Ref(ref))
}

// URLOf returns a literal url field holding an absolute URL. The URL is
// cloned when the fragment is applied, so later changes made by the caller
// before that point are observed.
func URLOf[A any](u *url.URL) Value[A, Location] {
	return Literal[A, Location](Abs(u))
}

func Method[A any](method string) Value[A, string] {
	return Literal[A, string](method)
}

func Headers[A any](p Pairs) Value[A, Pairs] {
	return Literal[A, Pairs](p)
}

func Params[A any](p Pairs) Value[A, Pairs] {
	return Literal[A, Pairs](p)
}

func Body[A any](p Payload) Value[A, Payload] {
	return Literal[A, Payload](p)
}

func resolver[A, T any](v Value[A, T]) func(A) T {
	if v != nil {
		if fn := v.normalize(); fn != nil {
			return fn
		}
	}
	return func(A) T {
		var zero T
		return zero
	}
}
