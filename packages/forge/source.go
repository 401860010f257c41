package forge

// Source is a node of a composition tree: a *Fragment leaf, a Sources list
// or a *Builder. Builders are read when the tree is walked, so nesting a
// builder shares it by reference.
type Source[A any] interface {
	walk(w *walker[A]) error
}

// Sources is an ordered list of sources.
type Sources[A any] []Source[A]

type walker[A any] struct {
	args   A
	ctx    *Context
	active map[*Builder[A]]struct{}
}

// Flatten applies every fragment reachable from src to ctx, depth first and
// left to right, so later fragments override earlier ones. It stops at the
// first error. A builder that contains itself yields ErrCycle.
func Flatten[A any](src Source[A], args A, ctx *Context) (*Context, error) {
	if src == nil {
		return ctx, nil
	}
	w := &walker[A]{
		args:   args,
		ctx:    ctx,
		active: make(map[*Builder[A]]struct{}),
	}
	return ctx, src.walk(w)
}

// Fragments lists the fragments reachable from src in application order.
func Fragments[A any](src Source[A]) ([]*Fragment[A], error) {
	var out []*Fragment[A]
	err := visit(src, make(map[*Builder[A]]struct{}), func(f *Fragment[A]) error {
		out = append(out, f)
		return nil
	})
	return out, err
}

func visit[A any](src Source[A], active map[*Builder[A]]struct{}, fn func(*Fragment[A]) error) error {
	switch s := src.(type) {
	case nil:
		return nil
	case *Fragment[A]:
		if s == nil {
			return nil
		}
		return fn(s)
	case Sources[A]:
		for _, child := range s {
			if err := visit(child, active, fn); err != nil {
				return err
			}
		}
		return nil
	case *Builder[A]:
		if s == nil {
			return nil
		}
		if _, ok := active[s]; ok {
			return ErrCycle
		}
		active[s] = struct{}{}
		defer delete(active, s)
		return visit(Sources[A](s.Sources()), active, fn)
	default:
		return nil
	}
}

func (f *Fragment[A]) walk(w *walker[A]) error {
	return visit[A](f, w.active, w.apply)
}

func (s Sources[A]) walk(w *walker[A]) error {
	return visit[A](s, w.active, w.apply)
}

func (b *Builder[A]) walk(w *walker[A]) error {
	return visit[A](b, w.active, w.apply)
}

func (w *walker[A]) apply(f *Fragment[A]) error {
	return Apply(w.ctx, f, w.args)
}
