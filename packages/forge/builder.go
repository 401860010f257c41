package forge

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"
)

// Builder is a live, ordered and deduplicated collection of sources. It is a
// Source itself: nesting a builder inside another shares it by reference, so
// the outer builder always sees the inner one's current contents.
//
// Adding sources while a request is being resolved is safe, but whether the
// resolution observes the new sources is unspecified.
type Builder[A any] struct {
	mu        sync.RWMutex
	sources   []Source[A]
	seen      map[any]struct{}
	origin    *url.URL
	transport Transport
}

// Using returns a builder holding sources, in order.
func Using[A any](sources ...Source[A]) *Builder[A] {
	return new(Builder[A]).Use(sources...)
}

// Use appends sources. Fragments and builders already present are skipped;
// Sources lists have no identity and are always appended.
func (b *Builder[A]) Use(sources ...Source[A]) *Builder[A] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.seen == nil {
		b.seen = make(map[any]struct{})
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		if key, ok := identity(src); ok {
			if _, dup := b.seen[key]; dup {
				continue
			}
			b.seen[key] = struct{}{}
		}
		b.sources = append(b.sources, src)
	}
	return b
}

// AddConfig appends fragments, skipping those already present.
func (b *Builder[A]) AddConfig(fragments ...*Fragment[A]) *Builder[A] {
	sources := make([]Source[A], 0, len(fragments))
	for _, f := range fragments {
		if f != nil {
			sources = append(sources, f)
		}
	}
	return b.Use(sources...)
}

func identity[A any](src Source[A]) (any, bool) {
	switch s := src.(type) {
	case *Fragment[A]:
		return s, true
	case *Builder[A]:
		return s, true
	default:
		return nil, false
	}
}

// WithOrigin sets the origin absolute-path references resolve against.
func (b *Builder[A]) WithOrigin(origin *url.URL) *Builder[A] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.origin = cloneURL(origin)
	return b
}

// WithTransport sets the transport used by Request.
func (b *Builder[A]) WithTransport(t Transport) *Builder[A] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transport = t
	return b
}

// Sources returns a snapshot of the builder's direct sources.
func (b *Builder[A]) Sources() []Source[A] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.sources)
}

func (b *Builder[A]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sources)
}

// Context applies every source to a fresh Context.
func (b *Builder[A]) Context(args A) (*Context, error) {
	b.mu.RLock()
	origin := b.origin
	b.mu.RUnlock()

	return Flatten[A](b, args, NewContext(origin))
}

// Resolve composes and finalizes the request for args.
func (b *Builder[A]) Resolve(args A) (*Request, error) {
	c, err := b.Context(args)
	if err != nil {
		return nil, fmt.Errorf("composing request: %w", err)
	}
	return Finalize(c)
}

// Request resolves the request for args and sends it with the builder's
// transport. Transport errors are returned unchanged.
func (b *Builder[A]) Request(ctx context.Context, args A) (*Response, error) {
	b.mu.RLock()
	t := b.transport
	b.mu.RUnlock()

	if t == nil {
		return nil, ErrNoTransport
	}

	req, err := b.Resolve(args)
	if err != nil {
		return nil, err
	}
	return t.Do(ctx, req)
}
