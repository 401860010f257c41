package definition

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/env"
	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

// compileFragment turns a declared fragment into a forge fragment. Fields
// without placeholders become literals, the others expressions over Args.
func compileFragment(spec FragmentSpec, r *env.Resolver) (*forge.Fragment[Args], error) {
	if spec.Body != nil && spec.Form != nil {
		return nil, errors.New("body and form are exclusive")
	}
	for i, field := range spec.Form {
		if field.Name == "" {
			return nil, fmt.Errorf("form[%d]: field has no name", i)
		}
		if field.File != "" && field.Value != "" {
			return nil, fmt.Errorf("form[%d]: field has both value and file", i)
		}
	}

	f := &forge.Fragment[Args]{}

	if spec.URL != "" {
		f.URL = compileURL(spec.URL, r)
	}
	if spec.Method != "" {
		f.Method = compileString(spec.Method, r)
	}
	if spec.Headers != nil {
		f.Headers = compileMultimap(spec.Headers, r, func(m map[string][]string) forge.Pairs {
			return forge.Header(http.Header(m))
		})
	}
	if spec.Params != nil {
		f.Params = compileMultimap(spec.Params, r, func(m map[string][]string) forge.Pairs {
			return forge.Query(url.Values(m))
		})
	}
	switch {
	case spec.Body != nil:
		f.Body = compileBody(spec.Body, r)
	case spec.Form != nil:
		f.Body = compileForm(spec.Form, r)
	}
	return f, nil
}

func compileURL(s string, r *env.Resolver) forge.Value[Args, forge.Location] {
	if !env.HasPlaceholders(s) {
		return forge.URL[Args](s)
	}
	return forge.Func(func(a Args) forge.Location {
		return forge.Ref(r.ResolveWith(s, a))
	})
}

func compileString(s string, r *env.Resolver) forge.Value[Args, string] {
	if !env.HasPlaceholders(s) {
		return forge.Literal[Args](s)
	}
	return forge.Func(func(a Args) string {
		return r.ResolveWith(s, a)
	})
}

func compileMultimap(m map[string]StringList, r *env.Resolver, wrap func(map[string][]string) forge.Pairs) forge.Value[Args, forge.Pairs] {
	plain := make(map[string][]string, len(m))
	dynamic := false
	for k, values := range m {
		plain[k] = slices.Clone(values)
		if env.HasPlaceholders(k) || slices.ContainsFunc(values, env.HasPlaceholders) {
			dynamic = true
		}
	}
	if !dynamic {
		return forge.Literal[Args](wrap(plain))
	}
	return forge.Func(func(a Args) forge.Pairs {
		resolved := make(map[string][]string, len(plain))
		for k, values := range plain {
			key := r.ResolveWith(k, a)
			for _, v := range values {
				resolved[key] = append(resolved[key], r.ResolveWith(v, a))
			}
		}
		return wrap(resolved)
	})
}

func compileBody(body map[string]any, r *env.Resolver) forge.Value[Args, forge.Payload] {
	if !hasPlaceholders(body) {
		return forge.Body[Args](forge.Object(body))
	}
	return forge.Func(func(a Args) forge.Payload {
		return forge.Object(resolveValue(body, r, a).(map[string]any))
	})
}

func compileForm(fields []FormFieldSpec, r *env.Resolver) forge.Value[Args, forge.Payload] {
	build := func(resolve func(string) string) *forge.Form {
		form := forge.NewForm()
		for _, field := range fields {
			if field.File != "" {
				form.AppendFile(resolve(field.Name), &forge.FormFile{
					Path:        resolve(field.File),
					ContentType: field.ContentType,
				})
				continue
			}
			form.Append(resolve(field.Name), resolve(field.Value))
		}
		return form
	}

	dynamic := slices.ContainsFunc(fields, func(f FormFieldSpec) bool {
		return env.HasPlaceholders(f.Name) || env.HasPlaceholders(f.Value) || env.HasPlaceholders(f.File)
	})
	if !dynamic {
		return forge.Body[Args](build(func(s string) string { return s }))
	}
	return forge.Func(func(a Args) forge.Payload {
		return build(func(s string) string { return r.ResolveWith(s, a) })
	})
}

// resolveValue copies v, interpolating every string it contains.
func resolveValue(v any, r *env.Resolver, a Args) any {
	switch t := v.(type) {
	case string:
		return r.ResolveWith(t, a)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = resolveValue(val, r, a)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = resolveValue(val, r, a)
		}
		return out
	default:
		return v
	}
}

func hasPlaceholders(v any) bool {
	switch t := v.(type) {
	case string:
		return env.HasPlaceholders(t)
	case map[string]any:
		for _, val := range t {
			if hasPlaceholders(val) {
				return true
			}
		}
	case []any:
		return slices.ContainsFunc(t, hasPlaceholders)
	}
	return false
}

// strings returns every string of the fragment that may hold placeholders.
func (s FragmentSpec) strings() []string {
	out := []string{s.URL, s.Method}
	for _, m := range []map[string]StringList{s.Headers, s.Params} {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			out = append(out, k)
			out = append(out, m[k]...)
		}
	}
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			for _, val := range t {
				walk(val)
			}
		case []any:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(s.Body)
	for _, f := range s.Form {
		out = append(out, f.Name, f.Value, f.File)
	}
	return out
}
