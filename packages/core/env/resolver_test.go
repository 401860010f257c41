package env

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverResolveWith(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]string
		args      map[string]string
		expected  string
	}{
		{
			name:     "no placeholders",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "stored variable",
			input:     "hello {{name}}",
			variables: map[string]string{"name": "world"},
			expected:  "hello world",
		},
		{
			name:     "argument",
			input:    "users/{{ id }}",
			args:     map[string]string{"id": "42"},
			expected: "users/42",
		},
		{
			name:      "argument shadows variable",
			input:     "{{greeting}} {{name}}!",
			variables: map[string]string{"greeting": "Hello", "name": "stored"},
			args:      map[string]string{"name": "World"},
			expected:  "Hello World!",
		},
		{
			name:     "function call",
			input:    `token {{base64("a:b")}}`,
			expected: "token YTpi",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
		{
			name:     "unknown function stays as-is",
			input:    "{{nope()}}",
			expected: "{{nope()}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			assert.Equal(t, tt.expected, r.ResolveWith(tt.input, tt.args))
		})
	}
}

func TestResolverEnvironment(t *testing.T) {
	t.Setenv("FETCHFORGE_TEST_HOST", "example.test")

	r := NewResolver()
	assert.Equal(t, "https://example.test", r.Resolve("https://{{$FETCHFORGE_TEST_HOST}}"))
	assert.Equal(t, "{{$FETCHFORGE_TEST_UNSET}}", r.Resolve("{{$FETCHFORGE_TEST_UNSET}}"))
}

func TestResolverWarnings(t *testing.T) {
	var warnings []string
	r := NewResolver()
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{random(x, 1)}}")

	if assert.Len(t, warnings, 2) {
		assert.Equal(t, "unresolved variable: missing", warnings[0])
		assert.Contains(t, warnings[1], "unresolved function call random(x, 1)")
	}
}

func TestResolverUnresolvedVariables(t *testing.T) {
	r := NewResolver()
	r.SetVariable("bar", "middle")

	assert.Nil(t, r.UnresolvedVariables("hello world", nil))
	assert.Equal(t,
		[]string{"foo", "baz"},
		r.UnresolvedVariables("{{foo}} and {{bar}} and {{baz}} {{$HOME}} {{uuid()}}", nil),
	)
	assert.Equal(t,
		[]string{"baz"},
		r.UnresolvedVariables("{{foo}} {{baz}}", map[string]string{"foo": "1"}),
	)
}

func TestResolverClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")

	clone := r.Clone()
	clone.SetVariable("a", "2")

	v, _ := r.GetVariable("a")
	assert.Equal(t, "1", v)
	v, _ = clone.GetVariable("a")
	assert.Equal(t, "2", v)
	assert.Same(t, r.Funcs(), clone.Funcs())
}

func TestHasPlaceholders(t *testing.T) {
	assert.True(t, HasPlaceholders("users/{{id}}"))
	assert.False(t, HasPlaceholders("users/{id}"))
	assert.False(t, HasPlaceholders("plain"))
}
