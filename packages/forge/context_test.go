package forge

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type args struct {
	ID   string
	Name string
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func resolve(t *testing.T, origin string, fragments ...*Fragment[args]) *Request {
	t.Helper()
	req, err := Using[args]().AddConfig(fragments...).WithOrigin(mustParse(t, origin)).Resolve(args{})
	require.NoError(t, err)
	return req
}

func TestApplyURL(t *testing.T) {
	tests := []struct {
		name     string
		refs     []string
		expected string
	}{
		{
			name:     "no url keeps origin",
			refs:     nil,
			expected: "http://h/",
		},
		{
			name:     "relative path appended to origin",
			refs:     []string{"path"},
			expected: "http://h/path",
		},
		{
			name:     "absolute path replaces relative path",
			refs:     []string{"a", "/b", "c"},
			expected: "http://h/b/c",
		},
		{
			name:     "backslash is an absolute path",
			refs:     []string{"a", `\b`},
			expected: "http://h/b",
		},
		{
			name:     "absolute url wins regardless of position",
			refs:     []string{"a", "b", "https://api.example.com/v1", "users"},
			expected: "https://api.example.com/v1/users",
		},
		{
			name:     "no double slash",
			refs:     []string{"a/", "/b/", "c/", "/d/", "e"},
			expected: "http://h/d/e",
		},
		{
			name:     "escaped relative reference is not escaped twice",
			refs:     []string{"users/john%20doe"},
			expected: "http://h/users/john%20doe",
		},
		{
			name:     "encoded slash survives a relative reference",
			refs:     []string{"http://x/a%2Fb", "c"},
			expected: "http://x/a%2Fb/c",
		},
		{
			name:     "unescaped space is encoded",
			refs:     []string{"users", "john doe"},
			expected: "http://h/users/john%20doe",
		},
		{
			name:     "stray percent is encoded",
			refs:     []string{"off", "100%"},
			expected: "http://h/off/100%25",
		},
		{
			name:     "empty reference is ignored",
			refs:     []string{"a", "", "b"},
			expected: "http://h/a/b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fragments []*Fragment[args]
			for _, ref := range tt.refs {
				fragments = append(fragments, &Fragment[args]{URL: URL[args](ref)})
			}
			req := resolve(t, "http://h/", fragments...)
			assert.Equal(t, tt.expected, req.URL.String())
		})
	}
}

func TestApplyURL_ParamsSurviveAbsoluteURL(t *testing.T) {
	req := resolve(t, "http://h/",
		&Fragment[args]{Params: Params[args](Object{"p": "1"})},
		&Fragment[args]{URL: URL[args]("http://other/")},
		&Fragment[args]{Params: Params[args](Object{"q": "2"})},
	)
	assert.Equal(t, "http://other/?p=1&q=2", req.URL.String())
}

func TestApplyURL_QueryOfReplacedURLIsKept(t *testing.T) {
	req := resolve(t, "http://h/",
		&Fragment[args]{URL: URL[args]("http://a/?x=1")},
		&Fragment[args]{URL: URL[args]("/b?y=2")},
		&Fragment[args]{Params: Params[args](Object{"z": "3"})},
	)
	assert.Equal(t, "http://h/b?y=2&x=1&z=3", req.URL.String())
}

func TestApplyURL_URLInstanceIsCloned(t *testing.T) {
	u := mustParse(t, "http://x/p")
	b := Using[args](&Fragment[args]{URL: URLOf[args](u)})

	req, err := b.Resolve(args{})
	require.NoError(t, err)
	req.URL.Path = "/changed"
	assert.Equal(t, "/p", u.Path)

	u.Path = "/later"
	req, err = b.Resolve(args{})
	require.NoError(t, err)
	assert.Equal(t, "http://x/later", req.URL.String())
}

func TestApplyURL_ParseErrorPropagates(t *testing.T) {
	ctx := NewContext(mustParse(t, "http://h/"))
	_, err := Flatten[args](Sources[args]{
		&Fragment[args]{Method: Method[args]("post"), URL: URL[args]("http://[::1")},
		&Fragment[args]{Method: Method[args]("put")},
	}, args{}, ctx)

	var urlErr *url.Error
	require.True(t, errors.As(err, &urlErr))
	assert.Equal(t, "post", ctx.Method, "fields applied before the failure stay applied")
}

func TestApplyURL_RelativeKeepsDecodedPath(t *testing.T) {
	ctx := NewContext(mustParse(t, "http://x/"))
	require.NoError(t, ctx.ApplyURL(Ref("http://x/a%2Fb")))
	require.NoError(t, ctx.ApplyURL(Ref("c%20d")))
	assert.Equal(t, "/a/b/c d", ctx.URL.Path)
	assert.Equal(t, "/a%2Fb/c%20d", ctx.URL.EscapedPath())
}

func TestSetMethod(t *testing.T) {
	req := resolve(t, "http://h/", &Fragment[args]{Method: Method[args]("post")}, &Fragment[args]{})
	assert.Equal(t, "POST", req.Method)

	req = resolve(t, "http://h/", &Fragment[args]{Method: Method[args]("post")}, &Fragment[args]{Method: Method[args]("delete")})
	assert.Equal(t, "DELETE", req.Method)

	req = resolve(t, "http://h/", &Fragment[args]{Method: Method[args]("")})
	assert.Equal(t, "GET", req.Method)
}

func TestAppendHeaders(t *testing.T) {
	req := resolve(t, "http://h/",
		&Fragment[args]{Headers: Headers[args](Object{"X-Tag": "a", "Accept": "text/plain"})},
		&Fragment[args]{Headers: Headers[args](Header{"X-Tag": {"b"}})},
		&Fragment[args]{Headers: Headers[args](PairList{{Key: "x-tag", Value: "c"}})},
	)
	assert.Equal(t, []string{"a", "b", "c"}, req.Header.Values("X-Tag"))
	assert.Equal(t, "text/plain", req.Header.Get("Accept"))
}

func TestAppendHeaders_SetIsOrderInsensitive(t *testing.T) {
	a := &Fragment[args]{Headers: Headers[args](Object{"X-A": "1", "X-Both": "a"})}
	b := &Fragment[args]{Headers: Headers[args](Object{"X-B": "2", "X-Both": "b"})}

	ab := resolve(t, "http://h/", a, b)
	ba := resolve(t, "http://h/", b, a)

	assert.ElementsMatch(t, ab.Header.Values("X-Both"), ba.Header.Values("X-Both"))
	assert.Equal(t, ab.Header.Get("X-A"), ba.Header.Get("X-A"))
	assert.Equal(t, ab.Header.Get("X-B"), ba.Header.Get("X-B"))
}

func TestAppendParams(t *testing.T) {
	req := resolve(t, "http://h/",
		&Fragment[args]{Params: Params[args](Object{"tag": []string{"a", "b"}, "page": 2})},
		&Fragment[args]{Params: Params[args](Query{"tag": {"c"}})},
		&Fragment[args]{Params: Params[args](PairList{{Key: "q", Value: "a b&c"}})},
	)
	assert.Equal(t, "page=2&tag=a&tag=b&tag=c&q=a+b%26c", req.URL.RawQuery)
}

func TestObjectPairs(t *testing.T) {
	o := Object{"tags": []any{"a", 2}, "none": nil, "n": 1.5}
	assert.Equal(t, []Pair{
		{Key: "n", Value: "1.5"},
		{Key: "none", Value: "null"},
		{Key: "tags", Value: "a"},
		{Key: "tags", Value: "2"},
	}, o.Pairs())
}

func TestFormAppendObject_Lists(t *testing.T) {
	file := &FormFile{Filename: "a.txt", Data: []byte("a")}
	form := NewForm()
	form.AppendObject(Object{"tags": []any{"x", "y"}, "docs": []any{file}})

	assert.Equal(t, []FormField{
		{Name: "docs", File: file},
		{Name: "tags", Value: "x"},
		{Name: "tags", Value: "y"},
	}, form.Fields())
}

func TestMergeBody(t *testing.T) {
	form := NewForm()
	form.Append("a", "1")

	t.Run("form then object", func(t *testing.T) {
		req := resolve(t, "http://h/",
			&Fragment[args]{Method: Method[args]("post"), Body: Body[args](form)},
			&Fragment[args]{Body: Body[args](Object{"x": 1})},
		)
		require.NotNil(t, req.Form)
		assert.Equal(t, "1", req.Form.Get("a"))
		assert.Equal(t, "1", req.Form.Get("x"))
		assert.Nil(t, req.Body)
	})

	t.Run("object then form", func(t *testing.T) {
		req := resolve(t, "http://h/",
			&Fragment[args]{Method: Method[args]("post"), Body: Body[args](Object{"x": 1})},
			&Fragment[args]{Body: Body[args](form)},
		)
		require.NotNil(t, req.Form)
		assert.Equal(t, "1", req.Form.Get("a"))
		assert.Equal(t, "1", req.Form.Get("x"))
	})

	t.Run("object over object, last write wins", func(t *testing.T) {
		first := Object{"a": 1, "b": 1}
		req := resolve(t, "http://h/",
			&Fragment[args]{Method: Method[args]("post"), Body: Body[args](first)},
			&Fragment[args]{Body: Body[args](Object{"b": 2})},
		)
		assert.JSONEq(t, `{"a":1,"b":2}`, string(req.Body))
		assert.Equal(t, 1, first["b"], "caller's object is not mutated")
	})

	t.Run("form fields with the same name are kept", func(t *testing.T) {
		other := NewForm()
		other.Append("a", "2")
		req := resolve(t, "http://h/",
			&Fragment[args]{Method: Method[args]("post"), Body: Body[args](form)},
			&Fragment[args]{Body: Body[args](other)},
		)
		assert.Equal(t, []string{"1", "2"}, req.Form.Values("a"))
		assert.Equal(t, 1, form.Len(), "caller's form is not mutated")
	})

	t.Run("nil body is ignored", func(t *testing.T) {
		var nilForm *Form
		ctx := NewContext(nil)
		ctx.MergeBody(nilForm)
		ctx.MergeBody(Object(nil))
		ctx.MergeBody(nil)
		assert.Nil(t, ctx.Body)
	})

	t.Run("file values become file parts", func(t *testing.T) {
		file := &FormFile{Filename: "a.txt", Data: []byte("hi")}
		req := resolve(t, "http://h/",
			&Fragment[args]{Method: Method[args]("post"), Body: Body[args](form)},
			&Fragment[args]{Body: Body[args](Object{"upload": file})},
		)
		fields := req.Form.Fields()
		require.Len(t, fields, 2)
		assert.Equal(t, "upload", fields[1].Name)
		assert.Same(t, file, fields[1].File)
	})
}

func TestJoinPaths(t *testing.T) {
	tests := []struct {
		a, b     string
		expected string
	}{
		{"/", "a", "/a"},
		{"/a/", "/b", "/a/b"},
		{"", "c", "/c"},
		{"/a", "b/", "/a/b/"},
		{"http://h", "/b", "http://h/b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, joinPaths(tt.a, tt.b), "joinPaths(%q, %q)", tt.a, tt.b)
	}
}

func TestParseQuery(t *testing.T) {
	l := ParseQuery("b=2&a=1&b=3&flag&bad=%zz")
	assert.Equal(t, PairList{
		{Key: "b", Value: "2"},
		{Key: "a", Value: "1"},
		{Key: "b", Value: "3"},
		{Key: "flag", Value: ""},
		{Key: "bad", Value: "%zz"},
	}, l)
	assert.Equal(t, []string{"2", "3"}, l.Values("b"))
	assert.Equal(t, "1", l.Get("a"))
}
