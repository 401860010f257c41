package definition

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/env"
	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

const sample = `
origin: https://api.example.com
fragments:
  api:
    url: /v1
    headers:
      Accept: application/json
  user:
    url: "users/{{id}}"
  rename:
    method: patch
    body:
      name: "{{name}}"
      tags: ["a", "{{tag}}"]
      active: true
  paged:
    params:
      page: 2
      tag: [x, y]
  avatar:
    method: post
    form:
      - { name: title, value: "{{title}}" }
      - { name: file, file: avatar.png, contentType: image/png }
requests:
  renameUser: [getUser, rename]
  getUser: [api, user]
  listUsers: [api, paged]
  upload: [api, avatar]
`

func resolveRequest(t *testing.T, def *Definition, name string, args Args) *forge.Request {
	t.Helper()
	b, err := def.Request(name)
	require.NoError(t, err)

	origin, err := url.Parse(def.Origin)
	require.NoError(t, err)

	req, err := forge.Using[Args](b).WithOrigin(origin).Resolve(args)
	require.NoError(t, err)
	return req
}

func TestParse(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", def.Origin)
	assert.Equal(t, []string{"getUser", "listUsers", "renameUser", "upload"}, def.RequestNames())
	assert.Equal(t, []string{"api", "avatar", "paged", "rename", "user"}, def.FragmentNames())
}

func TestRequest_Expressions(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	req := resolveRequest(t, def, "getUser", Args{"id": "42"})
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "https://api.example.com/v1/users/42", req.URL.String())
	assert.Equal(t, "application/json", req.Header.Get("Accept"))

	req = resolveRequest(t, def, "getUser", Args{"id": "7"})
	assert.Equal(t, "https://api.example.com/v1/users/7", req.URL.String())
}

func TestRequest_NestedRequest(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	req := resolveRequest(t, def, "renameUser", Args{"id": "42", "name": "ada", "tag": "admin"})
	assert.Equal(t, "PATCH", req.Method)
	assert.Equal(t, "https://api.example.com/v1/users/42", req.URL.String())
	assert.JSONEq(t, `{"name":"ada","tags":["a","admin"],"active":true}`, string(req.Body))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestRequest_Params(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	req := resolveRequest(t, def, "listUsers", nil)
	assert.Equal(t, "page=2&tag=x&tag=y", req.URL.RawQuery)
}

func TestRequest_Form(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	req := resolveRequest(t, def, "upload", Args{"title": "me"})
	require.NotNil(t, req.Form)
	assert.Equal(t, "me", req.Form.Get("title"))

	fields := req.Form.Fields()
	require.Len(t, fields, 2)
	require.NotNil(t, fields[1].File)
	assert.Equal(t, "avatar.png", fields[1].File.Path)
	assert.Equal(t, "image/png", fields[1].File.ContentType)
}

func TestRequest_StoredVariables(t *testing.T) {
	r := env.NewResolver()
	r.SetVariable("id", "stored")

	def, err := Parse([]byte(sample), r)
	require.NoError(t, err)

	req := resolveRequest(t, def, "getUser", nil)
	assert.Equal(t, "/v1/users/stored", req.URL.Path)

	req = resolveRequest(t, def, "getUser", Args{"id": "arg"})
	assert.Equal(t, "/v1/users/arg", req.URL.Path)
}

func TestVariables(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	vars, err := def.Variables("renameUser")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "tag"}, vars)

	vars, err = def.Variables("listUsers")
	require.NoError(t, err)
	assert.Empty(t, vars)

	_, err = def.Variables("nope")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestSources(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	sources, err := def.Sources("renameUser")
	require.NoError(t, err)
	assert.Equal(t, []string{"getUser", "rename"}, sources)

	_, err = def.Sources("api")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		target  error
		message string
	}{
		{
			name:   "unknown fragment",
			yaml:   "requests:\n  a: [missing]\n",
			target: ErrUnknownFragment,
		},
		{
			name:   "duplicate name",
			yaml:   "fragments:\n  a: {url: x}\nrequests:\n  a: []\n",
			target: ErrDuplicateName,
		},
		{
			name:   "self cycle",
			yaml:   "requests:\n  a: [a]\n",
			target: forge.ErrCycle,
		},
		{
			name:   "indirect cycle",
			yaml:   "requests:\n  a: [b]\n  b: [a]\n",
			target: forge.ErrCycle,
		},
		{
			name:    "body and form",
			yaml:    "fragments:\n  a:\n    body: {x: 1}\n    form: [{name: y, value: z}]\n",
			message: "body and form are exclusive",
		},
		{
			name:    "form field without name",
			yaml:    "fragments:\n  a:\n    form: [{value: z}]\n",
			message: "form[0]: field has no name",
		},
		{
			name:    "unknown key",
			yaml:    "fragments:\n  a:\n    uri: /x\n",
			message: "field uri not found",
		},
		{
			name:    "bad header value",
			yaml:    "fragments:\n  a:\n    headers:\n      X: {nested: map}\n",
			message: "expected a string or a list of strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), nil)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	def, err := Parse(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, def.RequestNames())

	_, err = def.Request("any")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	def, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, def.Path)
	assert.Equal(t, dir, def.BaseDir())

	_, err = Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRequest_SharedBuilder(t *testing.T) {
	def, err := Parse([]byte(sample), nil)
	require.NoError(t, err)

	getUser, err := def.Request("getUser")
	require.NoError(t, err)
	getUser.AddConfig(&forge.Fragment[Args]{Headers: forge.Headers[Args](forge.Object{"X-Trace": "1"})})

	req := resolveRequest(t, def, "renameUser", Args{"id": "1", "name": "n", "tag": "t"})
	assert.Equal(t, "1", req.Header.Get("X-Trace"))
}
