package assertions

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

func createResponse(statusCode int, body string, headers http.Header) *forge.Response {
	if headers == nil {
		headers = make(http.Header)
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	return &forge.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
	}
}

func TestEvaluator_StatusCode(t *testing.T) {
	resp := createResponse(200, `{}`, nil)

	result := Status(resp, 200)
	assert.True(t, result.Passed)
	assert.Equal(t, 200, result.Actual)

	result = Status(resp, 201)
	assert.False(t, result.Passed)
	assert.Equal(t, "expected 201, got 200", result.Message)
}

func TestEvaluator_Expressions(t *testing.T) {
	resp := createResponse(200, `{
		"user": {"name": "John", "age": 30, "email": "john@example.com"},
		"items": [{"id": 1}, {"id": 2}, {"id": 3}],
		"tags": ["a", "b"],
		"active": true,
		"note": null
	}`, http.Header{"Etag": {`"v1"`}})

	tests := []struct {
		expr   string
		passed bool
	}{
		{`status == 200`, true},
		{`status != 200`, false},
		{`status >= 200`, true},
		{`status < 300`, true},
		{`duration <= 100`, true},
		{`body.user.name == John`, true},
		{`body.user.name == "John"`, true},
		{`body.user.age == 30`, true},
		{`body.user.age > 40`, false},
		{`body.user.email contains @example`, true},
		{`body.user.email !contains @other`, true},
		{`body.user.email startsWith john`, true},
		{`body.user.email endsWith .org`, false},
		{`body.user.email matches /^[a-z]+@/`, true},
		{`body.items length 3`, true},
		{`body.items[1].id == 2`, true},
		{`body.tags includes "b"`, true},
		{`body.user.name in ["Jane", "John"]`, true},
		{`body.active type boolean`, true},
		{`body.user type object`, true},
		{`body.tags type array`, true},
		{`body.missing exists`, false},
		{`body.missing !exists`, true},
		{`header.ETag exists`, true},
		{`header.ETag == "\"v1\""`, true},
	}

	e := NewEvaluator(resp)
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			a, err := Parse(tt.expr)
			require.NoError(t, err)
			result := e.Evaluate(a)
			assert.Equal(t, tt.passed, result.Passed, result.Message)
		})
	}
}

func TestEvaluator_LengthReportsComputedValue(t *testing.T) {
	resp := createResponse(200, `{"items": [1, 2]}`, nil)
	a, err := Parse("body.items length 3")
	require.NoError(t, err)

	result := NewEvaluator(resp).Evaluate(a)
	assert.False(t, result.Passed)
	assert.Equal(t, 2, result.Actual)
	assert.Equal(t, "expected length 3, got 2", result.Message)
}

func TestParse(t *testing.T) {
	tests := []struct {
		expr     string
		subject  string
		op       Operator
		expected any
		wantErr  string
	}{
		{expr: "status == 200", subject: "status", op: OpEquals, expected: float64(200)},
		{expr: "  body.name   ==   hello world ", subject: "body.name", op: OpEquals, expected: "hello world"},
		{expr: "body.intro in [1, 2]", subject: "body.intro", op: OpIn, expected: []any{float64(1), float64(2)}},
		{expr: "header.X exists", subject: "header.X", op: OpExists},
		{expr: "status", wantErr: "expected"},
		{expr: "status ~= 1", wantErr: "unknown operator"},
		{expr: "status ==", wantErr: "missing expected value"},
		{expr: "body.x exists 1", wantErr: "takes no value"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			a, err := Parse(tt.expr)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.subject, a.Subject)
			assert.Equal(t, tt.op, a.Operator)
			assert.Equal(t, tt.expected, a.Expected)
		})
	}
}

func TestAssertion_String(t *testing.T) {
	assert.Equal(t, "status == 200", (&Assertion{Subject: "status", Operator: OpEquals, Expected: 200}).String())
	assert.Equal(t, "body.id exists", (&Assertion{Subject: "body.id", Operator: OpExists}).String())
}

func TestSchema(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "user.json")
	schema := `{
		"type": "object",
		"required": ["id", "name"],
		"properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
	}`
	require.NoError(t, os.WriteFile(schemaPath, []byte(schema), 0644))

	result := Schema(createResponse(200, `{"id": 1, "name": "ada"}`, nil), schemaPath)
	assert.True(t, result.Passed, result.Message)

	result = Schema(createResponse(200, `{"id": "x"}`, nil), schemaPath)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "schema validation failed")

	result = Schema(createResponse(200, `{}`, nil), filepath.Join(dir, "missing.json"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "failed to read schema file")
}

func TestSchema_PathTraversal(t *testing.T) {
	e := NewEvaluatorWithBaseDir(createResponse(200, `{}`, nil), t.TempDir())
	result := e.Evaluate(&Assertion{Subject: "body", Operator: OpSchema, Expected: "../../etc/passwd"})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "path traversal")
}

func TestEvaluateAll(t *testing.T) {
	resp := createResponse(404, `{"error": "not found"}`, nil)
	results := EvaluateAll(resp, []*Assertion{
		{Subject: "status", Operator: OpEquals, Expected: 404},
		{Subject: "body.error", Operator: OpEquals, Expected: "gone"},
	})

	require.Len(t, results, 2)
	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "body.error", failed[0].Subject)
}
