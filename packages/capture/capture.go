package capture

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

// Extractor reads values out of a response. The body is parsed once.
type Extractor struct {
	response *forge.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *forge.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

// Extract evaluates a query against the response:
//
//	status            status code
//	duration          round trip in milliseconds
//	header.<name>     first value of a header
//	body              whole body, decoded when it is JSON
//	body.<path>       gjson path into a JSON body; items[0].id is accepted
//
// A query without a known prefix is treated as a body path.
func (e *Extractor) Extract(query string) (any, bool) {
	query = strings.TrimSpace(query)
	switch {
	case query == "status":
		return e.response.StatusCode, true
	case query == "duration":
		return e.response.DurationMs(), true
	case strings.HasPrefix(query, "header.") || strings.HasPrefix(query, "header "):
		return e.extractFromHeader(strings.TrimSpace(query[len("header."):]))
	case query == "body":
		return e.extractFromBody("")
	case strings.HasPrefix(query, "body.") || strings.HasPrefix(query, "body["):
		return e.extractFromBody(strings.TrimPrefix(query, "body"))
	default:
		return e.extractFromBody(query)
	}
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// gjsonPath converts array bracket notation to gjson dot notation,
// e.g. "[0].id" -> "0.id" and "items[0].tags[1]" -> "items.0.tags.1".
func gjsonPath(path string) string {
	path = bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	path = gjsonPath(path)
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	values := e.response.Headers.Values(name)
	if len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

// Extract evaluates a single query against resp.
func Extract(resp *forge.Response, query string) (any, bool) {
	return NewExtractor(resp).Extract(query)
}

// ExtractAll evaluates named queries. Queries that match nothing are left out
// of the result.
func ExtractAll(resp *forge.Response, queries map[string]string) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for name, q := range queries {
		if value, ok := extractor.Extract(q); ok {
			results[name] = value
		}
	}

	return results
}
