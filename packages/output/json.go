package output

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary   `json:"summary"`
	Requests []JSONRequest `json:"requests"`
	Duration float64       `json:"duration"`
	Time     string        `json:"time"`
}

type JSONSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// JSONRequest is one resolved request with what came back for it.
type JSONRequest struct {
	Name       string          `json:"name"`
	File       string          `json:"file,omitempty"`
	Passed     bool            `json:"passed"`
	DryRun     bool            `json:"dryRun,omitempty"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Request    *JSONDescriptor `json:"request,omitempty"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Queries    map[string]any  `json:"queries,omitempty"`
}

type JSONDescriptor struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    json.RawMessage     `json:"body,omitempty"`
	Form    []JSONFormField     `json:"form,omitempty"`
}

type JSONFormField struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	File  string `json:"file,omitempty"`
}

type JSONResponse struct {
	StatusCode int                 `json:"statusCode"`
	Status     string              `json:"status"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       string              `json:"body,omitempty"`
	Duration   float64             `json:"duration"`
}

type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter collects results and writes them as one JSON document on
// Flush.
type JSONFormatter struct {
	writer  io.Writer
	results []JSONRequest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONRequest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(r *Result) {
	entry := JSONRequest{
		Name:     r.Name,
		File:     r.File,
		Passed:   r.Passed(),
		DryRun:   r.DryRun,
		Duration: float64(r.duration().Milliseconds()),
	}

	if r.Err != nil {
		entry.Error = r.Err.Error()
	}

	if req := r.Request; req != nil {
		d := &JSONDescriptor{
			Method:  req.Method,
			URL:     req.URL.String(),
			Headers: req.Header,
		}
		if req.Body != nil {
			d.Body = json.RawMessage(req.Body)
		}
		if req.Form != nil {
			for _, field := range req.Form.Fields() {
				ff := JSONFormField{Name: field.Name, Value: field.Value}
				if field.File != nil {
					ff.File = field.File.Path
				}
				d.Form = append(d.Form, ff)
			}
		}
		entry.Request = d
	}

	if resp := r.Response; resp != nil {
		entry.Response = &JSONResponse{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Headers:    resp.Headers,
			Body:       resp.BodyString(),
			Duration:   float64(resp.Duration.Milliseconds()),
		}
	}

	for _, a := range r.Assertions {
		entry.Assertions = append(entry.Assertions, JSONAssertion{
			Subject:  a.Subject,
			Operator: a.Operator,
			Expected: a.Expected,
			Actual:   a.Actual,
			Passed:   a.Passed,
			Message:  a.Message,
		})
	}

	if len(r.Queries) > 0 {
		entry.Queries = make(map[string]any, len(r.Queries))
		for _, q := range r.Queries {
			entry.Queries[q.Name] = q.Value
		}
	}

	f.results = append(f.results, entry)
}

func (f *JSONFormatter) FormatError(err error) {
	f.results = append(f.results, JSONRequest{Error: err.Error()})
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed int
	for _, r := range f.results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	out := JSONOutput{
		Summary: JSONSummary{
			Total:  len(f.results),
			Passed: passed,
			Failed: failed,
		},
		Requests: f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
