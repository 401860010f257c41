package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/fetchforge/packages/assertions"
	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

// Result is the outcome of resolving and, unless it was a dry run, sending
// one named request.
type Result struct {
	File       string
	Name       string
	Request    *forge.Request
	Response   *forge.Response
	Assertions []*assertions.Result
	Queries    []Query
	Err        error
	DryRun     bool
}

// Query is a value read from a response with a capture query.
type Query struct {
	Name  string
	Query string
	Value any
	Found bool
}

// Passed reports whether the request was resolved, sent when required and
// every assertion held.
func (r *Result) Passed() bool {
	return r.Err == nil && len(assertions.Failed(r.Assertions)) == 0
}

func (r *Result) duration() time.Duration {
	if r.Response == nil {
		return 0
	}
	return r.Response.Duration
}

// Formatter is implemented by every output format.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *Result)
	FormatError(err error)
}

// Flushable is implemented by formatters that accumulate results and write
// them in one go.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap"}

// New returns the formatter registered under format. A nil w means stdout.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	if w == nil {
		w = os.Stdout
	}
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(Formats, ", "))
	}
}

func failureLines(results []*assertions.Result) []string {
	var lines []string
	for _, a := range assertions.Failed(results) {
		lines = append(lines, fmt.Sprintf("%s %s: expected %v, got %v", a.Subject, a.Operator, a.Expected, a.Actual))
	}
	return lines
}
