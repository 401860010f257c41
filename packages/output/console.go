package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

const maxBodyPreview = 4096

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	case map[string][]string:
		return fmt.Sprintf("{headers with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	passed  int
	failed  int
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(r *Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if r.Passed() {
		f.passed++
	} else {
		f.failed++
	}

	if r.Err != nil {
		fmt.Fprintf(f.writer, "%s %s %s\n", red("x"), bold(r.Name), red(fmt.Sprintf("(%v)", r.Err)))
		return
	}

	if r.DryRun {
		fmt.Fprintf(f.writer, "%s %s\n", yellow("-"), bold(r.Name))
		f.formatRequest(r.Request)
		return
	}

	symbol := green("✓")
	if !r.Passed() {
		symbol = red("✗")
	}

	status := ""
	if r.Response != nil {
		status = r.Response.Status
		if !r.Response.IsSuccess() {
			status = yellow(status)
		}
	}
	fmt.Fprintf(f.writer, "%s %s %s %s %s\n", symbol, bold(r.Name), describe(r.Request), status,
		cyan(fmt.Sprintf("(%dms)", r.duration().Milliseconds())))

	if f.verbose {
		f.formatRequest(r.Request)
		if r.Response != nil {
			f.formatResponse(r.Response)
		}
	}

	for _, a := range r.Assertions {
		if a.Passed {
			if f.verbose {
				fmt.Fprintf(f.writer, "    %s %s %s\n", green("✓"), a.Subject, a.Operator)
			}
			continue
		}
		fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Subject, a.Operator)
		fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
		fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
		if a.Message != "" {
			fmt.Fprintf(f.writer, "      %s\n", a.Message)
		}
	}

	for _, q := range r.Queries {
		if !q.Found {
			fmt.Fprintf(f.writer, "    %s = %s\n", q.Name, yellow("<missing>"))
			continue
		}
		fmt.Fprintf(f.writer, "    %s = %s\n", q.Name, queryValue(q.Value))
	}
}

func (f *ConsoleFormatter) formatRequest(req *forge.Request) {
	if req == nil {
		return
	}
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(f.writer, "    %s\n", describe(req))
	writeHeaders(f.writer, req.Header, dim)

	switch {
	case req.Body != nil:
		f.writeBody(req.Body, "application/json")
	case req.Form != nil:
		for _, field := range req.Form.Fields() {
			if field.File != nil {
				source := field.File.Path
				if source == "" {
					source = fmt.Sprintf("%d bytes", len(field.File.Data))
				}
				fmt.Fprintf(f.writer, "    %s=@%s\n", field.Name, source)
				continue
			}
			fmt.Fprintf(f.writer, "    %s=%s\n", field.Name, field.Value)
		}
	}
}

func (f *ConsoleFormatter) formatResponse(resp *forge.Response) {
	dim := color.New(color.Faint).SprintFunc()
	fmt.Fprintf(f.writer, "    %s\n", resp.Status)
	writeHeaders(f.writer, resp.Headers, dim)
	if len(resp.Body) > 0 {
		f.writeBody(resp.Body, resp.ContentType())
	}
}

func (f *ConsoleFormatter) writeBody(body []byte, contentType string) {
	if strings.Contains(contentType, "json") && gjson.ValidBytes(body) {
		out := pretty.Pretty(body)
		if !color.NoColor {
			out = pretty.Color(out, pretty.TerminalStyle)
		}
		body = out
	} else if len(body) > maxBodyPreview {
		body = append(body[:maxBodyPreview:maxBodyPreview], "..."...)
	}
	for line := range strings.SplitSeq(strings.TrimRight(string(body), "\n"), "\n") {
		fmt.Fprintf(f.writer, "    %s\n", line)
	}
}

func writeHeaders(w io.Writer, header map[string][]string, dim func(a ...any) string) {
	for _, name := range slices.Sorted(maps.Keys(header)) {
		for _, v := range header[name] {
			fmt.Fprintf(w, "    %s %s\n", dim(name+":"), v)
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	if !f.verbose {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n\n", bold("fetchforge"), version)
}

// Flush prints the pass/fail tally when more than one request ran.
func (f *ConsoleFormatter) Flush(totalDuration time.Duration) error {
	if f.passed+f.failed < 2 {
		return nil
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(f.writer, "\nRequests: ")
	if f.passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", f.passed)))
	}
	if f.failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", f.failed)))
	}
	fmt.Fprintf(f.writer, "%d total\n", f.passed+f.failed)
	fmt.Fprintf(f.writer, "Time:     %dms\n", totalDuration.Milliseconds())
	return nil
}

func describe(req *forge.Request) string {
	if req == nil {
		return ""
	}
	return req.Method + " " + req.URL.String()
}

func queryValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any, map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return formatValue(val, 100)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
