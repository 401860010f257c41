package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter renders a bench run: a header, a live status line while
// requests are dispatched, and the final report as text or JSON.
type Reporter struct {
	w          io.Writer
	noColor    bool
	noProgress bool
	verbose    bool

	ok, bad, warn, accent, strong, faint *color.Color
}

type ReporterOption func(*Reporter)

func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) { r.w = w }
}

func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) { r.noColor = noColor }
}

// WithNoProgress turns off the live status line.
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) { r.noProgress = noProgress }
}

// WithVerbose always prints the per-request table, even for a single request.
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) { r.verbose = verbose }
}

func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{w: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	paint := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if r.noColor {
			c.DisableColor()
		}
		return c
	}
	r.ok = paint(color.FgGreen)
	r.bad = paint(color.FgRed)
	r.warn = paint(color.FgYellow)
	r.accent = paint(color.FgCyan)
	r.strong = paint(color.Bold)
	r.faint = paint(color.Faint)
	return r
}

// Header announces the run: what is benchmarked and the load shape.
func (r *Reporter) Header(version, label string, cfg *Config) {
	fmt.Fprintln(r.w)
	r.strong.Fprintf(r.w, "fetchforge bench %s", version)
	if label != "" {
		fmt.Fprint(r.w, " ")
		r.accent.Fprint(r.w, label)
	}
	fmt.Fprintln(r.w)

	shape := fmt.Sprintf("%s req/s for %s, at most %d in flight",
		strconv.FormatFloat(cfg.Rate, 'f', -1, 64), formatDuration(cfg.Duration), cfg.MaxConcurrency)
	if cfg.RampUp > 0 {
		shape += fmt.Sprintf(", ramping up over %s", formatDuration(cfg.RampUp))
	}
	r.faint.Fprintln(r.w, shape)
	fmt.Fprintln(r.w)
}

const progressWidth = 24

// Progress redraws the single live status line.
func (r *Reporter) Progress(stats CurrentStats, duration time.Duration) {
	if r.noProgress {
		return
	}

	done := 0
	if duration > 0 {
		done = min(int(int64(progressWidth)*int64(stats.Elapsed)/int64(duration)), progressWidth)
	}

	fmt.Fprintf(r.w, "\r\033[K[%s%s] %s/%s  %s sent  ",
		strings.Repeat("=", done), strings.Repeat(" ", progressWidth-done),
		formatDuration(stats.Elapsed), formatDuration(duration), formatNumber(stats.Total))
	failed := r.faint
	if stats.Errors > 0 {
		failed = r.bad
	}
	failed.Fprintf(r.w, "%s failed", formatNumber(stats.Errors))
	fmt.Fprintf(r.w, "  %.1f req/s  %d in flight  p95 %s",
		stats.RPS, stats.InFlight, formatLatency(stats.P95))
}

// ClearProgress erases the live status line.
func (r *Reporter) ClearProgress() {
	if !r.noProgress {
		fmt.Fprint(r.w, "\r\033[K")
	}
}

// Summary prints the report of a finished run. Achieved throughput is shown
// against the target rate of cfg.
func (r *Reporter) Summary(result *Result, cfg *Config) {
	s := result.Summary

	r.section("Throughput")
	fmt.Fprintf(r.w, "  %s requests in %s, %.1f req/s", formatNumber(s.TotalRequests), formatDuration(s.Duration), s.RPS)
	if cfg != nil && cfg.Rate > 0 {
		r.faint.Fprintf(r.w, " (target %s)", strconv.FormatFloat(cfg.Rate, 'f', -1, 64))
	}
	fmt.Fprintln(r.w)
	if s.ErrorCount == 0 {
		r.ok.Fprintln(r.w, "  no failures")
	} else {
		r.bad.Fprintf(r.w, "  %s failed (%.2f%%)", formatNumber(s.ErrorCount), s.ErrorRate*100)
		if s.TimeoutCount > 0 {
			r.warn.Fprintf(r.w, ", %s timed out", formatNumber(s.TimeoutCount))
		}
		fmt.Fprintln(r.w)
	}

	r.section("Latency")
	fmt.Fprintf(r.w, "  %-8s%-8s%-8s%-8s%-8s%-8s%s\n", "min", "mean", "p50", "p95", "p99", "max", "stddev")
	fmt.Fprint(r.w, "  ")
	for _, d := range []time.Duration{s.Min, s.Mean, s.P50, s.P95, s.P99, s.Max} {
		fmt.Fprintf(r.w, "%-8s", formatLatency(d))
	}
	fmt.Fprintln(r.w, formatLatency(s.StdDev))

	if len(s.Targets) > 1 || (r.verbose && len(s.Targets) > 0) {
		r.targets(s)
	}

	if len(s.StatusCodes) > 0 {
		r.section("Status codes")
		for _, code := range slices.Sorted(maps.Keys(s.StatusCodes)) {
			c := r.ok
			switch {
			case code >= 500:
				c = r.bad
			case code >= 400:
				c = r.warn
			}
			c.Fprintf(r.w, "  %d", code)
			fmt.Fprintf(r.w, "  %s\n", formatNumber(s.StatusCodes[code]))
		}
	}

	if len(result.Thresholds) > 0 {
		r.section("Thresholds")
		for _, t := range result.Thresholds {
			if t.Passed {
				r.ok.Fprint(r.w, "  pass ")
			} else {
				r.bad.Fprint(r.w, "  FAIL ")
			}
			fmt.Fprintf(r.w, "%s %s, got %s\n", t.Name, t.Expected, t.Actual)
		}
	}

	fmt.Fprintln(r.w)
	if result.Passed {
		r.ok.Fprintln(r.w, "PASSED")
	} else {
		r.bad.Fprintln(r.w, "FAILED")
	}
}

// targets prints one row per request with its share of the mix.
func (r *Reporter) targets(s *Summary) {
	r.section("Requests")
	names := slices.Sorted(maps.Keys(s.Targets))
	width := len("request")
	for _, name := range names {
		width = max(width, len(name))
	}

	fmt.Fprintf(r.w, "  %-*s  %7s  %6s  %7s  %-7s %-7s %s\n", width, "request", "sent", "share", "failed", "p50", "p95", "p99")
	for _, name := range names {
		t := s.Targets[name]
		fmt.Fprintf(r.w, "  %-*s  %7s  %5.1f%%  %7s  %-7s %-7s %s\n", width, name,
			formatNumber(t.Total), ratio(t.Total, s.TotalRequests)*100, formatNumber(t.Errors),
			formatLatency(t.P50), formatLatency(t.P95), formatLatency(t.P99))
	}
}

func (r *Reporter) section(title string) {
	fmt.Fprintln(r.w)
	r.strong.Fprintln(r.w, title)
}

// Report is the JSON form of a finished run. Latencies are milliseconds.
type Report struct {
	Duration    string                  `json:"duration"`
	Requests    ReportCounts            `json:"requests"`
	RPS         float64                 `json:"rps"`
	ErrorRate   float64                 `json:"errorRate"`
	Latency     ReportLatency           `json:"latency"`
	StatusCodes map[string]int64        `json:"statusCodes,omitempty"`
	Targets     map[string]ReportTarget `json:"targets,omitempty"`
	Thresholds  []ThresholdResult       `json:"thresholds,omitempty"`
	Passed      bool                    `json:"passed"`
}

type ReportCounts struct {
	Total    int64 `json:"total"`
	Failed   int64 `json:"failed"`
	Timeouts int64 `json:"timeouts"`
}

type ReportLatency struct {
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stddev"`
}

type ReportTarget struct {
	Total  int64   `json:"total"`
	Failed int64   `json:"failed"`
	Share  float64 `json:"share"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// NewReport converts result to its JSON form.
func NewReport(result *Result) *Report {
	s := result.Summary
	rep := &Report{
		Duration: s.Duration.Round(time.Millisecond).String(),
		Requests: ReportCounts{
			Total:    s.TotalRequests,
			Failed:   s.ErrorCount,
			Timeouts: s.TimeoutCount,
		},
		RPS:       s.RPS,
		ErrorRate: s.ErrorRate,
		Latency: ReportLatency{
			Min:    millis(s.Min),
			Mean:   millis(s.Mean),
			P50:    millis(s.P50),
			P95:    millis(s.P95),
			P99:    millis(s.P99),
			Max:    millis(s.Max),
			StdDev: millis(s.StdDev),
		},
		Thresholds: result.Thresholds,
		Passed:     result.Passed,
	}

	if len(s.StatusCodes) > 0 {
		rep.StatusCodes = make(map[string]int64, len(s.StatusCodes))
		for code, n := range s.StatusCodes {
			rep.StatusCodes[strconv.Itoa(code)] = n
		}
	}
	if len(s.Targets) > 0 {
		rep.Targets = make(map[string]ReportTarget, len(s.Targets))
		for name, t := range s.Targets {
			rep.Targets[name] = ReportTarget{
				Total:  t.Total,
				Failed: t.Errors,
				Share:  ratio(t.Total, s.TotalRequests),
				P50:    millis(t.P50),
				P95:    millis(t.P95),
				P99:    millis(t.P99),
			}
		}
	}
	return rep
}

// JSONSummary writes the result as one indented JSON document.
func (r *Reporter) JSONSummary(result *Result) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(result))
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// formatDuration renders elapsed run time: 850ms, 12.5s, 2m 05s.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	case d < time.Minute:
		return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
	}
	m, s := int(d/time.Minute), int(d%time.Minute/time.Second)
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}

// formatLatency renders a single latency with a unit suited to its size.
func formatLatency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < 10*time.Millisecond:
		return fmt.Sprintf("%.1fms", millis(d))
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// formatNumber groups digits in thousands: 1234567 becomes 1,234,567.
func formatNumber(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String()
}
