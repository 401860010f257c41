package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/fetchforge/packages/assertions"
	"github.com/abdul-hamid-achik/fetchforge/packages/capture"
	"github.com/abdul-hamid-achik/fetchforge/packages/core/definition"
	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
	"github.com/abdul-hamid-achik/fetchforge/packages/history"
	"github.com/abdul-hamid-achik/fetchforge/packages/output"
)

var (
	runSession         sessionFlags
	runArgFlags        []string
	runAllFlag         bool
	runDryRunFlag      bool
	runQueryFlags      []string
	runCaptureFlags    []string
	runExpectFlags     []string
	runExpectStatus    int
	runSchemaFlag      string
	runOutputFlag      string
	runOutputFileFlag  string
	runBailFlag        bool
	runWatchFlag       bool
	runHistoryFlag     bool
	runHistoryFileFlag string
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var runCmd = &cobra.Command{
	Use:   "run <file> [request...]",
	Short: "Resolve requests from a definition file and send them",
	Long: `Resolve the named requests of a definition file and send them in order.

Placeholders such as {{id}} are filled from --arg values, values captured
from earlier responses, dotenv files and FETCHFORGE_VAR_* environment
variables, in that order of precedence.

Examples:
  fetchforge run api.yaml getUser --arg id=42
  fetchforge run api.yaml login getProfile --capture token=body.token
  fetchforge run api.yaml --all --expect-status 200 -o junit --output-file report.xml
  fetchforge run api.yaml createUser --dry-run
  fetchforge run api.yaml getUser --query name=body.name --expect "body.id exists"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func init() {
	runSession.register(runCmd.Flags())
	runCmd.Flags().StringArrayVarP(&runArgFlags, "arg", "a", nil, "Request argument as key=value, repeatable")
	runCmd.Flags().BoolVar(&runAllFlag, "all", getEnvBool("FETCHFORGE_ALL", false), "Run every request in the file (env: FETCHFORGE_ALL)")
	runCmd.Flags().BoolVarP(&runDryRunFlag, "dry-run", "n", getEnvBool("FETCHFORGE_DRY_RUN", false), "Print resolved requests without sending them (env: FETCHFORGE_DRY_RUN)")
	runCmd.Flags().StringArrayVarP(&runQueryFlags, "query", "q", nil, "Print a value from the response, as name=query or query (e.g. body.id, header.Location)")
	runCmd.Flags().StringArrayVar(&runCaptureFlags, "capture", nil, "Store a response value as a variable for later requests, as name=query")
	runCmd.Flags().StringArrayVar(&runExpectFlags, "expect", nil, "Assertion on the response, e.g. \"body.total > 0\", repeatable")
	runCmd.Flags().IntVar(&runExpectStatus, "expect-status", getEnvInt("FETCHFORGE_EXPECT_STATUS", 0), "Fail unless the response has this status code (env: FETCHFORGE_EXPECT_STATUS)")
	runCmd.Flags().StringVar(&runSchemaFlag, "schema", getEnvString("FETCHFORGE_SCHEMA", ""), "Validate response bodies against a JSON schema file (env: FETCHFORGE_SCHEMA)")
	runCmd.Flags().StringVarP(&runOutputFlag, "output", "o", getEnvString("FETCHFORGE_OUTPUT", "console"), "Output format: console, json, junit, tap (env: FETCHFORGE_OUTPUT)")
	runCmd.Flags().StringVar(&runOutputFileFlag, "output-file", getEnvString("FETCHFORGE_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: FETCHFORGE_OUTPUT_FILE)")
	runCmd.Flags().BoolVar(&runBailFlag, "bail", getEnvBool("FETCHFORGE_BAIL", false), "Stop on first failure (env: FETCHFORGE_BAIL)")
	runCmd.Flags().BoolVarP(&runWatchFlag, "watch", "w", false, "Watch the definition and its variable files, re-running on change")
	runCmd.Flags().BoolVar(&runHistoryFlag, "history", getEnvBool("FETCHFORGE_HISTORY", false), "Log sent requests to the history database (env: FETCHFORGE_HISTORY)")
	runCmd.Flags().StringVar(&runHistoryFileFlag, "history-file", getEnvString("FETCHFORGE_HISTORY_FILE", ""), "History database path, enables --history (env: FETCHFORGE_HISTORY_FILE)")
}

// checks are the per-response expectations and extractions of a run.
type checks struct {
	dryRun     bool
	status     int
	schema     string
	assertions []*assertions.Assertion
	queries    []output.Query
	captures   []output.Query
}

func newChecks() (*checks, error) {
	c := &checks{
		dryRun: runDryRunFlag,
		status: runExpectStatus,
		schema: runSchemaFlag,
	}
	for _, expr := range runExpectFlags {
		a, err := assertions.Parse(expr)
		if err != nil {
			return nil, err
		}
		c.assertions = append(c.assertions, a)
	}
	for _, v := range runQueryFlags {
		name, query := parseNamedQuery(v)
		c.queries = append(c.queries, output.Query{Name: name, Query: query})
	}
	for _, v := range runCaptureFlags {
		name, query, ok := strings.Cut(v, "=")
		if !ok || !queryName.MatchString(name) || query == "" {
			return nil, fmt.Errorf("invalid capture %q: expected name=query", v)
		}
		c.captures = append(c.captures, output.Query{Name: name, Query: query})
	}
	return c, nil
}

func (c *checks) evaluate(resp *forge.Response) []*assertions.Result {
	var results []*assertions.Result
	if c.status > 0 {
		results = append(results, assertions.Status(resp, c.status))
	}
	if c.schema != "" {
		results = append(results, assertions.Schema(resp, c.schema))
	}
	return append(results, assertions.EvaluateAll(resp, c.assertions)...)
}

func (c *checks) query(resp *forge.Response) []output.Query {
	if len(c.queries) == 0 {
		return nil
	}
	out := make([]output.Query, 0, len(c.queries))
	for _, q := range c.queries {
		q.Value, q.Found = capture.Extract(resp, q.Query)
		out = append(out, q)
	}
	return out
}

func runCommand(cmd *cobra.Command, args []string) error {
	file, names := args[0], args[1:]
	if len(names) == 0 && !runAllFlag {
		return withExitCode(ExitUsageError, errors.New("name at least one request, or pass --all"))
	}

	reqArgs, err := parseAssignments(runArgFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	c, err := newChecks()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runOnce(ctx, cmd, file, names, reqArgs, c)
	if !runWatchFlag {
		return err
	}
	if err != nil && !errors.Is(err, errRequestsFailed) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return watch(ctx, cmd, file, func() error {
		return runOnce(ctx, cmd, file, names, reqArgs, c)
	})
}

// runOnce loads the definition and runs the named requests once, in order.
// Values captured from a response are visible to the requests after it.
func runOnce(ctx context.Context, cmd *cobra.Command, file string, names []string, reqArgs map[string]string, c *checks) error {
	s, err := runSession.open(file, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = s.def.RequestNames()
	}

	format := runOutputFlag
	if !cmd.Flags().Changed("output") && s.cfg.Output != "" {
		format = s.cfg.Output
	}
	w, closeOutput, err := openOutput(cmd.OutOrStdout())
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer closeOutput()

	formatter, err := output.New(format, w, runSession.verbose > 0, s.noColor)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	store, err := openHistory(ctx, s)
	if err != nil {
		formatter.FormatError(err)
		return withExitCode(ExitConfigError, err)
	}
	if store != nil {
		defer store.Close()
	}

	start := time.Now()
	failed, unreachable := false, false
	for _, name := range names {
		res := s.execute(ctx, name, definition.Args(reqArgs), c, store)
		formatter.FormatResult(res)

		if !res.Passed() {
			failed = true
			if res.Request != nil && res.Response == nil && !res.DryRun {
				unreachable = true
			}
			if runBailFlag {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(time.Since(start)); err != nil {
			return err
		}
	}

	switch {
	case unreachable:
		return withExitCode(ExitNetworkError, errRequestsFailed)
	case failed:
		return withExitCode(ExitTestFailure, errRequestsFailed)
	}
	return nil
}

// execute resolves and sends one request, then runs the checks on its
// response. Failures are reported on the result rather than returned.
func (s *session) execute(ctx context.Context, name string, args definition.Args, c *checks, store *history.Store) *output.Result {
	res := &output.Result{File: s.def.Path, Name: name, DryRun: c.dryRun}

	b, err := s.request(name)
	if err != nil {
		res.Err = err
		return res
	}
	req, err := b.Resolve(args)
	if err != nil {
		res.Err = fmt.Errorf("resolving %s: %w", name, err)
		return res
	}
	res.Request = req
	if c.dryRun {
		return res
	}

	resp, err := s.client.Do(ctx, req)
	if store != nil {
		if _, herr := store.Record(ctx, history.NewEntry(s.def.Path, name, req, resp, err)); herr != nil {
			s.log.Warn().Err(herr).Str("request", name).Msg("Failed to record history")
		}
	}
	if err != nil {
		res.Err = err
		return res
	}

	res.Response = resp
	res.Assertions = c.evaluate(resp)
	res.Queries = c.query(resp)

	for _, cp := range c.captures {
		v, ok := capture.Extract(resp, cp.Query)
		if !ok {
			s.log.Warn().Str("request", name).Str("query", cp.Query).Msg("Capture matched nothing")
			continue
		}
		s.resolver.SetVariable(cp.Name, stringify(v))
		s.log.Debug().Str("request", name).Str("variable", cp.Name).Msg("Captured")
	}
	return res
}

// stringify renders a captured value for use in a placeholder. Objects and
// arrays become JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// openOutput returns the writer results go to: --output-file when set,
// otherwise stdout.
func openOutput(stdout io.Writer) (io.Writer, func(), error) {
	if runOutputFileFlag == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(runOutputFileFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// openHistory opens the history database when history is enabled by flag or
// config. It returns nil when history is off.
func openHistory(ctx context.Context, s *session) (*history.Store, error) {
	path := runHistoryFileFlag
	if path == "" {
		path = s.cfg.History
	}
	if path == "" && !runHistoryFlag {
		return nil, nil
	}
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, fmt.Errorf("locating history database: %w", err)
		}
	}
	return history.Open(ctx, path)
}

// watch re-runs rerun whenever the definition, a dotenv file or the config
// file is written, until ctx is done.
func watch(ctx context.Context, cmd *cobra.Command, file string, rerun func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	for _, path := range watchedFiles(file) {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		watched[abs] = true
	}
	dirs := make(map[string]bool)
	for path := range watched {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		// Editors often replace files on save, so the directory is watched.
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
	)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				mu.Lock()
				defer mu.Unlock()

				fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", event.Name)
				if err := rerun(); err != nil && !errors.Is(err, errRequestsFailed) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

// watchedFiles lists the files a run depends on.
func watchedFiles(file string) []string {
	files := []string{file}
	if len(runSession.envFiles) > 0 {
		files = append(files, runSession.envFiles...)
	} else {
		files = append(files, filepath.Join(filepath.Dir(file), ".env"))
	}
	if runSession.config != "" {
		files = append(files, runSession.config)
	}
	return files
}
