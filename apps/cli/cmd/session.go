package cmd

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/config"
	"github.com/abdul-hamid-achik/fetchforge/packages/core/definition"
	"github.com/abdul-hamid-achik/fetchforge/packages/core/env"
	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
	fhttp "github.com/abdul-hamid-achik/fetchforge/packages/http"
)

// variablePrefix marks process environment variables that become
// placeholder variables, with the prefix stripped.
const variablePrefix = "FETCHFORGE_VAR_"

// sessionFlags are the flags shared by the commands that load a definition
// and send what it describes.
type sessionFlags struct {
	config   string
	envFiles []string
	origin   string
	timeout  time.Duration
	proxy    string
	insecure bool
	noColor  bool
	verbose  int
}

func (f *sessionFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.config, "config", getEnvString("FETCHFORGE_CONFIG", ""), "Path to config file (env: FETCHFORGE_CONFIG)")
	fs.StringArrayVar(&f.envFiles, "env-file", getEnvList("FETCHFORGE_ENV_FILE"), "Dotenv file with placeholder variables, repeatable (default: .env next to the definition) (env: FETCHFORGE_ENV_FILE)")
	fs.StringVar(&f.origin, "origin", getEnvString("FETCHFORGE_ORIGIN", ""), "Origin URL that overrides the definition and config (env: FETCHFORGE_ORIGIN)")
	fs.DurationVar(&f.timeout, "timeout", getEnvDuration("FETCHFORGE_TIMEOUT", 0), "Request timeout, e.g. 10s (env: FETCHFORGE_TIMEOUT)")
	fs.StringVar(&f.proxy, "proxy", getEnvString("FETCHFORGE_PROXY", ""), "Proxy URL for HTTP requests (env: FETCHFORGE_PROXY)")
	fs.BoolVarP(&f.insecure, "insecure", "k", getEnvBool("FETCHFORGE_INSECURE", false), "Disable SSL certificate validation (env: FETCHFORGE_INSECURE)")
	fs.BoolVar(&f.noColor, "no-color", getEnvBool("FETCHFORGE_NO_COLOR", false), "Disable colored output (env: FETCHFORGE_NO_COLOR)")
	fs.CountVarP(&f.verbose, "verbose", "v", "Verbose output (-v shows exchanges, -vv adds debug logs)")
}

// session is a loaded definition together with everything needed to
// resolve and send its requests.
type session struct {
	cfg      *config.Config
	log      zerolog.Logger
	resolver *env.Resolver
	def      *definition.Definition
	origin   *url.URL
	client   *fhttp.Client
	noColor  bool
}

func (f *sessionFlags) open(file string, stderr io.Writer) (*session, error) {
	cfg, err := f.loadConfig(file)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	noColor := cfg.GetNoColor()
	log := newLogger(stderr, cfg.Level(), f.verbose, noColor)

	files, optional := f.envFiles, false
	if len(files) == 0 {
		files, optional = []string{filepath.Join(filepath.Dir(file), ".env")}, true
	}
	vars, err := env.LoadVariables(variablePrefix, optional, files...)
	if err != nil {
		return nil, withExitCode(ExitConfigError, fmt.Errorf("loading variables: %w", err))
	}

	resolver := env.NewResolver()
	resolver.SetVariables(vars)
	resolver.SetWarnFunc(func(format string, args ...any) {
		log.Warn().Msgf(format, args...)
	})

	def, err := definition.Load(file, resolver)
	if err != nil {
		return nil, withExitCode(ExitParseError, err)
	}

	origin, err := f.resolveOrigin(cfg, def, resolver)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	opts := append(cfg.ClientOptions(), fhttp.WithBaseDir(def.BaseDir()), fhttp.WithLogger(log))

	event := log.Debug().Str("file", file).Int("variables", len(vars))
	if origin != nil {
		event = event.Str("origin", origin.String())
	}
	event.Msg("Definition loaded")

	return &session{
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		def:      def,
		origin:   origin,
		client:   fhttp.NewClient(opts...),
		noColor:  noColor,
	}, nil
}

// loadConfig reads --config, or the first config file found next to the
// definition, and applies the transport flags on top of it.
func (f *sessionFlags) loadConfig(file string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.config != "" {
		cfg, err = config.LoadConfig(f.config)
	} else {
		cfg, err = config.FindAndLoadConfig(filepath.Dir(file))
	}
	if err != nil {
		return nil, err
	}

	overrides := &config.Config{Proxy: f.proxy}
	if f.timeout > 0 {
		overrides.Timeout = int(f.timeout.Milliseconds())
	}
	if f.insecure {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if f.noColor {
		overrides.NoColor = config.BoolPtr(true)
	}
	return cfg.Merge(overrides), nil
}

// resolveOrigin picks the --origin flag, then the definition's origin, then
// the configured one. Placeholders in the definition's origin are resolved.
func (f *sessionFlags) resolveOrigin(cfg *config.Config, def *definition.Definition, r *env.Resolver) (*url.URL, error) {
	raw := cfg.Origin
	switch {
	case f.origin != "":
		raw = f.origin
	case def.Origin != "":
		raw = r.Resolve(def.Origin)
	}
	return (&config.Config{Origin: raw}).BaseURL()
}

// request returns the named request bound to the session's origin.
func (s *session) request(name string) (*forge.Builder[definition.Args], error) {
	b, err := s.def.Request(name)
	if err != nil {
		return nil, err
	}
	return forge.Using[definition.Args](b).WithOrigin(s.origin), nil
}

// newLogger builds the console logger the CLI writes diagnostics with. Each
// -v lowers the configured level by one step.
func newLogger(w io.Writer, level zerolog.Level, verbosity int, noColor bool) zerolog.Logger {
	level = max(level-zerolog.Level(verbosity), zerolog.TraceLevel)
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// parseAssignments parses repeated key=value flags.
func parseAssignments(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected key=value", v)
		}
		out[key] = value
	}
	return out, nil
}

var queryName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// parseNamedQuery splits "name=query". A value whose prefix is not a plain
// identifier is taken whole as the query and names itself.
func parseNamedQuery(v string) (name, query string) {
	if n, q, ok := strings.Cut(v, "="); ok && queryName.MatchString(n) && q != "" {
		return n, q
	}
	return v, v
}
