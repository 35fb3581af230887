package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/hitquery/packages/behaviors"
	"github.com/abdul-hamid-achik/hitquery/packages/cache"
	"github.com/abdul-hamid-achik/hitquery/packages/core/config"
	"github.com/abdul-hamid-achik/hitquery/packages/core/env"
	hqhttp "github.com/abdul-hamid-achik/hitquery/packages/http"
	"github.com/abdul-hamid-achik/hitquery/packages/metrics"
	"github.com/abdul-hamid-achik/hitquery/packages/output"
	"github.com/abdul-hamid-achik/hitquery/packages/queryable"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Send a GET request through the configured behaviors",
	Long: `Send a GET request and print the parsed result.

Examples:
  hitquery get https://api.example.com/users
  hitquery get https://api.example.com/users --token $TOKEN --select "0.name"
  hitquery get https://api.example.com/users -H "X-Team=core" --cache session --repeat 3
  hitquery get https://api.example.com/users --retries 3 --retry-interval 500ms
  hitquery get https://api.example.com/users --schema user.schema.json --throw=false
  hitquery get https://api.example.com/users --config .hitquery.yaml --watch
  hitquery get "https://{{host}}/users" --env-file .env --token "{{API_TOKEN}}"`,
	Args: cobra.ExactArgs(1),
	RunE: getCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for config watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

type getOptions struct {
	token         string
	oauth2        string
	headers       []string
	timeout       time.Duration
	cache         string
	pessimistic   bool
	selectPath    string
	schema        string
	parse         string
	retries       int
	retryInterval time.Duration
	rate          float64
	repeat        int
	throw         bool
	config        string
	envFile       string
	watch         bool
	verbose       int
	noColor       bool
	raw           bool
	output        string
	proxy         string
	insecure      bool
	metricsAddr   string
}

var getOpts getOptions

func init() {
	f := getCmd.Flags()

	// Request flags
	f.StringVar(&getOpts.token, "token", getEnvString("HITQUERY_TOKEN", ""), "Bearer token (env: HITQUERY_TOKEN)")
	f.StringVar(&getOpts.oauth2, "oauth2", getEnvString("HITQUERY_OAUTH2", ""), "OAuth2 grant: \"client_credentials <tokenUrl> <id> <secret> [scopes]\" (env: HITQUERY_OAUTH2)")
	f.StringArrayVarP(&getOpts.headers, "header", "H", nil, "Request header as key=value or \"key: value\" (repeatable)")
	f.DurationVar(&getOpts.timeout, "timeout", 30*time.Second, "Abort the request after this long (0 disables)")
	f.Float64Var(&getOpts.rate, "rate", 0, "Maximum requests per second (0 is unlimited)")
	f.IntVarP(&getOpts.repeat, "repeat", "n", 1, "Send the request this many times")

	// Caching flags
	f.StringVar(&getOpts.cache, "cache", getEnvString("HITQUERY_CACHE", ""), "Cache results in the session or local store (env: HITQUERY_CACHE)")
	f.BoolVar(&getOpts.pessimistic, "pessimistic", false, "Serve cached results and refresh them in the background")

	// Resilience flags
	f.IntVar(&getOpts.retries, "retries", getEnvInt("HITQUERY_RETRIES", 0), "Retry 429, 503 and 504 responses and transport errors (env: HITQUERY_RETRIES)")
	f.DurationVar(&getOpts.retryInterval, "retry-interval", time.Second, "Initial wait between retries, doubled on each attempt")

	// Parsing flags
	f.StringVar(&getOpts.parse, "parse", "json", "Result parser: json, text, headers, json-headers")
	f.StringVar(&getOpts.selectPath, "select", "", "Print only the value at this JSON path (e.g. items[0].id)")
	f.StringVar(&getOpts.schema, "schema", "", "Validate the JSON body against this JSON schema file")
	f.BoolVar(&getOpts.throw, "throw", true, "Fail on responses outside the 2xx range")

	// Output flags
	f.CountVarP(&getOpts.verbose, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	f.BoolVar(&getOpts.noColor, "no-color", getEnvBool("HITQUERY_NO_COLOR", false), "Disable colored output (env: HITQUERY_NO_COLOR)")
	f.BoolVar(&getOpts.raw, "raw", false, "Print only the result")
	f.StringVarP(&getOpts.output, "output", "o", getEnvString("HITQUERY_OUTPUT", "console"), "Output format: console, json (env: HITQUERY_OUTPUT)")

	// Network flags
	f.StringVar(&getOpts.proxy, "proxy", getEnvString("HITQUERY_PROXY", ""), "Proxy URL for HTTP requests (env: HITQUERY_PROXY)")
	f.BoolVarP(&getOpts.insecure, "insecure", "k", getEnvBool("HITQUERY_INSECURE", false), "Disable SSL certificate validation (env: HITQUERY_INSECURE)")
	f.StringVar(&getOpts.metricsAddr, "metrics-addr", getEnvString("HITQUERY_METRICS_ADDR", ""), "Serve Prometheus metrics on this address, e.g. :9090 (env: HITQUERY_METRICS_ADDR)")

	// Config flags
	f.StringVar(&getOpts.config, "config", getEnvString("HITQUERY_CONFIG", ""), "Path to config file (env: HITQUERY_CONFIG)")
	f.StringVar(&getOpts.envFile, "env-file", getEnvString("HITQUERY_ENV_FILE", ""), "Dotenv file whose variables fill {{name}} placeholders (env: HITQUERY_ENV_FILE)")
	f.BoolVarP(&getOpts.watch, "watch", "w", false, "Re-run when the config file changes")
}

func getCommand(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr(), getOpts.noColor)

	ex, err := loadExpander(getOpts.envFile, logger)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	target := ex.Expand(args[0])
	if err := hqhttp.ValidateURL(target); err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if getOpts.repeat < 1 {
		return withExitCode(ExitUsageError, fmt.Errorf("--repeat must be at least 1"))
	}
	cmd.SilenceUsage = true

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfg, err := resolveConfig(getOpts.config, &getOpts, changed, ex)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	formatter, err := output.New(getOpts.output, cmd.OutOrStdout(), getOpts.verbose > 0, cfg.GetNoColor(), getOpts.raw)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	logger = newLogger(cmd.ErrOrStderr(), cfg.GetNoColor())

	ctx := commandContext(cmd)
	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var collector *metrics.Collector
	if getOpts.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollectorWithRegistry(registry)
		srv, err := metrics.Serve(getOpts.metricsAddr, registry)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info().Str("addr", srv.Addr()).Msg("serving metrics")
	}

	rec := metrics.NewRecorder()
	run := func(cfg *config.Config) error {
		q, err := buildQueryable(target, cfg, &getOpts, pipeline{
			logger:    logger,
			signal:    signalCtx,
			recorder:  rec,
			collector: collector,
		})
		if err != nil {
			return err
		}
		rec.Reset()
		err = runCalls(ctx, q, formatter, getOpts.repeat)
		if getOpts.repeat > 1 {
			formatter.FormatSummary(rec.Snapshot())
		}
		if flushErr := formatter.Flush(); flushErr != nil {
			return withExitCode(ExitRequestFailure, fmt.Errorf("error writing output: %w", flushErr))
		}
		return err
	}

	err = run(cfg)
	if !getOpts.watch {
		return err
	}
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) && ee.code == ExitConfigError {
			return err
		}
	}

	return watchConfig(signalCtx, cmd, logger, changed, ex, run)
}

// loadExpander reads the dotenv file, if any, and warns about
// placeholders nothing resolves
func loadExpander(path string, logger zerolog.Logger) (*env.Expander, error) {
	var vars map[string]string
	if path != "" {
		loaded, err := env.Load(path)
		if err != nil {
			return nil, err
		}
		vars = loaded
	}
	return env.NewExpander(vars).OnMissing(func(name string) {
		logger.Warn().Str("name", name).Msg("unresolved placeholder")
	}), nil
}

// expandConfig fills placeholders in the settings that carry secrets or hosts
func expandConfig(cfg *config.Config, ex *env.Expander) {
	if ex == nil {
		return
	}
	cfg.Token = ex.Expand(cfg.Token)
	cfg.OAuth2 = ex.Expand(cfg.OAuth2)
	cfg.Proxy = ex.Expand(cfg.Proxy)
	cfg.Headers = ex.ExpandAll(cfg.Headers)
}

// resolveConfig loads the config file, applies the flags the user set and
// expands placeholders
func resolveConfig(path string, opts *getOptions, changed map[string]bool, ex *env.Expander) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(&config.Config{
		Headers: headers,
		Token:   opts.token,
		OAuth2:  opts.oauth2,
		Cache:   opts.cache,
		Proxy:   opts.proxy,
	})

	if changed["timeout"] {
		cfg.Timeout = int(opts.timeout.Milliseconds())
	}
	if changed["retries"] || opts.retries > 0 {
		cfg.Retries = opts.retries
	}
	if changed["retry-interval"] {
		cfg.RetryInterval = int(opts.retryInterval.Milliseconds())
	}
	if changed["rate"] {
		cfg.Rate = opts.rate
	}
	if changed["no-color"] || opts.noColor {
		cfg.NoColor = config.BoolPtr(opts.noColor)
	}
	if opts.insecure {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	expandConfig(cfg, ex)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseHeaders accepts "key=value" and "key: value"
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		idx := strings.IndexAny(h, ":=")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid header %q: expected key=value or \"key: value\"", h)
		}
		headers[strings.TrimSpace(h[:idx])] = strings.TrimSpace(h[idx+1:])
	}
	return headers, nil
}

// pipeline carries what a queryable shares across rebuilds
type pipeline struct {
	logger    zerolog.Logger
	signal    context.Context
	recorder  *metrics.Recorder
	collector *metrics.Collector
}

// buildQueryable attaches the behaviors selected by cfg and opts
func buildQueryable(target string, cfg *config.Config, opts *getOptions, p pipeline) (*queryable.Queryable, error) {
	q := queryable.New(target).Using(
		behaviors.Logging(p.logger, logLevel(opts.verbose, cfg.LogLevel)),
		behaviors.DefaultHeaders(cfg.Headers),
		behaviors.RequestID(),
	)

	switch {
	case cfg.OAuth2 != "":
		oc, err := oauth2.ParseSpec(cfg.OAuth2)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		q.Using(behaviors.BearerTokenSource(oauth2.NewProvider(oc)))
	case cfg.Token != "":
		q.Using(behaviors.BearerToken(cfg.Token))
	}

	if p.signal != nil {
		q.Using(behaviors.Timeout(p.signal))
	}
	if cfg.Timeout > 0 {
		q.Using(behaviors.TimeoutAfter(cfg.TimeoutDuration()))
	}
	if cfg.Rate > 0 {
		q.Using(behaviors.RateLimit(rate.Limit(cfg.Rate), 1))
	}

	if cfg.Cache != "" {
		props := behaviors.CacheProps{StoreKind: cache.StoreKind(cfg.Cache)}
		if opts.pessimistic {
			q.Using(behaviors.CachingPessimisticRefresh(props))
		} else {
			q.Using(behaviors.Caching(props))
		}
	}

	if p.recorder != nil {
		q.Using(behaviors.RecordLatency(p.recorder))
	}
	if p.collector != nil {
		q.Using(behaviors.Instrument(p.collector))
	}

	if opts.throw {
		q.Using(behaviors.ThrowErrors())
	}
	if opts.schema != "" {
		schema, err := os.ReadFile(opts.schema)
		if err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("read schema: %w", err))
		}
		q.Using(behaviors.ValidateSchema(schema))
	}

	switch opts.parse {
	case "", "json":
		q.Using(behaviors.JSONParse())
	case "text":
		q.Using(behaviors.TextParse())
	case "headers":
		q.Using(behaviors.HeaderParse())
	case "json-headers":
		q.Using(behaviors.JSONHeaderParse())
	default:
		return nil, withExitCode(ExitUsageError, fmt.Errorf("unknown parser %q (expected json, text, headers or json-headers)", opts.parse))
	}
	if opts.selectPath != "" {
		q.Using(behaviors.Select(opts.selectPath))
	}

	clientOpts := []hqhttp.ClientOption{
		hqhttp.WithFollowRedirects(cfg.GetFollowRedirects()),
		hqhttp.WithValidateSSL(cfg.GetValidateSSL()),
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, hqhttp.WithProxy(cfg.Proxy))
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, hqhttp.WithTimeout(cfg.TimeoutDuration()))
	}
	if cfg.Retries > 0 {
		q.Using(behaviors.FetchWithRetry(cfg.Retries, cfg.RetryIntervalDuration(), clientOpts...))
	} else {
		q.Using(behaviors.Fetch(clientOpts...))
	}

	return q, nil
}

// runCalls sends repeat GET requests and reports each one. The returned
// error carries the exit code of the first failure.
func runCalls(ctx context.Context, q *queryable.Queryable, formatter output.Formatter, repeat int) error {
	var first error
	for i := 0; i < repeat; i++ {
		start := time.Now()
		result, err := q.Get(ctx)
		formatter.FormatCall(&output.CallResult{
			Method:   "GET",
			URL:      q.RequestURL(),
			Result:   result,
			Err:      err,
			Duration: time.Since(start),
		})
		if err != nil && first == nil {
			first = withExitCode(classify(err), err)
		}
		if queryable.IsAbort(err) {
			break
		}
	}
	return first
}

// classify maps a call error to an exit code
func classify(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if queryable.IsAbort(err) {
		return ExitNetworkError
	}
	var (
		urlErr *url.Error
		netErr net.Error
	)
	if !queryable.IsHTTPRequestError(err) && (errors.As(err, &urlErr) || errors.As(err, &netErr)) {
		return ExitNetworkError
	}
	return ExitRequestFailure
}

// watchConfig re-runs whenever the config file is written
func watchConfig(ctx context.Context, cmd *cobra.Command, logger zerolog.Logger, changed map[string]bool, ex *env.Expander, run func(*config.Config) error) error {
	path := getOpts.config
	if path == "" {
		path = config.FindConfig(".")
	}
	if path == "" {
		return withExitCode(ExitUsageError, fmt.Errorf("--watch needs a config file (--config or .hitquery.{json,yaml,yml,toml})"))
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to watch %s: %w", path, err))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching %s for changes... (press Ctrl+C to stop)\n\n", path)

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	rerun := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			fmt.Fprintf(cmd.ErrOrStderr(), "\nConfig changed: %s\nRe-running...\n\n", path)
			cfg, err := resolveConfig(path, &getOpts, changed, ex)
			if err != nil {
				logger.Error().Err(err).Msg("config reload failed")
				continue
			}
			if err := run(cfg); err != nil {
				logger.Warn().Err(err).Msg("run failed")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching %s for changes... (press Ctrl+C to stop)\n", path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("watcher error")
		}
	}
}
