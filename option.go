package fieldsync

import (
	"log/slog"
	"time"

	"github.com/fieldsync/fieldsync/internal/config"
	"github.com/fieldsync/fieldsync/internal/engine"
	"github.com/fieldsync/fieldsync/internal/netmon"
)

// openOptions collects everything Open can be configured with.
type openOptions struct {
	cfg         config.Config
	transport   engine.Transport
	watcher     *netmon.PollWatcher
	clock       engine.Clock
	policy      engine.RetryPolicy
	logger      *slog.Logger
	traceFile   string
	tracing     bool
	startOnline bool
}

func defaultOpenOptions() openOptions {
	return openOptions{
		cfg:         config.Default(),
		clock:       engine.SystemClock(),
		logger:      slog.Default(),
		startOnline: true,
	}
}

// Config holds the engine's tunables.
type Config = config.Config

// Duration is the YAML-friendly duration wrapper used by Config fields.
type Duration = config.Duration

// PollWatcher probes a URL on a fixed period and feeds connectivity into
// the client. Install one via WithWatcher.
type PollWatcher = netmon.PollWatcher

// Prober reports whether the remote side is reachable right now.
type Prober = netmon.Prober

// NewPollWatcher creates a watcher probing with probe every interval.
// A non-positive interval falls back to the built-in default.
func NewPollWatcher(interval time.Duration, probe Prober) *PollWatcher {
	return netmon.NewPollWatcher(interval, probe)
}

// HTTPProber probes by issuing a HEAD request to url with the given
// timeout. Any response at all counts as reachable.
func HTTPProber(url string, timeout time.Duration) Prober {
	return netmon.HTTPProber(url, timeout)
}

// DefaultConfig returns the configuration used when no file or options are
// supplied.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML configuration file, layering it over
// DefaultConfig and validating the result.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// Option configures a Client at Open time.
type Option func(*openOptions)

// WithConfig replaces the default configuration wholesale. The path passed
// to Open still overrides DBPath.
func WithConfig(cfg Config) Option {
	return func(o *openOptions) { o.cfg = cfg }
}

// WithBaseURL sets the URL prefix for relative endpoints.
func WithBaseURL(base string) Option {
	return func(o *openOptions) { o.cfg.BaseURL = base }
}

// WithTransport replaces the default HTTP transport. Tests use this to
// script remote behavior.
func WithTransport(t engine.Transport) Option {
	return func(o *openOptions) { o.transport = t }
}

// WithWatcher installs a connectivity prober, overriding any poll_url
// configuration.
func WithWatcher(w *netmon.PollWatcher) Option {
	return func(o *openOptions) { o.watcher = w }
}

// WithClock overrides the engine's time source. Tests pin it to drive TTL
// boundaries exactly.
func WithClock(c engine.Clock) Option {
	return func(o *openOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRetryPolicy overrides the failure classification policy, taking
// precedence over the config file's retry_policy field.
func WithRetryPolicy(p engine.RetryPolicy) Option {
	return func(o *openOptions) { o.policy = p }
}

// WithLogger sets the structured logger used by all components.
func WithLogger(l *slog.Logger) Option {
	return func(o *openOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracing initialises the global OpenTelemetry provider with the
// stdout exporter before the client starts, writing spans to outputFile
// (or os.Stdout when empty). Without this option the engine's spans are
// no-ops unless the embedding application configured a provider itself.
func WithTracing(outputFile string) Option {
	return func(o *openOptions) {
		o.tracing = true
		o.traceFile = outputFile
	}
}

// StartOffline makes the Client assume no connectivity until a watcher or
// SetOnline reports otherwise. The default assumes online, which matches
// embedders that call SetOnline from a platform signal.
func StartOffline() Option {
	return func(o *openOptions) { o.startOnline = false }
}
