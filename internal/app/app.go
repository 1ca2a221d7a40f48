// Package app wires all Scramblecast subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject stand-ins via functional options (WithStore,
// WithRecorder, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/powerage/scramblecast/internal/analyze"
	"github.com/powerage/scramblecast/internal/config"
	"github.com/powerage/scramblecast/internal/decode"
	"github.com/powerage/scramblecast/internal/health"
	"github.com/powerage/scramblecast/internal/httpapi"
	"github.com/powerage/scramblecast/internal/observe"
	"github.com/powerage/scramblecast/internal/queue"
	"github.com/powerage/scramblecast/internal/recorder"
	"github.com/powerage/scramblecast/internal/resilience"
	"github.com/powerage/scramblecast/internal/runner"
	"github.com/powerage/scramblecast/internal/schedule"
	"github.com/powerage/scramblecast/internal/store"
	"github.com/powerage/scramblecast/internal/transcribe"
	"github.com/powerage/scramblecast/pkg/provider/llm"
	"github.com/powerage/scramblecast/pkg/provider/llm/anyllm"
	openaillm "github.com/powerage/scramblecast/pkg/provider/llm/openai"
)

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes and runs the Scramblecast pipeline.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems — initialised in New, torn down in Shutdown.
	gate      *store.Gate
	queue     *queue.Queue
	svc       *runner.Service
	scheduler *schedule.Scheduler
	httpSrv   *http.Server

	// Injected test doubles; nil means build from config.
	injectedStore       store.Store
	injectedRecorder    runner.Recorder
	injectedTranscriber runner.Transcriber
	injectedDecoder     analyze.Decoder

	// logLevel, when set, is retargeted on config reload.
	logLevel *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	// schedMu guards scheduler replacement on config reload.
	schedMu sync.Mutex

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a run store instead of connecting one from config. The
// gate is created already established.
func WithStore(s store.Store) Option {
	return func(a *App) { a.injectedStore = s }
}

// WithRecorder injects a recorder instead of creating one from config.
func WithRecorder(r runner.Recorder) Option {
	return func(a *App) { a.injectedRecorder = r }
}

// WithTranscriber injects a transcriber instead of creating one from config.
func WithTranscriber(t runner.Transcriber) Option {
	return func(a *App) { a.injectedTranscriber = t }
}

// WithDecoder injects a remote decode client instead of creating one from
// config. Pass nil to force the credential-missing analysis path.
func WithDecoder(d analyze.Decoder) Option {
	return func(a *App) { a.injectedDecoder = d }
}

// WithMetrics records pipeline and HTTP metrics on m instead of the global
// default instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the app the level var backing the process logger so a
// config reload can change verbosity without a restart.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring all subsystems together. Construction is
// synchronous except for the store: the database connection is established by
// Run, and until then the enqueue surface reports not-ready.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.initStore()
	a.queue = queue.New(context.Background())
	a.closers = append(a.closers, func() error {
		a.queue.Close()
		return nil
	})

	rec, err := a.buildRecorder()
	if err != nil {
		return nil, fmt.Errorf("app: init recorder: %w", err)
	}
	tr, err := a.buildTranscriber()
	if err != nil {
		return nil, fmt.Errorf("app: init transcriber: %w", err)
	}
	an, err := a.buildAnalyzer()
	if err != nil {
		return nil, fmt.Errorf("app: init analyzer: %w", err)
	}

	run := runner.NewRunner(rec, tr, an, runner.WithMetrics(a.metrics))
	a.svc = runner.NewService(a.gate, a.queue, run, cfg.Stream.ClipSeconds,
		runner.WithServiceMetrics(a.metrics))

	a.scheduler, err = schedule.New(cfg.Schedule.Cron, cfg.Schedule.Timezone, a.svc)
	if err != nil {
		return nil, fmt.Errorf("app: init scheduler: %w", err)
	}

	h := health.New(
		health.StoreChecker(a.gate),
		health.AudioDirChecker(cfg.Stream.AudioDir),
	)
	api := httpapi.NewServer(a.svc, a.gate,
		httpapi.WithHealth(h),
		httpapi.WithMetrics(a.metrics),
		httpapi.WithCORSOrigins(cfg.Server.CORSOrigins),
	)
	a.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore builds the store gate for the configured backend. Postgres and
// SQLite connect lazily through [store.Gate.Establish]; an injected or
// in-memory store is ready immediately.
func (a *App) initStore() {
	switch {
	case a.injectedStore != nil:
		a.gate = store.NewReadyGate(a.injectedStore)
	case a.cfg.Store.Backend == config.StoreMemory:
		a.gate = store.NewReadyGate(store.NewMemoryStore())
	case a.cfg.Store.Backend == config.StoreSQLite:
		path := a.cfg.Store.SQLitePath
		a.gate = store.NewGate(func(ctx context.Context) (store.Store, error) {
			return store.OpenSQLite(ctx, path)
		})
	default:
		dsn := a.cfg.Store.PostgresDSN
		a.gate = store.NewGate(func(ctx context.Context) (store.Store, error) {
			return store.ConnectPostgres(ctx, dsn)
		})
	}
	a.closers = append(a.closers, a.gate.Close)
}

func (a *App) buildRecorder() (runner.Recorder, error) {
	if a.injectedRecorder != nil {
		return a.injectedRecorder, nil
	}
	return recorder.New(recorder.Config{
		StreamURL:  a.cfg.Stream.URL,
		Referer:    a.cfg.Stream.Referer,
		UserAgent:  a.cfg.Stream.UserAgent,
		AudioDir:   a.cfg.Stream.AudioDir,
		CookiePath: a.cfg.Stream.CookiePath,
		FFmpegPath: a.cfg.Stream.FFmpegPath,
	})
}

func (a *App) buildTranscriber() (runner.Transcriber, error) {
	if a.injectedTranscriber != nil {
		return a.injectedTranscriber, nil
	}

	switch a.cfg.Transcriber.Mode {
	case config.TranscriberNative:
		n, err := transcribe.NewNative(a.cfg.Transcriber.ModelPath,
			transcribe.WithNativeLanguage(a.cfg.Transcriber.Language),
			transcribe.WithNativeFFmpeg(a.cfg.Stream.FFmpegPath),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, n.Close)
		return n, nil
	default:
		return transcribe.NewExec(a.cfg.Transcriber.Command, a.cfg.Transcriber.Args...)
	}
}

// buildAnalyzer assembles the scramble analyzer: local extraction plus the
// remote decode client behind a circuit breaker. A missing provider or
// credential yields a nil decoder, which the analyzer reports as a soft note
// on each run rather than an error here.
func (a *App) buildAnalyzer() (*analyze.Analyzer, error) {
	decoder := a.injectedDecoder
	if decoder == nil {
		d, err := a.buildDecoder()
		if err != nil {
			return nil, err
		}
		decoder = d
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "decode",
		MaxFailures:  a.cfg.Decode.MaxFailures,
		ResetTimeout: time.Duration(a.cfg.Decode.ResetSeconds) * time.Second,
	})
	return analyze.New(decoder,
		analyze.WithBreaker(cb),
		analyze.WithMetrics(a.metrics),
	), nil
}

func (a *App) buildDecoder() (analyze.Decoder, error) {
	if a.cfg.Decode.Provider == "" {
		return nil, nil
	}

	provider, err := a.buildLLMProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}
	return decode.NewClient(provider)
}

func (a *App) buildLLMProvider() (llm.Provider, error) {
	d := a.cfg.Decode
	if d.Provider == "openai" {
		if d.APIKey == "" {
			slog.Warn("decode.api_key is empty, remote decode disabled")
			return nil, nil
		}
		var opts []openaillm.Option
		if d.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(d.BaseURL))
		}
		return openaillm.New(d.APIKey, d.Model, opts...)
	}

	var opts []anyllmlib.Option
	if d.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(d.APIKey))
	}
	if d.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(d.BaseURL))
	}
	return anyllm.New(d.Provider, d.Model, opts...)
}

// Service exposes the run service, mainly for tests.
func (a *App) Service() *runner.Service { return a.svc }

// Gate exposes the store gate, mainly for tests.
func (a *App) Gate() *store.Gate { return a.gate }

// Run serves until ctx is cancelled: it establishes the store connection,
// starts the scheduler, and serves HTTP. A clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.gate.Establish(gctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("app: establish store: %w", err)
		}
		slog.Info("run store established", "backend", a.cfg.Store.Backend)
		return nil
	})

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.schedMu.Lock()
		a.scheduler.Start()
		a.schedMu.Unlock()

		<-gctx.Done()

		a.schedMu.Lock()
		a.scheduler.Stop()
		a.schedMu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// HandleConfigChange applies the hot-reloadable subset of a changed config:
// log level, cron schedule, and clip length. Everything else requires a
// restart and is ignored with a log line from the differ.
func (a *App) HandleConfigChange(old, next *config.Config) {
	d := config.Diff(old, next)
	if !d.Any() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.ClipSecondsChanged {
		a.svc.SetClipSeconds(d.NewClipSeconds)
		slog.Info("clip length changed", "seconds", d.NewClipSeconds)
	}

	if d.ScheduleChanged {
		repl, err := schedule.New(d.NewSchedule.Cron, d.NewSchedule.Timezone, a.svc)
		if err != nil {
			slog.Error("schedule change rejected", "error", err)
			return
		}
		a.schedMu.Lock()
		a.scheduler.Stop()
		a.scheduler = repl
		a.scheduler.Start()
		a.schedMu.Unlock()
		slog.Info("schedule changed", "cron", d.NewSchedule.Cron, "timezone", d.NewSchedule.Timezone)
	}
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
