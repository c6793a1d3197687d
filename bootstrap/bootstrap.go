// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/adapters/jsonstore"
	"github.com/schemasmith/schemasmith/adapters/metrics"
	"github.com/schemasmith/schemasmith/auth"
	"github.com/schemasmith/schemasmith/config"
	"github.com/schemasmith/schemasmith/crud"
	"github.com/schemasmith/schemasmith/dataaccess"
	"github.com/schemasmith/schemasmith/pipeline"
	"github.com/schemasmith/schemasmith/publish"
	"github.com/schemasmith/schemasmith/schemadoc"
)

// Version is the service version reported by /version.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger      zerolog.Logger
	Config      *config.Config
	Holder      *config.Holder
	Store       *jsonstore.Store
	Schema      *schemadoc.Editor
	Handles     *dataaccess.Manager
	Dispatcher  *crud.Dispatcher
	Synthesizer *crud.Synthesizer
	Coordinator *publish.Coordinator
	Metrics     *metrics.Collector
	HTTPServer  *http.Server
}

// New creates and initializes the application from the given config file.
// An empty path uses environment variables and defaults.
func New(cfgPath string) (*App, error) {
	cfg, err := config.LoadWithFallback(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("env", cfg.Env).Msg("initializing schemasmith")

	a := &App{Logger: logger, Config: cfg}

	for _, dir := range []string{cfg.DataDir, cfg.ModelsDir(), cfg.BuildsDir(), filepath.Dir(cfg.Schema.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	a.Store, err = jsonstore.New(cfg.ModelsDir())
	if err != nil {
		return nil, fmt.Errorf("init definition store: %w", err)
	}
	a.Schema = schemadoc.NewEditor(cfg.Schema.Path)
	a.Handles = dataaccess.NewManager(cfg.SQLDriver(), cfg.Database.DSN, logger)

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, 0)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("no jwt secret configured, using a process-local random secret")
	}

	a.Dispatcher = crud.NewDispatcher()
	var crudRec crud.Recorder
	if a.Metrics != nil {
		crudRec = a.Metrics
	}
	a.Synthesizer = crud.NewSynthesizer(a.Store, a.Handles, a.Dispatcher, tokens, crudRec, logger, cfg.Production())

	runner := pipeline.New(a.Schema, cfg.BuildsDir(), pipeline.Config{
		Apply:            cfg.Tools.Apply,
		ApplyDestructive: cfg.Tools.ApplyDestructive,
		Generate:         cfg.Tools.Generate,
		StepTimeout:      cfg.Tools.Timeout,
	}, logger)

	var pubRec publish.Recorder
	if a.Metrics != nil {
		pubRec = a.Metrics
	}
	a.Coordinator = publish.New(a.Store, a.Schema, runner, a.Handles, a.Synthesizer, pubRec, logger)

	a.restoreHandle()

	router := a.buildRouter()
	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfgPath != "" {
		if err := a.watchConfig(cfgPath); err != nil {
			logger.Warn().Err(err).Msg("config hot reload disabled")
		}
	}

	return a, nil
}

// restoreHandle re-opens the newest surviving build artifact and mounts the
// routes of every registered definition. Without an artifact the entities
// stay inert until the next successful publish.
func (a *App) restoreHandle() {
	buildDir, ok := newestBuild(a.Config.BuildsDir())
	if !ok {
		a.Logger.Info().Msg("no build artifact found, entities inert until first publish")
		return
	}
	if err := a.Handles.Swap(buildDir); err != nil {
		a.Logger.Warn().Err(err).Str("build_dir", buildDir).Msg("restoring data-access handle failed")
		return
	}
	a.Synthesizer.Reconcile(context.Background())
}

// newestBuild returns the lexically greatest build directory. Build names are
// unix-millisecond timestamps, so lexical order is creation order for
// same-length names.
func newestBuild(buildsDir string) (string, bool) {
	entries, err := os.ReadDir(buildsDir)
	if err != nil {
		return "", false
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return filepath.Join(buildsDir, names[len(names)-1]), true
}

// watchConfig wires file and SIGHUP driven config reloads. Only logging
// level changes take effect on a live process; the rest need a restart.
func (a *App) watchConfig(cfgPath string) error {
	holder, err := config.NewHolder(cfgPath, a.Logger)
	if err != nil {
		return err
	}
	a.Holder = holder

	holder.OnChange(func(cfg *config.Config) {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
		}
	})
	holder.OnError(func(error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})

	if err := holder.WatchFile(); err != nil {
		return err
	}
	holder.WatchSignals()
	return nil
}

// Run starts the HTTP server and blocks until a signal or server error.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application: the server drains, any
// in-flight schema mutation finishes, then the handle closes.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	done := make(chan struct{})
	go func() {
		a.Coordinator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.Logger.Warn().Msg("shutdown timeout with schema mutation still running")
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}
	if err := a.Handles.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("data-access handle close error")
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
