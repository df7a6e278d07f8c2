package cli

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/bundle"
	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/feed"
	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/syncer"
)

// app holds the components a command works with, built from the
// config file.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    *OutputFormatter

	store *store.Store
	feed  *feed.Client
	orch  *syncer.Orchestrator
}

// newHTTPClient bounds connecting and waiting for response headers by
// timeout. The body read is left unbounded so a large package on a slow
// link can finish; the request context still cancels it.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file named by --config.
func loadConfig(opts *RootOptions, out *OutputFormatter) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	out.VerboseLog("config: %s", path)
	return cfg, nil
}

// openApp wires the store, feed client, validator and orchestrator.
// overrides adjust the loaded config from command flags. Nothing
// touches the disk or the network until a command asks.
func openApp(opts *RootOptions, cmd *cobra.Command, overrides ...func(*config.Config)) (*app, error) {
	out := newFormatter(opts, cmd)
	cfg, err := loadConfig(opts, out)
	if err != nil {
		return nil, err
	}
	for _, fn := range overrides {
		fn(cfg)
	}
	logger := newLogger(opts, cfg, out.GetErrWriter())

	st := store.New(store.Config{
		Dir:        cfg.DataDir,
		QuotaBytes: cfg.QuotaBytes,
		Logger:     logger.With("component", "store"),
	})

	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1 // feed.Config treats zero as "use the default"
	}
	client, err := feed.NewClient(feed.Config{
		FeedURL:          cfg.FeedURL,
		AssetPattern:     cfg.AssetPattern,
		Token:            cfg.Token,
		MaxRetries:       retries,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		MaxDownloadBytes: cfg.MaxDownloadBytes,
		HTTPClient:       newHTTPClient(cfg.HTTPTimeout),
		Logger:           logger.With("component", "feed"),
	})
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "invalid feed settings", err)
	}

	orch, err := syncer.New(syncer.Deps{
		Feed:      client,
		Extractor: bundle.NewValidator(logger.With("component", "bundle")),
		Store:     st,
	}, syncer.Config{
		PollInterval: cfg.PollInterval,
		AutoInstall:  cfg.AutoInstall,
		Logger:       logger.With("component", "syncer"),
	})
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeGeneric, "failed to build orchestrator", err)
	}

	return &app{cfg: cfg, logger: logger, out: out, store: st, feed: client, orch: orch}, nil
}

// initStore opens the local store without contacting the feed.
func (a *app) initStore(ctx context.Context) error {
	if err := a.store.Init(ctx); err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeStore, "failed to open local store", err)
	}
	return nil
}

func (a *app) Close() {
	a.orch.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing store", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
