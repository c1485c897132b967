package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/api"
	"tableflip.dev/agenda/pkg/commands/options"
	"tableflip.dev/agenda/pkg/config"
	"tableflip.dev/agenda/pkg/enrich"
	"tableflip.dev/agenda/pkg/mutate"
	"tableflip.dev/agenda/pkg/prefs"
)

// env is what every server-facing command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	client *api.Client
	closer io.Closer
}

// loadEnv reads and validates the configuration. Logs go to logTo, or to
// the configured log file when toFile is set.
func loadEnv(logTo io.Writer, toFile bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := cfg.Level()

	e := &env{cfg: cfg}
	if toFile {
		logTo = io.Discard
		if cfg.LogFile != "" {
			f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file: %w", err)
			}
			logTo = f
			e.closer = f
		}
	}
	e.logger = slog.New(slog.NewTextHandler(logTo, &slog.HandlerOptions{Level: level}))

	e.client, err = api.New(api.Options{
		BaseURL: cfg.BaseURL,
		Org:     cfg.Org,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
		Logger:  e.logger,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.logger.Debug("config loaded", "file", cfg.File, "org", cfg.Org, "base_url", cfg.BaseURL)
	return e, nil
}

func (e *env) Close() {
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

// store is the on-disk preference store.
func (e *env) store() *prefs.Disk {
	return prefs.Open(e.cfg.PrefsPath, e.logger)
}

// scoped returns an in-memory copy of the saved preferences with the range
// flags applied, so one-shot commands never rewrite them.
func (e *env) scoped(ro *options.RangeOptions) (prefs.Store, error) {
	p, err := ro.Apply(e.store().Load())
	if err != nil {
		return nil, err
	}
	return prefs.NewMemory(p), nil
}

type coordinatorOptions struct {
	Prefs     prefs.Store
	Confirmer mutate.Confirmer
	Modal     agenda.Modal
	Range     *options.RangeOptions
}

func (e *env) coordinator(o coordinatorOptions) (*agenda.Coordinator, error) {
	store := o.Prefs
	if store == nil {
		store = e.store()
	}
	opts := agenda.Options{
		Client: e.client,
		Prefs:  store,
		Cache: enrich.New(e.client, enrich.Options{
			Size:   e.cfg.CacheSize,
			TTL:    e.cfg.CacheTTL,
			Logger: e.logger,
		}),
		Logger:    e.logger,
		Confirmer: o.Confirmer,
		Modal:     o.Modal,
		WeekStart: e.cfg.WeekStart,
	}
	if o.Range != nil {
		on, err := o.Range.GetOn(time.Now())
		if err != nil {
			return nil, err
		}
		opts.Now = on
		opts.Query = o.Range.Query
	}
	return agenda.New(opts)
}

// loaded builds a coordinator over the flag-scoped range and loads it.
func (e *env) loaded(ctx context.Context, ro *options.RangeOptions, confirmer mutate.Confirmer) (*agenda.Coordinator, error) {
	store, err := e.scoped(ro)
	if err != nil {
		return nil, err
	}
	coord, err := e.coordinator(coordinatorOptions{Prefs: store, Confirmer: confirmer, Range: ro})
	if err != nil {
		return nil, err
	}
	if err := coord.Start(ctx); err != nil {
		return nil, err
	}
	return coord, nil
}
