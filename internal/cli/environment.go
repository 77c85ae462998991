package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/freshness"
	"github.com/unkn0wn-root/freshness/chartsync"
	"github.com/unkn0wn-root/freshness/client"
	"github.com/unkn0wn-root/freshness/config"
	asynchook "github.com/unkn0wn-root/freshness/hooks/async"
	zaplog "github.com/unkn0wn-root/freshness/log/zap"
	"github.com/unkn0wn-root/freshness/monitor"
)

// environment is the composition root shared by subcommands.
type environment struct {
	cfg   config.Config
	zl    *zap.Logger
	log   freshness.Logger
	hooks *asynchook.Hooks
	reg   *freshness.Registry
	co    *freshness.Coordinator
	svc   *monitor.Service
	bus   *chartsync.Bus
}

func newEnvironment(cfg config.Config, logOut io.Writer) (*environment, error) {
	zl, err := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return nil, err
	}
	api, err := client.New(cfg.APIBase)
	if err != nil {
		return nil, err
	}

	log := zaplog.New(zl)
	hooks := asynchook.New(freshness.LogHooks{Log: log}, 1, 256)
	reg := freshness.NewRegistry(freshness.Options{
		Logger:   log,
		Hooks:    hooks,
		Defaults: cfg.Settings(),
	})
	co := freshness.NewCoordinator(reg, freshness.CoordinatorOptions{})
	svc := monitor.NewService(co, monitor.HTTPSource{C: api}, monitor.ServiceOptions{
		Expiry: cfg.CacheExpiry,
		Logger: log,
	})

	bus := chartsync.NewBus(chartsync.Options{
		Debounce: cfg.SyncDebounce,
		Settle:   cfg.SyncSettle,
		Logger:   log,
		Hooks:    hooks,
	})

	log.Debug("environment ready", freshness.Fields{"api": api.BaseURL(), "expiry": cfg.CacheExpiry})
	return &environment{cfg: cfg, zl: zl, log: log, hooks: hooks, reg: reg, co: co, svc: svc, bus: bus}, nil
}

// Close stops background work. Every component is closed even if one fails.
func (e *environment) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := e.co.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("close coordinator: %w", err))
	}
	if err := e.reg.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("close registry: %w", err))
	}
	e.hooks.Close()
	_ = e.zl.Sync() // stderr sync fails on terminals
	return result.ErrorOrNil()
}

func newLogger(level, format string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(core).Named("monitor"), nil
}
