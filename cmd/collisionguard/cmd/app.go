package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/trackguard/extension/internal/audit"
	"github.com/trackguard/extension/internal/config"
	"github.com/trackguard/extension/internal/geo"
	"github.com/trackguard/extension/internal/influx"
	"github.com/trackguard/extension/internal/logging"
	"github.com/trackguard/extension/internal/monitor"
	"github.com/trackguard/extension/internal/notify"
	"github.com/trackguard/extension/internal/notify/websocket"
	intOtel "github.com/trackguard/extension/internal/otel"
	"github.com/trackguard/extension/internal/registry"
	"github.com/trackguard/extension/internal/worker"
	"github.com/trackguard/extension/pkg/core"
)

const defaultFlushTimeout = 10 * time.Second

// app owns the ambient stack shared by the subcommands.
type app struct {
	SessionStart time.Time
	Logs         *logging.SlogManager
	Logger       *slog.Logger
	OTel         *intOtel.Provider

	// zlog is the manager logger for the influx and audit workers.
	zlog zerolog.Logger

	mon     atomic.Pointer[monitor.Monitor]
	closers []func(context.Context) error
}

// newApp sets up logging. console receives human-readable logs; serve passes
// stderr because stdout carries the protocol.
func newApp(console io.Writer) (*app, error) {
	a := &app{
		SessionStart: time.Now(),
		Logs:         logging.NewSlogManager(),
	}
	level := viper.GetString("logLevel")

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, ExtensionName, a.SessionStart)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return logFile.Close() })

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if otelCfg.Enabled {
		f, err := os.OpenFile(filepath.Join(logsDir, ExtensionName+".otel.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open otel log file: %w", err)
		}
		otelWriter = f
		a.closers = append(a.closers, func(context.Context) error { return f.Close() })
	}
	a.OTel, err = intOtel.New(intOtel.FromSettings(otelCfg, otelWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize otel: %w", err)
	}
	a.closers = append(a.closers, a.OTel.Shutdown)

	opts := logging.Options{
		Console:  console,
		File:     logFile,
		Provider: a.OTel.LoggerProvider(),
		Sessions: a.activeSessions,
		Level:    level,
	}

	var graylogErr error
	if viper.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			graylogErr = err
		} else {
			opts.Graylog = gw
			a.closers = append(a.closers, func(context.Context) error { return gw.Close() })
		}
	}

	a.Logs.Setup(opts)
	a.Logger = a.Logs.Logger()
	a.zlog = logging.NewZerolog(logFile, ExtensionName, level, false)

	if configErr != nil {
		a.Logger.Warn("Failed to load config", "error", configErr)
	}
	if graylogErr != nil {
		a.Logger.Warn("Graylog disabled", "error", graylogErr)
	}
	a.Logger.Info("Starting", "extension", ExtensionName, "version", Version, "log", logPath)
	return a, nil
}

// Close flushes and releases everything in reverse order of setup.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultFlushTimeout)
	defer cancel()

	var errs []error
	if err := a.Logs.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// watch attaches the monitor whose session count decorates every log line.
func (a *app) watch(m *monitor.Monitor) {
	a.mon.Store(m)
}

func (a *app) activeSessions() int {
	if m := a.mon.Load(); m != nil {
		return m.ActiveSessions()
	}
	return 0
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// openStore connects the audit database. It returns nil when storage is
// disabled.
func (a *app) openStore() (*audit.Store, error) {
	db, err := audit.Open(config.GetStorageConfig(), a.zlog)
	if errors.Is(err, audit.ErrDisabled) {
		a.Logger.Info("Audit storage disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	deps := audit.Dependencies{DB: db, Logger: a.zlog, MaxPending: config.GetStorageConfig().MaxPending}
	if ref := config.GetGeorefConfig(); ref.Enabled {
		deps.Georef = &geo.Georef{Longitude: ref.Longitude, Latitude: ref.Latitude}
	}
	store := audit.NewStore(deps)
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate audit tables: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.onClose(func(context.Context) error { return sqlDB.Close() })
	}
	return store, nil
}

// buildSink wires the audit store and, when enabled, InfluxDB. The returned
// worker flushes the store and must be started by the caller.
func (a *app) buildSink() (core.Sink, *worker.Manager, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}

	workers := worker.NewManager(worker.Dependencies{
		Interval: config.GetStorageConfig().FlushInterval,
		Logger:   a.zlog,
	})

	var sinks []core.Sink
	if store != nil {
		store.Register(workers)
		sinks = append(sinks, store)
		a.onClose(func(context.Context) error {
			if n := store.Dropped(); n > 0 {
				a.Logger.Warn("Audit rows dropped while the database was unavailable", "rows", n)
			}
			return nil
		})
	}

	if cfg := config.GetInfluxConfig(); cfg.Enabled {
		backup := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("%s_influx_backup.%s.log.gzip", ExtensionName, a.SessionStart.Format("20060102_150405")))
		m := influx.NewManager(cfg, a.zlog, backup)
		if err := m.Connect(context.Background()); err != nil {
			a.Logger.Warn("InfluxDB unavailable", "error", err)
		} else {
			sinks = append(sinks, influx.NewSink(m, viper.GetString("serverName")))
			a.onClose(func(context.Context) error { return m.Close() })
		}
	}

	return audit.NewMultiSink(sinks...), workers, nil
}

// buildNotifier wires the overlay observers. host receives :DDRAW: commands
// when notify.host is set and may be nil.
func (a *app) buildNotifier(host core.Notifier) core.Notifier {
	cfg := config.GetNotifyConfig()

	var notifiers []core.Notifier
	if cfg.Log {
		notifiers = append(notifiers, notify.LogNotifier{Logger: a.Logger})
	}
	if cfg.Host && host != nil {
		notifiers = append(notifiers, host)
	}
	if cfg.Websocket.Enabled {
		server := cfg.Websocket.Server
		if server == "" {
			server = viper.GetString("serverName")
		}
		ws := websocket.New(websocket.Config{
			URL:     cfg.Websocket.URL,
			Secret:  cfg.Websocket.Secret,
			Server:  server,
			Version: Version,
		}, a.Logger)
		if err := ws.Connect(); err != nil {
			a.Logger.Warn("Overlay stream unavailable", "url", cfg.Websocket.URL, "error", err)
		} else {
			notifiers = append(notifiers, ws)
			a.onClose(func(context.Context) error { return ws.Close() })
		}
	}
	return notify.NewFanout(notifiers...)
}

// buildController returns the external controller registry: Redis when
// enabled, otherwise a static set of IDs.
func (a *app) buildController(ctx context.Context, static []uint64) core.ExternalController {
	cfg := config.GetRedisConfig()
	if !cfg.Enabled {
		return registry.NewStatic(static...)
	}
	r, err := registry.NewRedis(ctx, cfg)
	if err != nil {
		a.Logger.Warn("Controller registry unavailable", "address", cfg.Address, "error", err)
		return registry.NewStatic(static...)
	}
	a.onClose(func(context.Context) error { return r.Close() })
	a.Logger.Info("Using controller registry", "address", cfg.Address, "key", cfg.Key)
	return r
}
