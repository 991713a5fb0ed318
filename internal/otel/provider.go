// Package otel exports the guard's log records and incident counters
// through OpenTelemetry. Records always go to the per-session .otel.log
// file; an OTLP collector is added when an endpoint is configured.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/trackguard/extension/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Sink           io.Writer // session .otel.log
	Endpoint       string    // OTLP/HTTP collector, optional
	Insecure       bool
}

// Provider owns the log and meter providers. The zero value (disabled)
// has neither and its methods are no-ops.
type Provider struct {
	logs   *sdklog.LoggerProvider
	meters *sdkmetric.MeterProvider
}

// New builds the providers and installs the meter provider globally, so
// the dispatcher and monitor counters start exporting.
func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if cfg.Sink == nil {
		return nil, errors.New("otel enabled without a sink")
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	fileLogs, err := stdoutlog.New(stdoutlog.WithWriter(cfg.Sink))
	if err != nil {
		return nil, fmt.Errorf("otel log file exporter: %w", err)
	}
	logOpts = append(logOpts, sdklog.WithProcessor(
		sdklog.NewBatchProcessor(fileLogs, sdklog.WithExportTimeout(cfg.BatchTimeout))))

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		collector, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otel collector exporter: %w", err)
		}
		logOpts = append(logOpts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(collector, sdklog.WithExportTimeout(cfg.BatchTimeout))))
	}

	fileMetrics, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Sink))
	if err != nil {
		return nil, fmt.Errorf("otel metric exporter: %w", err)
	}
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = time.Minute
	}

	p := &Provider{
		logs: sdklog.NewLoggerProvider(logOpts...),
		meters: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(fileMetrics, sdkmetric.WithInterval(interval))),
		),
	}
	otel.SetMeterProvider(p.meters)
	return p, nil
}

// LoggerProvider feeds the otelslog bridge; nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Flush pushes pending records and a final counter reading to the sink.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	if p.logs != nil {
		errs = append(errs, p.logs.ForceFlush(ctx))
	}
	if p.meters != nil {
		errs = append(errs, p.meters.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.logs != nil {
		errs = append(errs, p.logs.Shutdown(ctx))
	}
	if p.meters != nil {
		errs = append(errs, p.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// FromSettings maps the otel.* settings onto a Config writing to sink.
func FromSettings(cfg config.OTelConfig, sink io.Writer) Config {
	return Config{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		BatchTimeout:   cfg.BatchTimeout,
		MetricInterval: cfg.MetricInterval,
		Sink:           sink,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
	}
}
