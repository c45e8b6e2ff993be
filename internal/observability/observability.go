// Package observability configures process-wide structured logging and the
// optional OpenTelemetry log export.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies log records bridged to OpenTelemetry.
const instrumentationName = "github.com/florianilch/smartrade"

// Exporter names accepted in Options.Exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Options configures Instrument.
type Options struct {
	Level  slog.Level
	Format string // text or json

	Exporter string
	// Endpoint overrides the OTLP endpoint URL. Empty defers to the
	// OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string

	// Output receives local log lines. Defaults to stderr.
	Output io.Writer
}

// Instrument installs the default slog logger. With an exporter configured,
// records are additionally bridged to an OpenTelemetry LoggerProvider that is
// registered globally. The returned func flushes and stops the export.
func Instrument(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var local slog.Handler
	switch opts.Format {
	case "", "text":
		local = slog.NewTextHandler(out, handlerOpts)
	case "json":
		local = slog.NewJSONHandler(out, handlerOpts)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}

	noop := func(context.Context) error { return nil }

	if opts.Exporter == "" || opts.Exporter == ExporterNone {
		slog.SetDefault(slog.New(local))
		return noop, nil
	}

	exporter, err := newExporter(ctx, opts.Exporter, opts.Endpoint)
	if err != nil {
		return nil, err
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(opts.Level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	global.SetLoggerProvider(provider)

	// Export failures go to the local handler only; routing them through the
	// bridge would feed the failing exporter
	localLogger := slog.New(local)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		localLogger.Warn("opentelemetry export failed", "error", err)
	}))

	bridge := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(fanout{local, bridge}))

	return func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}, nil
}

func newExporter(ctx context.Context, name, endpoint string) (sdklog.Exporter, error) {
	switch name {
	case ExporterStdout:
		return stdoutlog.New()
	case ExporterOTLPHTTP:
		var opts []otlploghttp.Option
		if endpoint != "" {
			opts = append(opts, otlploghttp.WithEndpointURL(endpoint))
		}
		return otlploghttp.New(ctx, opts...)
	case ExporterOTLPGRPC:
		var opts []otlploggrpc.Option
		if endpoint != "" {
			opts = append(opts, otlploggrpc.WithEndpointURL(endpoint))
		}
		return otlploggrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", name)
	}
}

// severity maps a slog level onto the export threshold.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
