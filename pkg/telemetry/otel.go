// pkg/telemetry/otel.go
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/feedgate/trade-connector/pkg/logger"
)

// Config хранит настройки OTLP-экспортера.
type Config struct {
	OTLPEndpoint   string `mapstructure:"otel_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
	ServiceName    string `mapstructure:"-"`
	ServiceVersion string `mapstructure:"-"`
}

// ShutdownFunc останавливает TracerProvider; вызывать при graceful-shutdown.
type ShutdownFunc func(context.Context) error

// InitTracer настраивает глобальный TracerProvider с OTLP/gRPC-экспортером.
func InitTracer(ctx context.Context, cfg Config, log *logger.Logger) (ShutdownFunc, error) {
	// 1) Валидация входных параметров
	if cfg.OTLPEndpoint == "" {
		return nil, fmt.Errorf("telemetry: OTLP endpoint is required")
	}
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("telemetry: service name is required")
	}

	// 2) Контекст с таймаутом для создания экспортёра
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// 3) Настройка экспортёра
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithReconnectionPeriod(5 * time.Second),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(initCtx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: cannot create OTLP exporter: %w", err)
	}

	// 4) Ресурс с service.name и service.version
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: cannot create resource: %w", err)
	}

	// 5) TracerProvider с ParentBased sampler и батчевым экспортёром
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	// 6) Глобальный TracerProvider и CompositePropagator
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	log.Sugar().Infow("telemetry: tracer initialized",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
	)

	// 7) Функция graceful shutdown
	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Sugar().Errorw("telemetry: tracer shutdown failed", "error", err)
			return err
		}
		log.Sugar().Infow("telemetry: tracer shutdown complete")
		return nil
	}
	return shutdown, nil
}
