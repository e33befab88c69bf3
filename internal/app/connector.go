// internal/app/connector.go
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feedgate/trade-connector/internal/config"
	"github.com/feedgate/trade-connector/internal/httpserver"
	"github.com/feedgate/trade-connector/internal/metrics"
	"github.com/feedgate/trade-connector/internal/model"
	"github.com/feedgate/trade-connector/internal/norm"
	"github.com/feedgate/trade-connector/internal/processor"
	"github.com/feedgate/trade-connector/internal/synthetic"
	"github.com/feedgate/trade-connector/internal/transport"
	"github.com/feedgate/trade-connector/pkg/kafka"
	"github.com/feedgate/trade-connector/pkg/logger"
	"github.com/feedgate/trade-connector/pkg/telemetry"
	"github.com/feedgate/trade-connector/pkg/ws"
)

// Run собирает сервис из конфига и блокирует до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	metrics.Register()
	transport.RegisterMetrics(nil)

	// Трассировка
	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Telemetry.ServiceVersion = cfg.ServiceVersion
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownSafe(ctx, "telemetry", func() error { return shutdownTracer(ctx) }, log)

	// Идентичность соединения: один connID на весь процесс.
	connID := model.NewConnID()
	log.WithContext(ctx).Infow("connector identity",
		"venue", cfg.Venue,
		"mode", cfg.Mode,
		"src_conn_id", connID,
	)

	// Kafka Producer
	kafkaProd, err := kafka.NewProducer(ctx, kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		RequiredAcks:   cfg.Kafka.Acks,
		Timeout:        cfg.Kafka.Timeout,
		Compression:    cfg.Kafka.Compression,
		FlushFrequency: cfg.Kafka.FlushFrequency,
		FlushMessages:  cfg.Kafka.FlushMessages,
		Backoff:        cfg.Kafka.Backoff,
	}, log)
	if err != nil {
		return fmt.Errorf("kafka producer init: %w", err)
	}
	defer shutdownSafe(ctx, "kafka-producer", kafkaProd.Close, log)

	// HTTP: /metrics, /healthz, /readyz (readiness = Kafka ping).
	readiness := func() error { return kafkaProd.Ping(ctx) }
	httpSrv := httpserver.New(httpserver.Config{
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		MetricsPath:     cfg.HTTP.MetricsPath,
		HealthzPath:     cfg.HTTP.HealthzPath,
		ReadyzPath:      cfg.HTTP.ReadyzPath,
	}, readiness, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Run(ctx) })

	switch cfg.Mode {
	case config.ModeSynthetic:
		gen := synthetic.New(kafkaProd, cfg.Kafka.Topic, cfg.Venue, cfg.Symbols, cfg.Synthetic.Interval, connID, log)
		g.Go(func() error { return gen.Run(ctx) })

	case config.ModeWS:
		wsConn, err := ws.NewConnector(ws.Config{
			URL:               cfg.WS.URL,
			Symbols:           cfg.Symbols,
			SubscribeTemplate: cfg.WS.SubscribeTemplate,
			BufferSize:        cfg.WS.BufferSize,
			ReadTimeout:       cfg.WS.ReadTimeout,
			SubscribeTimeout:  cfg.WS.SubscribeTimeout,
			RateLimit:         cfg.WS.RateLimit,
			BackoffConfig:     cfg.WS.Backoff,
		}, log)
		if err != nil {
			return fmt.Errorf("ws connector init: %w", err)
		}
		defer shutdownSafe(ctx, "ws-connector", wsConn.Close, log)

		proc := processor.NewTradeProcessor(
			kafkaProd, cfg.Kafka.Topic, cfg.Venue, cfg.Symbols,
			connID, norm.MagnitudeScaler{}, norm.NewSequenceAssigner(), log,
		)

		// Подключаемся один раз. Реконнект — ответственность супервизора
		// процесса: при обрыве потока выходим с ошибкой.
		g.Go(func() error {
			msgCh, err := transport.StreamWithMetrics(ctx, cfg.Venue, wsConn)
			if err != nil {
				return fmt.Errorf("ws connect failed: %w", err)
			}
			if err := proc.Run(ctx, msgCh); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if err := wsConn.Err(); err != nil {
				return fmt.Errorf("ws stream terminated: %w", err)
			}
			return ctx.Err()
		})

	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.WithContext(ctx).Infow("connector stopped by context")
			return nil
		}
		return err
	}
	return nil
}

// shutdownSafe оборачивает вызов Close()/Shutdown() с логированием.
func shutdownSafe(ctx context.Context, name string, fn func() error, log *logger.Logger) {
	log.WithContext(ctx).Infow(fmt.Sprintf("%s: shutting down", name))
	if err := fn(); err != nil {
		log.WithContext(ctx).Errorw(fmt.Sprintf("%s shutdown error", name), zap.Error(err))
	} else {
		log.WithContext(ctx).Infow(fmt.Sprintf("%s: shutdown complete", name))
	}
}
