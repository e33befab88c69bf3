// internal/processor/trade.go
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/feedgate/trade-connector/internal/metrics"
	"github.com/feedgate/trade-connector/internal/model"
	"github.com/feedgate/trade-connector/internal/norm"
	"github.com/feedgate/trade-connector/pkg/kafka"
	"github.com/feedgate/trade-connector/pkg/logger"
	"github.com/feedgate/trade-connector/pkg/ws"
)

var tracer = otel.Tracer("connector/processor/trade")

// TradeProcessor нормализует кадры venue-потока в канонические конверты
// и публикует их в лог с ключом venue|symbol.
type TradeProcessor struct {
	producer kafka.Producer
	topic    string
	venue    string
	symbols  map[string]struct{}
	connID   uint64
	scaler   norm.TimeScaler
	seq      *norm.SequenceAssigner
	log      *logger.Logger
}

// NewTradeProcessor создаёт процессор. SequenceAssigner инжектируется:
// он разделяется всеми вызовами Process в рамках одного соединения.
func NewTradeProcessor(
	producer kafka.Producer,
	topic, venue string,
	symbols []string,
	connID uint64,
	scaler norm.TimeScaler,
	seq *norm.SequenceAssigner,
	log *logger.Logger,
) Processor {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &TradeProcessor{
		producer: producer,
		topic:    topic,
		venue:    venue,
		symbols:  set,
		connID:   connID,
		scaler:   scaler,
		seq:      seq,
		log:      log.Named("trade"),
	}
}

// Run последовательно обрабатывает кадры до закрытия канала.
// Однопоточность важна: порядок кадров на проводе семантически значим.
func (tp *TradeProcessor) Run(ctx context.Context, in <-chan ws.RawMessage) error {
	for raw := range in {
		if err := tp.Process(ctx, raw); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (tp *TradeProcessor) Process(ctx context.Context, raw ws.RawMessage) error {
	ctx, span := tracer.Start(ctx, "Process")
	defer span.End()
	metrics.FramesTotal.Inc()
	start := time.Now()

	// UseNumber сохраняет большие целые (ns-метки, seq) без потери точности.
	dec := json.NewDecoder(bytes.NewReader(raw.Data))
	dec.UseNumber()
	var msg interface{}
	if err := dec.Decode(&msg); err != nil {
		metrics.ParseErrors.Inc()
		tp.log.WithContext(ctx).Debugw("frame is not valid JSON, skipping",
			zap.ByteString("raw", raw.Data),
			zap.Error(err),
		)
		span.RecordError(err)
		return nil
	}

	for _, candidate := range norm.Flatten(msg) {
		tr, ok := norm.Extract(candidate, tp.scaler)
		if !ok {
			metrics.ExtractDrops.Inc()
			continue
		}
		if _, ok := tp.symbols[tr.Symbol]; !ok {
			metrics.SymbolFilterDrops.Inc()
			continue
		}

		// Venue-последовательность доверяется как есть; локальный счётчик
		// при этом не продвигается.
		seq := tr.Seq
		if !tr.HasSeq {
			seq = tp.seq.Next(tr.Symbol)
		}

		env := model.NewEnvelope(tp.venue, tr, seq, tp.connID)
		payload, err := json.Marshal(env)
		if err != nil {
			tp.log.WithContext(ctx).Errorw("marshal envelope failed", zap.Error(err))
			span.RecordError(err)
			continue
		}

		if err := tp.producer.Publish(ctx, tp.topic, env.PartitionKey(), payload); err != nil {
			metrics.PublishErrors.Inc()
			tp.log.WithContext(ctx).Errorw("publish trade failed",
				zap.String("symbol", env.Symbol),
				zap.Error(err),
			)
			span.RecordError(err)
			// Публикация в реальном режиме синхронна: отказ синка фатален
			// для соединения, конверт не может быть потерян молча.
			return fmt.Errorf("publish trade %s seq=%d: %w", env.Symbol, env.Seq, err)
		}

		span.SetAttributes(attribute.String("symbol", env.Symbol))
		metrics.TradesPublished.Inc()
		metrics.PublishLatency.Observe(time.Since(start).Seconds())
	}
	return nil
}
