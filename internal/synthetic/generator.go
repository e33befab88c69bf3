// internal/synthetic/generator.go
package synthetic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feedgate/trade-connector/internal/metrics"
	"github.com/feedgate/trade-connector/internal/model"
	"github.com/feedgate/trade-connector/internal/norm"
	"github.com/feedgate/trade-connector/pkg/kafka"
	"github.com/feedgate/trade-connector/pkg/logger"
)

// Generator производит синтетические конверты для оффлайн-обкатки
// потребителей. Схема на проводе идентична реальному пути.
type Generator struct {
	producer kafka.Producer
	topic    string
	venue    string
	symbols  []string
	interval time.Duration
	connID   uint64
	log      *logger.Logger
}

func New(
	producer kafka.Producer,
	topic, venue string,
	symbols []string,
	interval time.Duration,
	connID uint64,
	log *logger.Logger,
) *Generator {
	return &Generator{
		producer: producer,
		topic:    topic,
		venue:    venue,
		symbols:  symbols,
		interval: interval,
		connID:   connID,
		log:      log.Named("synthetic"),
	}
}

// Run запускает по одной горутине на символ и блокирует до отмены ctx.
// Счётчик последовательности приватен для каждой горутины: общего
// состояния между символами нет, блокировки не нужны.
func (g *Generator) Run(ctx context.Context) error {
	g.log.Sugar().Infow("synthetic: starting",
		"symbols", g.symbols, "interval", g.interval)

	grp, ctx := errgroup.WithContext(ctx)
	for _, sym := range g.symbols {
		grp.Go(func() error { return g.runSymbol(ctx, sym) })
	}
	return grp.Wait()
}

func (g *Generator) runSymbol(ctx context.Context, symbol string) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			seq++
			if err := g.emit(ctx, symbol, seq); err != nil {
				// Синтетике нечего терять по порядку: публикационные
				// сбои логируются, генерация продолжается.
				metrics.PublishErrors.Inc()
				g.log.WithContext(ctx).Warnw("synthetic publish failed",
					zap.String("symbol", symbol),
					zap.Uint64("seq", seq),
					zap.Error(err),
				)
			}
		}
	}
}

func (g *Generator) emit(ctx context.Context, symbol string, seq uint64) error {
	now := model.NowNanos()
	tr := norm.Trade{
		Symbol:     symbol,
		Price:      10000.0 + float64(seq%100)*0.01,
		Qty:        0.001 + float64(seq%10)*0.0001,
		Aggressor:  aggressorFor(seq),
		TradeID:    fmt.Sprintf("%s-%d-%d", symbol, seq, now),
		TSExchange: now,
	}
	env := model.NewEnvelope(g.venue, tr, seq, g.connID)
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := g.producer.Publish(ctx, g.topic, env.PartitionKey(), payload); err != nil {
		return err
	}
	metrics.TradesPublished.Inc()
	return nil
}

func aggressorFor(seq uint64) string {
	if seq%2 == 0 {
		return "buy"
	}
	return "sell"
}
