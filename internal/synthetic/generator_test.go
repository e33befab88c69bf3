// internal/synthetic/generator_test.go
package synthetic

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/feedgate/trade-connector/internal/model"
	"github.com/feedgate/trade-connector/pkg/logger"
)

// capturingProducer потокобезопасно копит публикации.
type capturingProducer struct {
	mu       sync.Mutex
	keys     []string
	payloads [][]byte
	fail     bool
}

func (p *capturingProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("sink down")
	}
	p.keys = append(p.keys, string(key))
	p.payloads = append(p.payloads, value)
	return nil
}
func (p *capturingProducer) Ping(ctx context.Context) error { return nil }
func (p *capturingProducer) Close() error                   { return nil }

func (p *capturingProducer) envelopes(t *testing.T) []model.TradeEnvelope {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.TradeEnvelope, 0, len(p.payloads))
	for _, payload := range p.payloads {
		var env model.TradeEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func TestGenerator_PerSymbolSequences(t *testing.T) {
	prod := &capturingProducer{}
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	gen := New(prod, "trades", "hyperliquid", []string{"BTC", "ETH"}, 5*time.Millisecond, 99, log)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := gen.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v; want deadline exceeded", err)
	}

	bySymbol := map[string][]uint64{}
	for _, env := range prod.envelopes(t) {
		if env.Venue != "hyperliquid" || env.Channel != model.ChannelTrades {
			t.Errorf("envelope identity = %q/%q", env.Venue, env.Channel)
		}
		if env.SrcConnID != 99 {
			t.Errorf("SrcConnID = %d; want 99", env.SrcConnID)
		}
		if env.TradeID == "" {
			t.Error("TradeID is empty")
		}
		bySymbol[env.Symbol] = append(bySymbol[env.Symbol], env.Seq)
	}

	for _, sym := range []string{"BTC", "ETH"} {
		seqs := bySymbol[sym]
		if len(seqs) < 2 {
			t.Fatalf("symbol %s produced %d trades; want at least 2", sym, len(seqs))
		}
		for i, s := range seqs {
			if s != uint64(i+1) {
				t.Errorf("symbol %s seq[%d] = %d; want %d", sym, i, s, i+1)
			}
		}
	}
}

func TestGenerator_DeterministicShape(t *testing.T) {
	prod := &capturingProducer{}
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	gen := New(prod, "trades", "v", []string{"BTC"}, time.Millisecond, 1, log)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = gen.Run(ctx)

	for _, env := range prod.envelopes(t) {
		wantPx := 10000.0 + float64(env.Seq%100)*0.01
		if env.Px != wantPx {
			t.Errorf("seq %d px = %v; want %v", env.Seq, env.Px, wantPx)
		}
		wantAgg := "sell"
		if env.Seq%2 == 0 {
			wantAgg = "buy"
		}
		if env.Aggressor != wantAgg {
			t.Errorf("seq %d aggressor = %q; want %q", env.Seq, env.Aggressor, wantAgg)
		}
		if env.TSExchange == 0 || env.TSGateway == 0 {
			t.Error("timestamps must be stamped")
		}
	}
}

// Сбой публикации не останавливает генерацию.
func TestGenerator_PublishFailureIsNonFatal(t *testing.T) {
	prod := &capturingProducer{fail: true}
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	gen := New(prod, "trades", "v", []string{"BTC"}, time.Millisecond, 1, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := gen.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v; want clean deadline exit despite sink errors", err)
	}
}
