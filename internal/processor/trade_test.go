// internal/processor/trade_test.go
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/feedgate/trade-connector/internal/model"
	"github.com/feedgate/trade-connector/internal/norm"
	"github.com/feedgate/trade-connector/pkg/logger"
	"github.com/feedgate/trade-connector/pkg/ws"
)

// fakeProducer захватывает публикации вместо отправки в Kafka.
type fakeProducer struct {
	topics   []string
	keys     []string
	payloads [][]byte
	failNext error
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, string(key))
	f.payloads = append(f.payloads, value)
	return nil
}
func (f *fakeProducer) Ping(ctx context.Context) error { return nil }
func (f *fakeProducer) Close() error                   { return nil }

func newTestProcessor(t *testing.T, prod *fakeProducer, symbols ...string) Processor {
	t.Helper()
	if len(symbols) == 0 {
		symbols = []string{"BTC"}
	}
	log, _ := logger.New(logger.Config{Level: "debug", DevMode: true})
	return NewTradeProcessor(
		prod, "trades", "hyperliquid", symbols, 777,
		norm.MagnitudeScaler{}, norm.NewSequenceAssigner(), log,
	)
}

func (f *fakeProducer) lastEnvelope(t *testing.T) model.TradeEnvelope {
	t.Helper()
	if len(f.payloads) == 0 {
		t.Fatal("no envelopes published")
	}
	var env model.TradeEnvelope
	if err := json.Unmarshal(f.payloads[len(f.payloads)-1], &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

// Сквозной сценарий: кадр со спорными алиасами → канонический конверт.
func TestProcess_EndToEnd(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod)

	frame := []byte(`{"symbol":"BTC","px":50000.5,"qty":0.01,"side":"SELL","T":1700000000,"tid":"abc"}`)
	before := model.NowNanos()
	if err := tp.Process(context.Background(), ws.RawMessage{Data: frame}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	after := model.NowNanos()

	if len(prod.payloads) != 1 {
		t.Fatalf("published %d envelopes; want 1", len(prod.payloads))
	}
	if prod.topics[0] != "trades" {
		t.Errorf("topic = %q; want trades", prod.topics[0])
	}
	if prod.keys[0] != "hyperliquid|BTC" {
		t.Errorf("partition key = %q; want hyperliquid|BTC", prod.keys[0])
	}

	env := prod.lastEnvelope(t)
	if env.Venue != "hyperliquid" || env.Symbol != "BTC" || env.Channel != "trades" {
		t.Errorf("identity fields = %q/%q/%q", env.Venue, env.Symbol, env.Channel)
	}
	if env.Seq != 1 {
		t.Errorf("Seq = %d; want 1 (first locally assigned)", env.Seq)
	}
	if env.TSExchange != 1_700_000_000_000_000 {
		t.Errorf("TSExchange = %d; want millisecond band scaled to ns", env.TSExchange)
	}
	if env.TSGateway < before || env.TSGateway > after {
		t.Errorf("TSGateway = %d; want ~now", env.TSGateway)
	}
	if env.Px != 50000.5 || env.Qty != 0.01 {
		t.Errorf("px/qty = %v/%v", env.Px, env.Qty)
	}
	if env.Aggressor != "sell" {
		t.Errorf("Aggressor = %q; want sell", env.Aggressor)
	}
	if env.TradeID != "abc" {
		t.Errorf("TradeID = %q; want abc", env.TradeID)
	}
	if env.SrcConnID != 777 {
		t.Errorf("SrcConnID = %d; want 777", env.SrcConnID)
	}
}

// Venue-последовательность проходит как есть и не двигает локальный счётчик.
func TestProcess_VenueSequencePassthrough(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod)

	withSeq := []byte(`{"symbol":"BTC","px":1,"seq":42}`)
	if err := tp.Process(context.Background(), ws.RawMessage{Data: withSeq}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if env := prod.lastEnvelope(t); env.Seq != 42 {
		t.Errorf("Seq = %d; want venue-supplied 42", env.Seq)
	}

	withoutSeq := []byte(`{"symbol":"BTC","px":1}`)
	if err := tp.Process(context.Background(), ws.RawMessage{Data: withoutSeq}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if env := prod.lastEnvelope(t); env.Seq != 1 {
		t.Errorf("Seq = %d; want 1 (counter untouched by passthrough)", env.Seq)
	}
}

func TestProcess_LocalSequencesAreMonotonic(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod)

	frame := []byte(`{"symbol":"BTC","px":1}`)
	for i := 0; i < 5; i++ {
		if err := tp.Process(context.Background(), ws.RawMessage{Data: frame}); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	for i, payload := range prod.payloads {
		var env model.TradeEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatal(err)
		}
		if env.Seq != uint64(i+1) {
			t.Errorf("envelope %d has Seq %d; want %d", i, env.Seq, i+1)
		}
	}
}

func TestProcess_BatchFrame(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod)

	frame := []byte(`{"data":[{"symbol":"BTC","px":1},{"symbol":"BTC","px":2},{"symbol":"BTC","px":3}]}`)
	if err := tp.Process(context.Background(), ws.RawMessage{Data: frame}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(prod.payloads) != 3 {
		t.Fatalf("published %d envelopes; want 3", len(prod.payloads))
	}
	// порядок внутри пачки сохраняется
	for i, payload := range prod.payloads {
		var env model.TradeEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatal(err)
		}
		if env.Px != float64(i+1) {
			t.Errorf("envelope %d has px %v; want %d", i, env.Px, i+1)
		}
	}
}

func TestProcess_MalformedFrameIsContained(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod)

	if err := tp.Process(context.Background(), ws.RawMessage{Data: []byte(`not json`)}); err != nil {
		t.Fatalf("malformed frame must not be fatal: %v", err)
	}
	if len(prod.payloads) != 0 {
		t.Errorf("published %d envelopes from garbage", len(prod.payloads))
	}

	// последующие кадры обрабатываются
	if err := tp.Process(context.Background(), ws.RawMessage{Data: []byte(`{"symbol":"BTC","px":1}`)}); err != nil {
		t.Fatalf("Process after garbage: %v", err)
	}
	if len(prod.payloads) != 1 {
		t.Error("processing did not continue after malformed frame")
	}
}

func TestProcess_ExtractionFailureIsSilentlyDropped(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod)

	if err := tp.Process(context.Background(), ws.RawMessage{Data: []byte(`{"qty":5}`)}); err != nil {
		t.Fatalf("extraction failure must not be fatal: %v", err)
	}
	if len(prod.payloads) != 0 {
		t.Error("candidate without mandatory fields was published")
	}
}

func TestProcess_UnconfiguredSymbolSkipped(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod, "BTC")

	if err := tp.Process(context.Background(), ws.RawMessage{Data: []byte(`{"symbol":"DOGE","px":1}`)}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(prod.payloads) != 0 {
		t.Error("trade for unconfigured symbol was published")
	}
}

func TestProcess_PublishFailureIsFatal(t *testing.T) {
	prod := &fakeProducer{failNext: errors.New("sink down")}
	tp := newTestProcessor(t, prod)

	err := tp.Process(context.Background(), ws.RawMessage{Data: []byte(`{"symbol":"BTC","px":1}`)})
	if err == nil {
		t.Fatal("expected fatal error on publish failure")
	}
}

func TestRun_StopsOnChannelClose(t *testing.T) {
	prod := &fakeProducer{}
	tp := newTestProcessor(t, prod)

	in := make(chan ws.RawMessage, 2)
	in <- ws.RawMessage{Data: []byte(`{"symbol":"BTC","px":1}`)}
	in <- ws.RawMessage{Data: []byte(`{"symbol":"BTC","px":2}`)}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tp.Run(ctx, in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prod.payloads) != 2 {
		t.Errorf("published %d envelopes; want 2", len(prod.payloads))
	}
}
