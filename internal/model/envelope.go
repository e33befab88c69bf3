// internal/model/envelope.go
package model

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feedgate/trade-connector/internal/norm"
)

// ChannelTrades is the only channel this connector publishes.
const ChannelTrades = "trades"

// TradeEnvelope is the canonical published record. Field names and
// order are the durable wire contract downstream consumers depend on;
// do not reorder or rename.
type TradeEnvelope struct {
	Venue      string  `json:"venue"`
	Symbol     string  `json:"symbol"`
	Channel    string  `json:"channel"`
	Seq        uint64  `json:"seq"`
	TSExchange uint64  `json:"ts_exchange"`
	TSGateway  uint64  `json:"ts_gateway"`
	Px         float64 `json:"px"`
	Qty        float64 `json:"qty"`
	Aggressor  string  `json:"aggressor"`
	TradeID    string  `json:"trade_id"`
	SrcConnID  uint64  `json:"src_conn_id"`
}

// NewEnvelope combines an extracted trade with venue and connection
// identity. ts_gateway is stamped here, at envelope construction, not
// at frame arrival: ts_gateway - ts_exchange is an approximate latency
// measure only.
func NewEnvelope(venue string, tr norm.Trade, seq, srcConnID uint64) TradeEnvelope {
	return TradeEnvelope{
		Venue:      venue,
		Symbol:     tr.Symbol,
		Channel:    ChannelTrades,
		Seq:        seq,
		TSExchange: tr.TSExchange,
		TSGateway:  NowNanos(),
		Px:         tr.Price,
		Qty:        tr.Qty,
		Aggressor:  tr.Aggressor,
		TradeID:    tr.TradeID,
		SrcConnID:  srcConnID,
	}
}

// PartitionKey routes the envelope to the venue+symbol partition.
func (e TradeEnvelope) PartitionKey() []byte {
	return []byte(fmt.Sprintf("%s|%s", e.Venue, e.Symbol))
}

// NowNanos возвращает текущее время в наносекундах с эпохи.
func NowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}

// NewConnID derives the connection identity for one logical connection
// instance. Consumers use it to detect duplicate delivery after a
// reconnect replays recent history.
func NewConnID() uint64 {
	u := uuid.New()
	return NowNanos() ^ binary.BigEndian.Uint64(u[8:])
}
