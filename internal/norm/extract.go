// internal/norm/extract.go
package norm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Trade is the normalized result of field extraction. It is only
// constructed when both symbol and price resolve; every other field
// degrades to a default instead of failing the extraction.
type Trade struct {
	Symbol     string
	Price      float64
	Qty        float64
	Aggressor  string // "buy" | "sell"
	TradeID    string
	TSExchange uint64 // nanoseconds since epoch
	Seq        uint64 // venue-supplied sequence, valid iff HasSeq
	HasSeq     bool
}

// Accepted key aliases per field, first match wins, case-sensitive.
// Kept as data so the alias sets are testable and extendable without
// touching the lookup code.
var (
	symbolKeys  = []string{"symbol", "s", "coin"}
	priceKeys   = []string{"px", "price", "p"}
	qtyKeys     = []string{"qty", "size", "q"}
	tradeIDKeys = []string{"trade_id", "id", "tid"}
	tsKeys      = []string{"ts", "timestamp", "time", "T", "t"}
	seqKeys     = []string{"seq", "sequence", "event_id"}
)

// Extract pulls canonical trade fields out of one candidate. The
// candidate must be a JSON object; extraction fails (ok=false) iff
// neither a symbol alias nor a price alias resolves to a valid value.
func Extract(candidate interface{}, scaler TimeScaler) (Trade, bool) {
	obj, isObj := candidate.(map[string]interface{})
	if !isObj {
		return Trade{}, false
	}

	symbol, ok := firstString(obj, symbolKeys)
	if !ok {
		return Trade{}, false
	}
	priceNum, ok := firstNumber(obj, priceKeys)
	if !ok {
		return Trade{}, false
	}
	price, err := priceNum.Float64()
	if err != nil {
		return Trade{}, false
	}

	var qty float64
	if n, ok := firstNumber(obj, qtyKeys); ok {
		qty, _ = n.Float64()
	}

	aggressor := "buy"
	if side, ok := firstString(obj, []string{"aggressor", "side"}); ok {
		aggressor = strings.ToLower(side)
	} else if maker, ok := obj["isBuyerMaker"].(bool); ok {
		if maker {
			aggressor = "sell"
		}
	}

	tradeID, _ := firstString(obj, tradeIDKeys)

	// Absent timestamp feeds 0 into the scaler, which substitutes now.
	// A negative or fractional value is treated the same as absent.
	var tsRaw uint64
	if n, ok := firstNumber(obj, tsKeys); ok {
		tsRaw, _ = numberToUint64(n)
	}

	t := Trade{
		Symbol:     symbol,
		Price:      price,
		Qty:        qty,
		Aggressor:  aggressor,
		TradeID:    tradeID,
		TSExchange: scaler.ToNanos(tsRaw),
	}
	// Sequence counts as venue-supplied only when it is a valid u64;
	// anything else falls through to the local assigner.
	if n, ok := firstNumber(obj, seqKeys); ok {
		if u, valid := numberToUint64(n); valid {
			t.Seq = u
			t.HasSeq = true
		}
	}
	return t, true
}

// firstString returns the first alias resolving to a string value.
// A key that is present but not a string does not stop the scan.
func firstString(obj map[string]interface{}, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

// firstNumber returns the first alias resolving to a JSON number.
// Frames are decoded with UseNumber so large integer timestamps and
// sequence numbers survive without float64 precision loss.
func firstNumber(obj map[string]interface{}, keys []string) (json.Number, bool) {
	for _, k := range keys {
		if n, ok := obj[k].(json.Number); ok {
			return n, true
		}
	}
	return "", false
}

// numberToUint64 accepts only a non-negative decimal integer that fits
// in uint64; negative and fractional numbers are not silently truncated.
func numberToUint64(n json.Number) (uint64, bool) {
	u, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return u, true
}
