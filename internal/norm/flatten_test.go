// internal/norm/flatten_test.go
package norm

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeJSON(t *testing.T, s string) interface{} {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return v
}

func TestFlatten_Order(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"topLevelArray", `[{"a":1},{"a":2},{"a":3}]`, 3},
		{"dataArray", `{"channel":"trades","data":[{"a":1},{"a":2}]}`, 2},
		{"dataObject", `{"data":{"a":1}}`, 1},
		{"tradesArray", `{"trades":[{"a":1},{"a":2},{"a":3},{"a":4}]}`, 4},
		{"bareObject", `{"symbol":"BTC","px":1.0}`, 1},
		{"emptyArray", `[]`, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Flatten(decodeJSON(t, c.in))
			if len(got) != c.want {
				t.Errorf("Flatten(%s) returned %d candidates; want %d", c.in, len(got), c.want)
			}
		})
	}
}

// "data" берёт приоритет над "trades", а bare-object возвращает само сообщение.
func TestFlatten_DataBeforeTrades(t *testing.T) {
	v := decodeJSON(t, `{"data":{"a":1},"trades":[{"b":1},{"b":2}]}`)
	got := Flatten(v)
	if len(got) != 1 {
		t.Fatalf("expected data to win over trades, got %d candidates", len(got))
	}
}

func TestFlatten_BareObjectIsSelf(t *testing.T) {
	v := decodeJSON(t, `{"symbol":"BTC","px":1.0}`)
	got := Flatten(v)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	obj, ok := got[0].(map[string]interface{})
	if !ok {
		t.Fatalf("candidate is not an object: %T", got[0])
	}
	if obj["symbol"] != "BTC" {
		t.Errorf("candidate = %v; want the message itself", obj)
	}
}

// Непустая "trades"-обёртка с неожиданно не-массивом падает на fallback.
func TestFlatten_TradesNonArrayFallsBack(t *testing.T) {
	v := decodeJSON(t, `{"trades":{"a":1}}`)
	got := Flatten(v)
	if len(got) != 1 {
		t.Fatalf("expected fallback to the message, got %d candidates", len(got))
	}
	if _, ok := got[0].(map[string]interface{})["trades"]; !ok {
		t.Error("fallback candidate should be the raw message")
	}
}
