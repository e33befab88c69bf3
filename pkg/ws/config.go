// pkg/ws/config.go
package ws

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/feedgate/trade-connector/pkg/backoff"
)

// SymbolsPlaceholder заменяется в шаблоне подписки на JSON-массив символов.
const SymbolsPlaceholder = "$SYMBOLS"

// RateLimit ограничивает исходящие управляющие сообщения (подписки).
type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Config holds WebSocket configuration for a venue connector.
type Config struct {
	URL               string         `mapstructure:"url"`
	Symbols           []string       `mapstructure:"symbols"`
	SubscribeTemplate string         `mapstructure:"subscribe_template"`
	BufferSize        int            `mapstructure:"buffer_size"`
	ReadTimeout       time.Duration  `mapstructure:"read_timeout"`
	SubscribeTimeout  time.Duration  `mapstructure:"subscribe_timeout"`
	RateLimit         RateLimit      `mapstructure:"rate_limit"`
	BackoffConfig     backoff.Config `mapstructure:"backoff"`
}

// applyDefaults applies fallback defaults if values are unset.
func (c *Config) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = 5 * time.Second
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 8
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 16
	}
}

// validate checks config for required fields.
func (c *Config) validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("ws: URL is required")
	case len(c.Symbols) == 0:
		return fmt.Errorf("ws: at least one symbol is required")
	default:
		return nil
	}
}

// subscribeMessage собирает текст запроса подписки.
// Если задан шаблон — он отправляется как есть, с подстановкой $SYMBOLS.
func (c *Config) subscribeMessage() ([]byte, error) {
	if tpl := c.SubscribeTemplate; tpl != "" {
		syms, err := json.Marshal(c.Symbols)
		if err != nil {
			return nil, fmt.Errorf("ws: marshal symbols: %w", err)
		}
		return []byte(strings.ReplaceAll(tpl, SymbolsPlaceholder, string(syms))), nil
	}

	subs := make([]map[string]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		subs = append(subs, map[string]string{"channel": "trades", "symbol": s})
	}
	req := map[string]interface{}{
		"method":        "subscribe",
		"subscriptions": subs,
	}
	return json.Marshal(req)
}
