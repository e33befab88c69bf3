// pkg/ws/ws.go
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/feedgate/trade-connector/pkg/backoff"
	"github.com/feedgate/trade-connector/pkg/logger"
)

// connector реализует Connector поверх единственного WS-соединения.
type connector struct {
	cfg     Config
	log     *logger.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	conn    *websocket.Conn
	readErr error
}

// NewConnector создаёт Connector. Логгер именуется "venue-ws".
func NewConnector(cfg Config, log *logger.Logger) (Connector, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &connector{
		cfg:     cfg,
		log:     log.Named("venue-ws"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
	}, nil
}

// Stream подключается, отправляет подписку и запускает цикл чтения.
// Канал закрывается при ошибке чтения или отмене ctx; переподключений нет.
func (c *connector) Stream(ctx context.Context) (<-chan RawMessage, error) {
	// 1) Подключаемся с бэкоффом: стартовые сетевые сбои ретраибельны,
	// в отличие от обрыва уже работающего потока.
	var conn *websocket.Conn
	err := backoff.Execute(ctx, c.cfg.BackoffConfig, c.log, func(ctxTry context.Context) error {
		var dialErr error
		conn, _, dialErr = websocket.DefaultDialer.DialContext(ctxTry, c.cfg.URL, nil)
		return dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("ws: connect %s: %w", c.cfg.URL, err)
	}
	c.log.Sugar().Infow("ws: connected", "url", c.cfg.URL, "symbols", c.cfg.Symbols)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// 2) Подписка. Исходящие управляющие записи идут через rate limiter.
	msg, err := c.cfg.subscribeMessage()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ws: rate limiter: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.SubscribeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ws: subscribe: %w", err)
	}
	c.log.Sugar().Infow("ws: sent subscribe", "msg", string(msg))

	ch := make(chan RawMessage, c.cfg.BufferSize)
	go c.readLoop(ctx, conn, ch)
	return ch, nil
}

func (c *connector) readLoop(ctx context.Context, conn *websocket.Conn, ch chan<- RawMessage) {
	defer close(ch)
	defer conn.Close()

	// Keepalive: ping каждые ReadTimeout/3, дедлайн чтения сдвигается на pong.
	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(c.cfg.ReadTimeout / 3)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					c.log.Sugar().Warnw("ws: ping failed", "err", err)
				}
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.setErr(fmt.Errorf("ws: read: %w", err))
				c.log.Sugar().Warnw("ws: read error, stream terminated", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		// Блокирующая отправка: медленный потребитель тормозит чтение,
		// внутренний порядок сообщений сохраняется.
		select {
		case ch <- RawMessage{Data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *connector) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

func (c *connector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
