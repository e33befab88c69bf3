// internal/transport/stream.go
package transport

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/feedgate/trade-connector/pkg/ws"
)

var tracer = otel.Tracer("connector/transport")

// StreamWithMetrics wraps the raw connector with tracing and metrics.
// Frames are forwarded with a blocking send: ordering and delivery win
// over latency, so nothing is dropped here.
func StreamWithMetrics(ctx context.Context, venue string, conn ws.Connector) (<-chan ws.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "ws.stream")
	span.SetAttributes(attribute.String("venue", venue))
	defer span.End()

	stream, err := conn.Stream(ctx)
	if err != nil {
		IncError(venue, "connect")
		span.RecordError(err)
		return nil, err
	}
	IncConnect(venue, "ok")

	out := make(chan ws.RawMessage, cap(stream))
	go func() {
		defer close(out)
		for msg := range stream {
			IncFrame(venue)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
		if err := conn.Err(); err != nil {
			IncError(venue, "read")
		}
	}()
	return out, nil
}
