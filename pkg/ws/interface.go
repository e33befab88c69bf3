// pkg/ws/interface.go
package ws

import "context"

// Connector describes the low-level venue WebSocket connector.
//
// Stream dials once and reads frames until the peer closes the
// connection or ctx is cancelled; it never reconnects on its own.
// Restart policy belongs to the supervisor that owns the process.
type Connector interface {
	Stream(ctx context.Context) (<-chan RawMessage, error)
	// Err returns the terminal read error after the stream channel closed,
	// or nil if the stream ended by ctx cancellation.
	Err() error
	Close() error
}

// RawMessage carries one decoded-as-text WebSocket frame.
type RawMessage struct {
	Data []byte // JSON payload as received
}
