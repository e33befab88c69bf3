// internal/processor/interface.go
package processor

import (
	"context"

	"github.com/feedgate/trade-connector/pkg/ws"
)

// Processor определяет контракт на обработку сырых WS-сообщений.
type Processor interface {
	// Run последовательно обрабатывает кадры до закрытия канала.
	Run(ctx context.Context, in <-chan ws.RawMessage) error
	// Process разбирает одно сообщение и публикует результат в Kafka.
	// Ошибки уровня сообщения гасятся внутри; возвращённая ошибка
	// фатальна для соединения.
	Process(ctx context.Context, raw ws.RawMessage) error
}
