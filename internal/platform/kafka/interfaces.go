package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer is the write side of the notifications pipeline. The
// concrete implementation is an otel-instrumented kafka-go writer.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}
