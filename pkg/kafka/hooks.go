package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook runs around every handler attempt. A Before error skips the
// handler and is treated as permanent.
type ConsumerHook interface {
	Before(ctx context.Context, km kafka.Message) (context.Context, error)
	After(ctx context.Context, km kafka.Message, err error)
}

// Hooks runs Before in order and After in reverse order.
type Hooks []ConsumerHook

func (hs Hooks) Before(ctx context.Context, km kafka.Message) (context.Context, error) {
	for _, h := range hs {
		var err error
		if ctx, err = h.Before(ctx, km); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func (hs Hooks) After(ctx context.Context, km kafka.Message, err error) {
	for i := len(hs) - 1; i >= 0; i-- {
		hs[i].After(ctx, km, err)
	}
}

type ctxKey int

const (
	traceKey ctxKey = iota
	messageKey
)

// TraceID returns the trace_id header copied by TraceHook.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceKey).(string)
	return v
}

// MessageKey returns the record key copied by KeyHook, if any.
func MessageKey(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(messageKey).(string)
	return v, ok
}

type traceHook struct{}

// TraceHook copies the trace_id header into the handler context.
func TraceHook() ConsumerHook { return traceHook{} }

func (traceHook) Before(ctx context.Context, km kafka.Message) (context.Context, error) {
	for _, h := range km.Headers {
		if h.Key == "trace_id" && len(h.Value) > 0 {
			return context.WithValue(ctx, traceKey, string(h.Value)), nil
		}
	}
	return ctx, nil
}

func (traceHook) After(context.Context, kafka.Message, error) {}

type keyHook struct{ required bool }

// KeyHook exposes the record key to the handler. With required set, keyless
// records are rejected before the handler runs.
func KeyHook(required bool) ConsumerHook { return keyHook{required: required} }

func (h keyHook) Before(ctx context.Context, km kafka.Message) (context.Context, error) {
	if len(km.Key) == 0 {
		if h.required {
			return ctx, fmt.Errorf("partition %d offset %d: missing key", km.Partition, km.Offset)
		}
		return ctx, nil
	}
	return context.WithValue(ctx, messageKey, string(km.Key)), nil
}

func (keyHook) After(context.Context, kafka.Message, error) {}
