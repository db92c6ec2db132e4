package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestProducerEncodesJSON(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "snappy", prometheus.NewRegistry())
	require.NoError(t, p.Publish(context.Background(), "predictions", []byte("AAA"), map[string]int{"n": 1}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "predictions", w.msgs[0].Topic)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))

	w.err = errors.New("broker down")
	assert.ErrorContains(t, p.Publish(context.Background(), "predictions", nil, "x"), "publish predictions")
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("bad payload")
	err := fmt.Errorf("wrap: %w", Permanent(base))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 70; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestWorkerForPinsPartitions(t *testing.T) {
	assert.Equal(t, workerFor(7, 4), workerFor(7, 4))
	assert.Equal(t, 3, workerFor(7, 4))
	assert.Equal(t, 0, workerFor(5, 1))
}

type recordingHook struct {
	name string
	log  *[]string
}

func (h recordingHook) Before(ctx context.Context, _ kafka.Message) (context.Context, error) {
	*h.log = append(*h.log, "before "+h.name)
	return ctx, nil
}

func (h recordingHook) After(context.Context, kafka.Message, error) {
	*h.log = append(*h.log, "after "+h.name)
}

func TestHooks(t *testing.T) {
	km := kafka.Message{
		Key:     []byte("AAPL"),
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}},
	}
	var calls []string
	hs := Hooks{recordingHook{"a", &calls}, TraceHook(), KeyHook(true), recordingHook{"b", &calls}}

	ctx, err := hs.Before(context.Background(), km)
	require.NoError(t, err)
	hs.After(ctx, km, nil)

	assert.Equal(t, "abc", TraceID(ctx))
	key, ok := MessageKey(ctx)
	assert.True(t, ok)
	assert.Equal(t, "AAPL", key)
	assert.Equal(t, []string{"before a", "before b", "after b", "after a"}, calls)
}

func TestKeyHook(t *testing.T) {
	_, err := KeyHook(true).Before(context.Background(), kafka.Message{Partition: 2, Offset: 9})
	assert.ErrorContains(t, err, "missing key")

	ctx, err := KeyHook(false).Before(context.Background(), kafka.Message{})
	require.NoError(t, err)
	_, ok := MessageKey(ctx)
	assert.False(t, ok)
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(3),
		WithConsumerRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Len(t, c.queues, 3)
	assert.Error(t, c.Start())
}
