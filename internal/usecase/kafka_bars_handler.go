package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
	mid "RegimeChain/internal/middleware"
	pkgkafka "RegimeChain/pkg/kafka"
	"RegimeChain/pkg/util"
)

// KafkaBarsHandler consumes bar messages and feeds them through the gate.
type KafkaBarsHandler struct {
	topic   string
	gate    mid.BarProcessor
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, gate mid.BarProcessor, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, gate: gate, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// barMessage is the wire schema: {symbol, t, o, h, l, c, v} with t in seconds or milliseconds.
type barMessage struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	O      float64 `json:"o"`
	H      float64 `json:"h"`
	L      float64 `json:"l"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

func (m barMessage) bar() models.Bar {
	return models.Bar{Symbol: util.NormalizeSymbol(m.Symbol), Timestamp: util.UnixAuto(m.T), Open: m.O, High: m.H, Low: m.L, Close: m.C, Volume: m.V}
}

// Handle decodes one message. Malformed and out-of-order bars, and bars whose
// symbol differs from the record key, are returned as permanent errors so the
// consumer moves them to the DLQ. A keyed record that lands on the wrong
// partition would break per-symbol ordering.
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m barMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode bar: %w", err))
	}
	bar := m.bar()
	if key, ok := pkgkafka.MessageKey(ctx); ok && util.NormalizeSymbol(key) != bar.Symbol {
		h.metrics.RecordError("consumer_key_mismatch")
		return pkgkafka.Permanent(fmt.Errorf("key %q carries bar for %s", key, bar.Symbol))
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(bar.Timestamp).Seconds())

	if _, err := h.gate.Process(ctx, bar); err != nil {
		if errors.Is(err, models.ErrInvalidBar) || errors.Is(err, models.ErrOutOfOrder) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
