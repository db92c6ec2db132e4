package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
	pkgch "RegimeChain/pkg/clickhouse"
	applogger "RegimeChain/pkg/logger"
)

// ErrStoreUnavailable is returned while the breaker is open.
var ErrStoreUnavailable = errors.New("transition store unavailable")

// BreakerConfig controls when the store stops trying ClickHouse.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// CHTransitionStore writes transitions and predictions to ClickHouse behind
// a circuit breaker, so a dead database costs one fast error per bar.
type CHTransitionStore struct {
	db       *sql.DB
	database string
	cb       *gobreaker.CircuitBreaker
	l        *applogger.Logger
}

func NewCHTransitionStore(ch *pkgch.Client, cfg BreakerConfig, l *applogger.Logger) domrepo.TransitionStore {
	return newCHTransitionStore(ch.DB(), ch.Database(), cfg, l)
}

func newCHTransitionStore(db *sql.DB, database string, cfg BreakerConfig, l *applogger.Logger) *CHTransitionStore {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if l == nil {
		l = applogger.Nop()
	}

	st := gobreaker.Settings{
		Name:        "clickhouse-transitions",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}

	return &CHTransitionStore{
		db:       db,
		database: database,
		cb:       gobreaker.NewCircuitBreaker(st),
		l:        l,
	}
}

func (s *CHTransitionStore) StoreTransition(ctx context.Context, r *models.TransitionRecord) error {
	peers, err := json.Marshal(r.CorrelatedRegimes)
	if err != nil {
		return fmt.Errorf("marshal peers: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, symbol, ts, from_regime, to_regime, duration_minutes, realized_return, volume_context, volatility_context, session, peers)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("regime_transitions"))

	return s.exec(ctx, "store_transition", q,
		r.ID,
		r.Symbol,
		r.Timestamp.UTC(),
		r.From.String(),
		r.To.String(),
		r.DurationMinutes,
		r.RealizedReturn,
		string(r.VolumeContext),
		string(r.VolatilityContext),
		string(r.SessionContext),
		string(peers),
	)
}

func (s *CHTransitionStore) StorePrediction(ctx context.Context, p *models.Prediction) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	next, prob := p.AdjustedDistribution.ArgMax()
	q := fmt.Sprintf(`INSERT INTO %s (id, symbol, ts, current_regime, predicted_regime, probability, confidence, risk, expected_return, holding_minutes, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("regime_predictions"))

	return s.exec(ctx, "store_prediction", q,
		p.ID,
		p.Symbol,
		p.Timestamp.UTC(),
		p.CurrentRegime.String(),
		next.String(),
		prob,
		p.Confidence,
		p.TransitionRisk,
		p.ExpectedReturn,
		p.OptimalHoldingMinutes,
		string(payload),
	)
}

func (s *CHTransitionStore) Health(ctx context.Context) error {
	if s.cb.State() == gobreaker.StateOpen {
		return ErrStoreUnavailable
	}
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.
func (s *CHTransitionStore) Close() error { return nil }

// State exposes the breaker state for health reporting.
func (s *CHTransitionStore) State() gobreaker.State { return s.cb.State() }

func (s *CHTransitionStore) exec(ctx context.Context, op, q string, args ...any) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		_, err := s.db.ExecContext(ctx, q, args...)
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	if err != nil {
		s.l.Error("clickhouse insert error", applogger.String("op", op), applogger.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *CHTransitionStore) table(name string) string {
	if s.database == "" {
		return name
	}
	return s.database + "." + name
}
