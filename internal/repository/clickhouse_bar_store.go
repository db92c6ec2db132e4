package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
	pkgch "RegimeChain/pkg/clickhouse"
	applogger "RegimeChain/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse bar tables.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client) *CHBarStore {
	return &CHBarStore{db: ch.DB(), database: ch.Database()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	table, err := s.tableFor(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT symbol, bucket, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `, table)

	out, err := s.query(ctx, "get_bars", table, symbol, tf, q, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	return out, nil
}

// GetLatestNBars returns the newest n bars in ascending time order.
func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	table, err := s.tableFor(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT symbol, bucket, open, high, low, close, volume
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `, table)

	out, err := s.query(ctx, "get_latest_bars", table, symbol, tf, q, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveBars inserts bars into the table for tf in one statement.
func (s *CHBarStore) SaveBars(ctx context.Context, bars []models.Bar, tf domrepo.Timeframe) error {
	if len(bars) == 0 {
		return nil
	}
	table, err := s.tableFor(tf)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save bars begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (symbol, bucket, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)", table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save bars prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save bars exec: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save bars commit: %w", err)
	}
	return nil
}

func (s *CHBarStore) query(ctx context.Context, op, table, symbol string, tf domrepo.Timeframe, q string, args ...any) ([]models.Bar, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logErr("clickhouse "+op+" query error", table, symbol, tf, err)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 256)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logErr("clickhouse "+op+" scan error", table, symbol, tf, err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse "+op+" rows error", table, symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}

	if s.l != nil {
		s.l.Debug("clickhouse "+op+" ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("elapsed", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHBarStore) logErr(msg, table, symbol string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}

func (s *CHBarStore) tableFor(tf domrepo.Timeframe) (string, error) {
	name, ok := pkgch.BarTables[string(tf)]
	if !ok {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	if s.database == "" {
		return name, nil
	}
	return s.database + "." + name, nil
}
