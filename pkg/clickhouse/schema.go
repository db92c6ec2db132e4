package clickhouse

import "fmt"

// BarTables maps timeframe labels to the bar table suffix.
var BarTables = map[string]string{
	"1m":  "bars_1m",
	"5m":  "bars_5m",
	"15m": "bars_15m",
	"1h":  "bars_1h",
}

// Schema returns the CREATE statements for bars, transitions and predictions
// inside db.
func Schema(db string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db)}

	for _, tf := range []string{"1m", "5m", "15m", "1h"} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	symbol LowCardinality(String),
	bucket DateTime64(3, 'UTC'),
	open Float64,
	high Float64,
	low Float64,
	close Float64,
	volume Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, bucket)`, db, BarTables[tf]))
	}

	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.regime_transitions (
	id UUID,
	symbol LowCardinality(String),
	ts DateTime64(3, 'UTC'),
	from_regime LowCardinality(String),
	to_regime LowCardinality(String),
	duration_minutes Float64,
	realized_return Float64,
	volume_context LowCardinality(String),
	volatility_context LowCardinality(String),
	session LowCardinality(String),
	peers String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.regime_predictions (
	id UUID,
	symbol LowCardinality(String),
	ts DateTime64(3, 'UTC'),
	current_regime LowCardinality(String),
	predicted_regime LowCardinality(String),
	probability Float64,
	confidence Float64,
	risk Float64,
	expected_return Float64,
	holding_minutes Float64,
	payload String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts)
TTL toDateTime(ts) + INTERVAL 90 DAY`, db),
	)
	return stmts
}
