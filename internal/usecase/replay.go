package usecase

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"RegimeChain/internal/domain/models"
	mid "RegimeChain/internal/middleware"
	applogger "RegimeChain/pkg/logger"
	"RegimeChain/pkg/util"
)

// ReplayStats summarizes one replay run.
type ReplayStats struct {
	Rows        int `json:"rows"`
	Predictions int `json:"predictions"`
	Rejected    int `json:"rejected"`
	Filtered    int `json:"filtered"`
}

// Replayer feeds CSV bars through a BarProcessor and writes each prediction
// as one JSON line. Columns: symbol,timestamp,open,high,low,close,volume.
// A header row is detected and skipped.
type Replayer struct {
	proc   mid.BarProcessor
	symbol string
	log    *applogger.Logger
}

func NewReplayer(proc mid.BarProcessor, symbol string, log *applogger.Logger) *Replayer {
	if log == nil {
		log = applogger.Nop()
	}
	return &Replayer{proc: proc, symbol: util.NormalizeSymbol(symbol), log: log}
}

func (r *Replayer) Run(ctx context.Context, in io.Reader, out io.Writer) (ReplayStats, error) {
	var stats ReplayStats

	cr := csv.NewReader(in)
	cr.FieldsPerRecord = 7
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	enc := json.NewEncoder(out)

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		line++
		if errors.Is(err, csv.ErrFieldCount) {
			stats.Rows++
			stats.Rejected++
			r.log.Warn("replay row skipped", applogger.Int("line", line), applogger.Error(err))
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("replay line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "symbol") {
			continue
		}
		stats.Rows++

		bar, err := parseBarRecord(rec)
		if err != nil {
			stats.Rejected++
			r.log.Warn("replay row skipped", applogger.Int("line", line), applogger.Error(err))
			continue
		}
		if r.symbol != "" && bar.Symbol != r.symbol {
			stats.Filtered++
			continue
		}

		pred, err := r.proc.Process(ctx, bar)
		if err != nil {
			if errors.Is(err, models.ErrInvalidBar) || errors.Is(err, models.ErrOutOfOrder) {
				stats.Rejected++
				r.log.Warn("replay bar rejected", applogger.Int("line", line), applogger.Error(err))
				continue
			}
			return stats, fmt.Errorf("replay line %d: %w", line, err)
		}
		if err := enc.Encode(pred); err != nil {
			return stats, fmt.Errorf("write prediction: %w", err)
		}
		stats.Predictions++
	}
}

func parseBarRecord(rec []string) (models.Bar, error) {
	ts, ok := util.ParseTime(strings.TrimSpace(rec[1]))
	if !ok {
		return models.Bar{}, fmt.Errorf("bad timestamp %q", rec[1])
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[2+i]), 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("bad number %q: %w", rec[2+i], err)
		}
		vals[i] = v
	}
	return models.Bar{
		Symbol:    util.NormalizeSymbol(rec[0]),
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}
