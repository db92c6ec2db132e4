package usecase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeChain/internal/domain/models"
	mid "RegimeChain/internal/middleware"
	"RegimeChain/pkg/metrics"
)

func csvRows(sym string, n int, base float64, start time.Time, unix bool) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		stamp := ts.Format(time.RFC3339)
		if unix {
			stamp = fmt.Sprint(ts.Unix())
		}
		c := base + float64(i%5)
		fmt.Fprintf(&sb, "%s,%s,%.2f,%.2f,%.2f,%.2f,%d\n", sym, stamp, c, c+1, c-1, c, 1000+i)
	}
	return sb.String()
}

func TestReplayer_EmitsJSONLines(t *testing.T) {
	eng := NewRegimeEngine(EngineConfig{})
	gate := mid.NewBarGate(eng, metrics.Nop{})

	in := "symbol,timestamp,open,high,low,close,volume\n" +
		csvRows("AAPL", 20, 100, t0, false) +
		csvRows("MSFT", 20, 300, t0, true) +
		"AAPL,not-a-time,1,1,1,1,1\n" +
		"AAPL,2024-03-04T15:05:00Z,1,1,1,1,1\n" + // already seen
		"AAPL,2024-03-04T16:00:00Z,5,4,3,5,1\n" + // high below close
		"AAPL,2024-03-04T16:01:00Z,1,2\n"

	var out bytes.Buffer
	stats, err := NewReplayer(gate, "", nil).Run(context.Background(), strings.NewReader(in), &out)
	require.NoError(t, err)

	assert.Equal(t, 44, stats.Rows)
	assert.Equal(t, 40, stats.Predictions)
	assert.Equal(t, 4, stats.Rejected)

	sc := bufio.NewScanner(&out)
	lines := 0
	for sc.Scan() {
		var p models.Prediction
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p))
		assert.NotEmpty(t, p.ID)
		lines++
	}
	assert.Equal(t, 40, lines)
}

func TestReplayer_SymbolFilter(t *testing.T) {
	eng := NewRegimeEngine(EngineConfig{})
	in := csvRows("AAPL", 5, 100, t0, false) + csvRows("MSFT", 5, 300, t0, false)

	var out bytes.Buffer
	stats, err := NewReplayer(mid.NewBarGate(eng, metrics.Nop{}), "msft", nil).Run(context.Background(), strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Predictions)
	assert.Equal(t, 5, stats.Filtered)
	assert.Equal(t, []string{"MSFT"}, eng.Symbols())
}
