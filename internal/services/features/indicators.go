package features

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"RegimeChain/internal/domain/models"
)

// ComputeReturns computes simple returns r_t = C_t / C_{t-1} - 1.
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeReturns(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, bars[i].Close/prev-1)
	}
	return out
}

// RollingStdDev returns the sample standard deviation of every full window of
// returns. When no full window exists it falls back to a single value over all
// available returns.
func RollingStdDev(returns []float64, window int) []float64 {
	if len(returns) < 2 {
		return nil
	}
	if window < 2 || len(returns) < window {
		return []float64{stat.StdDev(returns, nil)}
	}
	out := make([]float64, 0, len(returns)-window+1)
	for end := window; end <= len(returns); end++ {
		out = append(out, stat.StdDev(returns[end-window:end], nil))
	}
	return out
}

// SMA is the simple moving average of the last period values. Short inputs
// fall back to the mean of what is available.
func SMA(xs []float64, period int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if period < 2 || len(xs) < period {
		return stat.Mean(xs, nil)
	}
	out := talib.Sma(xs, period)
	return out[len(out)-1]
}

// EMA is the exponential moving average seeded with the SMA of the first period
// values. Short inputs fall back to the mean.
func EMA(xs []float64, period int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if period < 2 || len(xs) < period {
		return stat.Mean(xs, nil)
	}
	out := talib.Ema(xs, period)
	return out[len(out)-1]
}

// ATR is Wilder's average true range. With too few bars for talib it averages
// the available true ranges.
func ATR(bars []models.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if period >= 2 && len(bars) > period+1 {
		h, l, c := highs(bars), lows(bars), closes(bars)
		out := talib.Atr(h, l, c, period)
		return out[len(out)-1]
	}
	tr := make([]float64, len(bars))
	for i, b := range bars {
		tr[i] = b.Range()
		if i > 0 {
			prev := bars[i-1].Close
			tr[i] = math.Max(tr[i], math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
	}
	return stat.Mean(tr, nil)
}

// PercentileRank places v within xs using the mid-rank convention, 0-100.
// Ties count half. An empty or single-valued sample ranks 50.
func PercentileRank(xs []float64, v float64) float64 {
	if len(xs) <= 1 {
		return 50
	}
	less, equal := 0, 0
	for _, x := range xs {
		switch {
		case x < v:
			less++
		case x == v:
			equal++
		}
	}
	return 100 * (float64(less) + 0.5*float64(equal)) / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func lastN[T any](xs []T, n int) []T {
	if n >= 0 && len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}

func closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highs(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lows(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func volumes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func ranges(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Range()
	}
	return out
}
