package backtest

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/yourusername/arblens/internal/models"
)

const (
	profitPctPlaces   = 4
	profitUSDPlaces   = 2
	drawdownPctPlaces = 4
	sharpePlaces      = 2
)

var hundred = decimal.NewFromInt(100)

// Calculate computes backtest metrics over records in any order.
// It also returns the per-day return series the metrics were derived from.
func Calculate(records []models.HistoricalOpportunity) (models.BacktestResult, DailySeries) {
	var result models.BacktestResult
	if len(records) == 0 {
		return result, DailySeries{}
	}

	spreadSum := decimal.Zero
	profitSum := decimal.Zero
	for _, rec := range records {
		if rec.NetSpreadPct > 0 {
			result.ProfitableOpportunities++
		}
		spreadSum = spreadSum.Add(decimal.NewFromFloat(rec.NetSpreadPct))
		profitSum = profitSum.Add(decimal.NewFromFloat(rec.ProfitUSD()))
	}

	result.TotalOpportunities = len(records)
	result.TotalProfitPct = spreadSum.Div(hundred).Round(profitPctPlaces).InexactFloat64()
	result.TotalProfitUSD = profitSum.Round(profitUSDPlaces).InexactFloat64()

	series := BuildDailySeries(records)
	result.SharpeRatio = round(calculateSharpeRatio(series.Returns()), sharpePlaces)
	result.MaxDrawdownPct = round(series.MaxDrawdown()*100, drawdownPctPlaces)

	return result, series
}

// calculateSharpeRatio is mean over population volatility of daily returns,
// unannualised with a zero risk-free rate. Fewer than two days yields zero.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	vol := stddev(returns)
	if vol <= 0 {
		return 0
	}
	return average(returns) / vol
}

// calculateMaxDrawdown walks the cumulative curve with the running peak
// anchored at zero, so a curve that starts negative registers a drawdown.
func calculateMaxDrawdown(cumulative []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, value := range cumulative {
		if value > peak {
			peak = value
		}
		if dd := peak - value; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func round(value float64, places int32) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}
