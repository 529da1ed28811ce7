package backtest

import (
	"bytes"
	"sort"
	"strconv"
	"time"

	"github.com/yourusername/arblens/internal/models"
)

// DailyReturn is one calendar day of replayed opportunities
type DailyReturn struct {
	Date          time.Time `json:"date"`
	Opportunities int       `json:"opportunities"`
	AvgReturn     float64   `json:"avg_return"`
	Cumulative    float64   `json:"cumulative"`
	Drawdown      float64   `json:"drawdown"`
}

// DailySeries is the chronological sequence of days that had records
type DailySeries []DailyReturn

// BuildDailySeries buckets records by the UTC calendar date of created_at and
// orders the days by date whatever the input order. Days without records are absent.
func BuildDailySeries(records []models.HistoricalOpportunity) DailySeries {
	index := make(map[string]int)
	sums := make([]float64, 0)
	series := make(DailySeries, 0)

	for _, rec := range records {
		day := rec.CreatedAt.UTC().Format(models.DateLayout)
		i, ok := index[day]
		if !ok {
			i = len(series)
			index[day] = i
			date, _ := time.Parse(models.DateLayout, day)
			series = append(series, DailyReturn{Date: date})
			sums = append(sums, 0)
		}
		sums[i] += rec.NetSpreadPct / 100
		series[i].Opportunities++
	}

	for i := range series {
		series[i].AvgReturn = sums[i] / float64(series[i].Opportunities)
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	peak := 0.0
	cumulative := 0.0
	for i := range series {
		cumulative += series[i].AvgReturn
		if cumulative > peak {
			peak = cumulative
		}
		series[i].Cumulative = cumulative
		series[i].Drawdown = peak - cumulative
	}
	return series
}

// Returns lists the per-day average returns
func (s DailySeries) Returns() []float64 {
	returns := make([]float64, len(s))
	for i, day := range s {
		returns[i] = day.AvgReturn
	}
	return returns
}

// Cumulative lists the running sum of per-day average returns
func (s DailySeries) Cumulative() []float64 {
	curve := make([]float64, len(s))
	for i, day := range s {
		curve[i] = day.Cumulative
	}
	return curve
}

// MaxDrawdown returns the largest peak-to-trough fall of the cumulative curve
func (s DailySeries) MaxDrawdown() float64 {
	return calculateMaxDrawdown(s.Cumulative())
}

// ToCSV exports the series to a CSV string
func (s DailySeries) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("date,opportunities,avg_return,cumulative,drawdown\n")
	for _, day := range s {
		buf.WriteString(day.Date.Format(models.DateLayout))
		buf.WriteString(",")
		buf.WriteString(strconv.Itoa(day.Opportunities))
		buf.WriteString(",")
		buf.WriteString(formatFloat(day.AvgReturn))
		buf.WriteString(",")
		buf.WriteString(formatFloat(day.Cumulative))
		buf.WriteString(",")
		buf.WriteString(formatFloat(day.Drawdown))
		buf.WriteString("\n")
	}
	return buf.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
