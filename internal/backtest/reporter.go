package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/yourusername/arblens/internal/models"
)

// Export formats supported by ExportDailySeries
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

type dailyReturnRow struct {
	Date          string  `parquet:"date"`
	Opportunities int64   `parquet:"opportunities"`
	AvgReturn     float64 `parquet:"avg_return"`
	Cumulative    float64 `parquet:"cumulative"`
	Drawdown      float64 `parquet:"drawdown"`
}

// GenerateConsoleReport formats a backtest outcome for terminal output
func GenerateConsoleReport(spec models.BacktestSpec, result models.BacktestResult, series DailySeries) string {
	var builder strings.Builder
	builder.WriteString("Backtest Report\n")
	builder.WriteString("================\n")
	if spec.Name != "" {
		builder.WriteString(fmt.Sprintf("Name: %s\n", spec.Name))
	}
	builder.WriteString(fmt.Sprintf("Window: %s to %s\n", spec.StartDate.Format(models.DateLayout), spec.EndDate.Format(models.DateLayout)))
	builder.WriteString(fmt.Sprintf("Min Spread: %.2f%%  Min Liquidity: $%.2f\n", spec.MinSpreadPct, spec.MinLiquidityUSD))
	if len(spec.VenueFilter) > 0 {
		builder.WriteString(fmt.Sprintf("Venues: %s\n", strings.Join(spec.VenueFilter, ", ")))
	}
	builder.WriteString(fmt.Sprintf("Opportunities: %d (%d profitable)\n", result.TotalOpportunities, result.ProfitableOpportunities))
	builder.WriteString(fmt.Sprintf("Trading Days: %d\n", len(series)))
	builder.WriteString(fmt.Sprintf("Total Profit: %.4f (%.2f USD)\n", result.TotalProfitPct, result.TotalProfitUSD))
	builder.WriteString(fmt.Sprintf("Sharpe Ratio: %.2f\n", result.SharpeRatio))
	builder.WriteString(fmt.Sprintf("Max Drawdown: %.4f%%\n", result.MaxDrawdownPct))
	return builder.String()
}

// ExportDailySeries writes the daily return series in the given format
func ExportDailySeries(series DailySeries, outputPath, format string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		data, err := json.MarshalIndent(series, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal daily series: %w", err)
		}
		return os.WriteFile(outputPath, data, 0o644)
	case FormatCSV:
		return os.WriteFile(outputPath, []byte(series.ToCSV()), 0o644)
	case FormatParquet:
		if err := parquet.WriteFile(outputPath, toParquetRows(series)); err != nil {
			return fmt.Errorf("failed to write parquet file: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func toParquetRows(series DailySeries) []dailyReturnRow {
	rows := make([]dailyReturnRow, len(series))
	for i, day := range series {
		rows[i] = dailyReturnRow{
			Date:          day.Date.Format(models.DateLayout),
			Opportunities: int64(day.Opportunities),
			AvgReturn:     day.AvgReturn,
			Cumulative:    day.Cumulative,
			Drawdown:      day.Drawdown,
		}
	}
	return rows
}
