// Package features turns raw time-ordered records into fixed-width numeric
// windows. Every function is pure and tolerates empty or short input by
// padding; rejecting short input is the caller's job.
package features

import (
	"math"

	"AgriCast/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// Epsilon guards every division by a range or deviation.
	Epsilon = 1e-8
	// RollingWindow is the trailing length used for rolling statistics.
	RollingWindow = 7
)

// Window returns exactly n rows: the most recent n of rows, left-padded by
// repeating the earliest kept row, or zero rows of the given width when rows
// is empty. Rows are copied.
func Window(rows [][]float64, n, width int) [][]float64 {
	if n <= 0 {
		return nil
	}
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	out := make([][]float64, 0, n)
	pad := make([]float64, width)
	if len(rows) > 0 {
		pad = rows[0]
	}
	for i := len(rows); i < n; i++ {
		out = append(out, append([]float64(nil), pad...))
	}
	for _, r := range rows {
		out = append(out, append([]float64(nil), r...))
	}
	return out
}

// RollingStats returns mean, population std, max and min of the RollingWindow
// values preceding index i. Before index RollingWindow it returns zeros.
func RollingStats(values []float64, i int) (mean, std, max, min float64) {
	if i < RollingWindow || i > len(values) {
		return 0, 0, 0, 0
	}
	w := values[i-RollingWindow : i]
	mean, std = stat.PopMeanStdDev(w, nil)
	return mean, std, floats.Max(w), floats.Min(w)
}

// MinMaxNormalize scales every column independently to
// (x - min) / (max - min + Epsilon). The input is left untouched.
func MinMaxNormalize(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	width := len(m[0])
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = make([]float64, width)
	}
	col := make([]float64, len(m))
	for j := 0; j < width; j++ {
		for i := range m {
			col[i] = m[i][j]
		}
		lo, hi := floats.Min(col), floats.Max(col)
		for i := range m {
			out[i][j] = (m[i][j] - lo) / (hi - lo + Epsilon)
		}
	}
	return out
}

// LogReturns returns ln(p_t + Epsilon) - ln(p_{t-1} + Epsilon) with a leading
// zero, so the result has the same length as prices.
func LogReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for t := 1; t < len(prices); t++ {
		out[t] = math.Log(prices[t]+Epsilon) - math.Log(prices[t-1]+Epsilon)
	}
	return out
}

// ZScore standardizes xs with its own population mean and deviation.
func ZScore(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	for i, x := range xs {
		out[i] = (x - mean) / (std + Epsilon)
	}
	return out
}

// PriceSequence builds the price model input: the last n prices (left-padded
// with the earliest kept price), converted to log returns and z-scored.
// Empty input yields n zeros.
func PriceSequence(prices []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(prices) == 0 {
		return make([]float64, n)
	}
	if len(prices) > n {
		prices = prices[len(prices)-n:]
	}
	window := make([]float64, 0, n)
	for i := len(prices); i < n; i++ {
		window = append(window, prices[0])
	}
	window = append(window, prices...)
	return ZScore(LogReturns(window))
}

// ClimateFeatures lists the yield model input columns in order.
var ClimateFeatures = []string{
	"temperature",
	"precipitation",
	"humidity",
	"solar_radiation",
	"gdd",
	"soil_moisture",
}

// climateDefaults fill readings a record does not carry.
var climateDefaults = [...]float64{25.0, 5.0, 70.0, 500.0, 10.0, 0.3}

// ClimateRow flattens one record into ClimateFeatures order.
func ClimateRow(r models.ClimateRecord) []float64 {
	fields := [...]*float64{r.Temperature, r.Precipitation, r.Humidity, r.SolarRadiation, r.GDD, r.SoilMoisture}
	row := make([]float64, len(fields))
	for i, f := range fields {
		if f != nil {
			row[i] = *f
		} else {
			row[i] = climateDefaults[i]
		}
	}
	return row
}

// ClimateWindow builds the normalized n-row yield model input.
func ClimateWindow(records []models.ClimateRecord, n int) [][]float64 {
	rows := make([][]float64, len(records))
	for i, r := range records {
		rows[i] = ClimateRow(r)
	}
	return MinMaxNormalize(Window(rows, n, len(ClimateFeatures)))
}

// AnomalyFeatures lists the anomaly scorer input columns in order.
var AnomalyFeatures = []string{
	"value",
	"change",
	"volatility",
	"index",
	"rolling_mean",
	"rolling_std",
	"rolling_max",
	"rolling_min",
}

// AnomalyRows builds one feature row per point. Rolling columns are zero for
// the first RollingWindow points.
func AnomalyRows(points []models.TimeSeriesPoint) [][]float64 {
	values := Values(points)
	rows := make([][]float64, len(points))
	for i, p := range points {
		mean, std, max, min := RollingStats(values, i)
		rows[i] = []float64{p.Value, p.Change, p.Volatility, float64(i), mean, std, max, min}
	}
	return rows
}

// Values extracts the value column of a series.
func Values(points []models.TimeSeriesPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
