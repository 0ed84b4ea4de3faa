package analytics

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientHistory is returned when a trend fit is requested with
// fewer than two historical points.
var ErrInsufficientHistory = errors.New("analytics: at least two days of history are required")

// DailyValue is one date paired with an aggregated numeric value.
type DailyValue struct {
	Date  string  `bun:"date" json:"date"`
	Value float64 `bun:"value" json:"value"`
}

// AnomalyPoint is a day's delivered count with its anomaly verdict.
type AnomalyPoint struct {
	Date      string  `json:"date"`
	Delivered float64 `json:"delivered"`
	Anomaly   string  `json:"anomaly"`
}

// AnomalyReport carries the flagged series together with the statistics the
// threshold was derived from.
type AnomalyReport struct {
	Mean   float64        `json:"mean"`
	StdDev float64        `json:"std_dev"`
	Points []AnomalyPoint `json:"points"`
}

// ForecastSeries fits y = alpha + beta*x over the history, with x the day
// ordinal (Unix days), and evaluates the line at the next `days` calendar
// days after the last historical date. Dates that fail to parse are skipped.
func ForecastSeries(history []DailyValue, days int) ([]DailyValue, error) {
	xs := make([]float64, 0, len(history))
	ys := make([]float64, 0, len(history))
	var last time.Time
	for _, point := range history {
		t, err := time.Parse("2006-01-02", point.Date)
		if err != nil {
			continue
		}
		xs = append(xs, float64(t.Unix()/86400))
		ys = append(ys, point.Value)
		if t.After(last) {
			last = t
		}
	}
	if len(xs) < 2 {
		return nil, ErrInsufficientHistory
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	forecast := make([]DailyValue, 0, days)
	for i := 1; i <= days; i++ {
		day := last.AddDate(0, 0, i)
		x := float64(day.Unix() / 86400)
		forecast = append(forecast, DailyValue{
			Date:  day.Format("2006-01-02"),
			Value: alpha + beta*x,
		})
	}
	return forecast, nil
}

// FlagAnomalies marks each point whose value falls strictly outside
// mean ± 2·stddev, with the sample standard deviation computed over the
// whole series. Points exactly on a boundary are not anomalies. Series too
// short to yield a spread are reported with every point normal.
func FlagAnomalies(history []DailyValue) *AnomalyReport {
	report := &AnomalyReport{Points: make([]AnomalyPoint, 0, len(history))}
	if len(history) == 0 {
		return report
	}

	values := make([]float64, len(history))
	for i, point := range history {
		values[i] = point.Value
	}
	report.Mean = stat.Mean(values, nil)
	if len(values) >= 2 {
		sd := stat.StdDev(values, nil)
		if !math.IsNaN(sd) {
			report.StdDev = sd
		}
	}

	low := report.Mean - 2*report.StdDev
	high := report.Mean + 2*report.StdDev
	for _, point := range history {
		verdict := "No"
		if report.StdDev > 0 && (point.Value < low || point.Value > high) {
			verdict = "Yes"
		}
		report.Points = append(report.Points, AnomalyPoint{
			Date:      point.Date,
			Delivered: point.Value,
			Anomaly:   verdict,
		})
	}
	return report
}
