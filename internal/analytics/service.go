// Package analytics provides the read-only grouped queries behind the
// dashboard: status totals, daily activity, earnings, the linear trend
// forecast, anomaly flags, and the calendar pivots.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"gonum.org/v1/gonum/stat"

	"ticketdesk/internal/config"
	"ticketdesk/internal/status"
)

type Service struct {
	db       *bun.DB
	mapper   *status.Mapper
	statuses config.StatusConfig
	settings *config.Settings
	cache    *SnapshotCache
}

// NewService creates the reporting service. cache may be nil; the dashboard
// summary is then computed on every call.
func NewService(db *bun.DB, mapper *status.Mapper, statuses config.StatusConfig, settings *config.Settings, cache *SnapshotCache) *Service {
	return &Service{
		db:       db,
		mapper:   mapper,
		statuses: statuses,
		settings: settings,
		cache:    cache,
	}
}

// StatusTotals sums sub-ticket counts per status. The result is keyed by
// display label and zero-filled for every configured code.
type StatusTotals struct {
	ByStatus map[string]int `json:"by_status"`
	Overall  int            `json:"overall"`
}

func (s *Service) StatusTotals(ctx context.Context) (*StatusTotals, error) {
	type row struct {
		Status string `bun:"status"`
		Total  int    `bun:"total"`
	}
	var rows []row
	err := s.db.NewRaw(`
		SELECT status, SUM(num_sub_tickets) AS total
		FROM tickets
		GROUP BY status
	`).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	result := &StatusTotals{ByStatus: make(map[string]int, len(s.statuses.Codes))}
	for _, code := range s.statuses.Codes {
		result.ByStatus[s.mapper.ToDisplay(code)] = 0
	}
	for _, r := range rows {
		result.ByStatus[s.mapper.ToDisplay(r.Status)] += r.Total
		result.Overall += r.Total
	}
	return result, nil
}

// DailyActivity is one date's sub-ticket sums split per status.
type DailyActivity struct {
	Date     string         `json:"date"`
	ByStatus map[string]int `json:"by_status"`
	Total    int            `json:"total"`
}

// DailySeries returns per-day activity for dates in [startDate, endDate],
// inclusive on both ends. The comparison is lexicographic, which matches
// chronological order for the fixed-width zero-padded date format.
func (s *Service) DailySeries(ctx context.Context, startDate, endDate string) ([]DailyActivity, error) {
	type row struct {
		Date   string `bun:"date"`
		Status string `bun:"status"`
		Total  int    `bun:"total"`
	}
	var rows []row
	err := s.db.NewRaw(`
		SELECT date, status, SUM(num_sub_tickets) AS total
		FROM tickets
		WHERE date BETWEEN ? AND ?
		GROUP BY date, status
		ORDER BY date
	`, startDate, endDate).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*DailyActivity)
	var dates []string
	for _, r := range rows {
		day, ok := byDate[r.Date]
		if !ok {
			day = &DailyActivity{Date: r.Date, ByStatus: make(map[string]int)}
			byDate[r.Date] = day
			dates = append(dates, r.Date)
		}
		day.ByStatus[s.mapper.ToDisplay(r.Status)] += r.Total
		day.Total += r.Total
	}

	sort.Strings(dates)
	series := make([]DailyActivity, 0, len(dates))
	for _, d := range dates {
		series = append(series, *byDate[d])
	}
	return series, nil
}

// EarningsReport covers received income (delivered tickets, per day in the
// requested range) and pending income (everything not yet delivered,
// regardless of range).
type EarningsReport struct {
	Daily          []DailyValue `json:"daily"`
	TotalReceived  float64      `json:"total_received"`
	PendingIncome  float64      `json:"pending_income"`
	TotalPotential float64      `json:"total_potential"`
}

func (s *Service) Earnings(ctx context.Context, startDate, endDate string) (*EarningsReport, error) {
	var daily []DailyValue
	err := s.db.NewRaw(`
		SELECT date, SUM(num_sub_tickets * pay) AS value
		FROM tickets
		WHERE status = ? AND date BETWEEN ? AND ?
		GROUP BY date
		ORDER BY date
	`, s.statuses.DeliveredCode, startDate, endDate).Scan(ctx, &daily)
	if err != nil {
		return nil, err
	}

	var pending float64
	err = s.db.NewRaw(`
		SELECT COALESCE(SUM(num_sub_tickets * pay), 0)
		FROM tickets
		WHERE status != ?
	`, s.statuses.DeliveredCode).Scan(ctx, &pending)
	if err != nil {
		return nil, err
	}

	report := &EarningsReport{Daily: daily, PendingIncome: pending}
	for _, d := range daily {
		report.TotalReceived += d.Value
	}
	report.TotalPotential = report.TotalReceived + report.PendingIncome
	return report, nil
}

// DeliveredDaily returns the full history of daily delivered sub-ticket
// sums, oldest first. It feeds the forecast, the anomaly flags, and the
// calendar heatmap.
func (s *Service) DeliveredDaily(ctx context.Context) ([]DailyValue, error) {
	var daily []DailyValue
	err := s.db.NewRaw(`
		SELECT date, SUM(num_sub_tickets) AS value
		FROM tickets
		WHERE status = ?
		GROUP BY date
		ORDER BY date
	`, s.statuses.DeliveredCode).Scan(ctx, &daily)
	return daily, err
}

func (s *Service) earningsDaily(ctx context.Context) ([]DailyValue, error) {
	var daily []DailyValue
	err := s.db.NewRaw(`
		SELECT date, SUM(num_sub_tickets * pay) AS value
		FROM tickets
		WHERE status = ?
		GROUP BY date
		ORDER BY date
	`, s.statuses.DeliveredCode).Scan(ctx, &daily)
	return daily, err
}

// ForecastReport pairs the historical series with the straight-line
// extrapolation over the next seven days.
type ForecastReport struct {
	Metric   string       `json:"metric"`
	History  []DailyValue `json:"history"`
	Forecast []DailyValue `json:"forecast"`
}

// Forecast fits a first-degree polynomial to the full history of the chosen
// metric ("delivered" or "earnings") and evaluates it at the next seven
// calendar days. Fewer than two historical points yields
// ErrInsufficientHistory.
func (s *Service) Forecast(ctx context.Context, metric string) (*ForecastReport, error) {
	var (
		history []DailyValue
		err     error
	)
	switch metric {
	case "earnings":
		history, err = s.earningsDaily(ctx)
	default:
		metric = "delivered"
		history, err = s.DeliveredDaily(ctx)
	}
	if err != nil {
		return nil, err
	}

	forecast, err := ForecastSeries(history, 7)
	if err != nil {
		return nil, err
	}
	return &ForecastReport{Metric: metric, History: history, Forecast: forecast}, nil
}

// Anomalies flags each day's delivered count against a static mean ± 2·stddev
// threshold recomputed over the whole history.
func (s *Service) Anomalies(ctx context.Context) (*AnomalyReport, error) {
	history, err := s.DeliveredDaily(ctx)
	if err != nil {
		return nil, err
	}
	return FlagAnomalies(history), nil
}

// WeekdayAverages is the mean per-day sub-ticket count for each weekday,
// split per status, over days that have activity.
type WeekdayAverages struct {
	Weekday  string             `json:"weekday"`
	ByStatus map[string]float64 `json:"by_status"`
}

func (s *Service) WeekdayAverages(ctx context.Context) ([]WeekdayAverages, error) {
	type row struct {
		Date   string `bun:"date"`
		Status string `bun:"status"`
		Total  int    `bun:"total"`
	}
	var rows []row
	err := s.db.NewRaw(`
		SELECT date, status, SUM(num_sub_tickets) AS total
		FROM tickets
		GROUP BY date, status
	`).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	samples := make(map[string]map[string][]float64)
	for _, r := range rows {
		t, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			continue
		}
		weekday := t.Weekday().String()
		if samples[weekday] == nil {
			samples[weekday] = make(map[string][]float64)
		}
		label := s.mapper.ToDisplay(r.Status)
		samples[weekday][label] = append(samples[weekday][label], float64(r.Total))
	}

	order := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	out := make([]WeekdayAverages, 0, len(order))
	for _, weekday := range order {
		byStatus, ok := samples[weekday]
		if !ok {
			continue
		}
		averages := WeekdayAverages{Weekday: weekday, ByStatus: make(map[string]float64, len(byStatus))}
		for label, values := range byStatus {
			averages.ByStatus[label] = stat.Mean(values, nil)
		}
		out = append(out, averages)
	}
	return out, nil
}

// HeatmapCell is one (ISO week, weekday) bucket of delivered sub-tickets.
type HeatmapCell struct {
	Week      int     `json:"week"`
	Weekday   string  `json:"weekday"`
	Delivered float64 `json:"delivered"`
}

func (s *Service) Heatmap(ctx context.Context) ([]HeatmapCell, error) {
	history, err := s.DeliveredDaily(ctx)
	if err != nil {
		return nil, err
	}

	cells := make([]HeatmapCell, 0, len(history))
	for _, d := range history {
		t, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			continue
		}
		_, week := t.ISOWeek()
		cells = append(cells, HeatmapCell{
			Week:      week,
			Weekday:   t.Weekday().String(),
			Delivered: d.Value,
		})
	}
	return cells, nil
}

// DashboardSummary is the top-of-dashboard snapshot: overall totals,
// estimated and realized earnings at the configured unit price, and the
// delivery conversion rate.
type DashboardSummary struct {
	CompanyName       string         `json:"company_name"`
	Overall           int            `json:"overall_total"`
	ByStatus          map[string]int `json:"by_status"`
	EstimatedEarnings float64        `json:"estimated_earnings"`
	ActualEarnings    float64        `json:"actual_earnings"`
	ConversionRate    float64        `json:"conversion_rate"`
}

func (s *Service) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	if s.cache != nil {
		if summary, ok := s.cache.Get(ctx); ok {
			return summary, nil
		}
	}

	totals, err := s.StatusTotals(ctx)
	if err != nil {
		return nil, err
	}

	price := s.settings.TicketPrice()
	intake := totals.ByStatus[s.mapper.ToDisplay(s.statuses.IntakeCode)]
	delivered := totals.ByStatus[s.mapper.ToDisplay(s.statuses.DeliveredCode)]

	summary := &DashboardSummary{
		CompanyName:       s.settings.CompanyName(),
		Overall:           totals.Overall,
		ByStatus:          totals.ByStatus,
		EstimatedEarnings: float64(intake) * price,
		ActualEarnings:    float64(delivered) * price,
	}
	// Delivered against current intake backlog, not the overall total, so
	// the rate exceeds 100% once deliveries outpace new intake.
	if intake > 0 {
		summary.ConversionRate = float64(delivered) / float64(intake) * 100
	}

	if s.cache != nil {
		s.cache.Set(ctx, summary)
	}
	return summary, nil
}
