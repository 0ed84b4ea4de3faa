// Package api exposes the reporting endpoints over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ticketdesk/internal/analytics"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/utils"
)

type AnalyticsHandler struct {
	service *analytics.Service
	log     *logger.Logger
}

func NewAnalyticsHandler(service *analytics.Service, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, log: log}
}

func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/summary", h.Summary)
	r.Get("/analytics/daily", h.Daily)
	r.Get("/analytics/earnings", h.Earnings)
	r.Get("/analytics/forecast", h.Forecast)
	r.Get("/analytics/anomalies", h.Anomalies)
	r.Get("/analytics/weekdays", h.Weekdays)
	r.Get("/analytics/heatmap", h.Heatmap)
}

// dateRange reads start/end query params, defaulting to the last 30 days.
func dateRange(r *http.Request) (string, string) {
	end := r.URL.Query().Get("end")
	start := r.URL.Query().Get("start")
	if end == "" {
		end = time.Now().Format("2006-01-02")
	}
	if start == "" {
		start = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	}
	return start, end
}

func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DashboardSummary(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to build dashboard summary", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Dashboard summary", summary)
}

func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	start, end := dateRange(r)
	series, err := h.service.DailySeries(r.Context(), start, end)
	if err != nil {
		h.fail(w, r, "Failed to load daily activity", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Daily activity", series)
}

func (h *AnalyticsHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	start, end := dateRange(r)
	report, err := h.service.Earnings(r.Context(), start, end)
	if err != nil {
		h.fail(w, r, "Failed to load earnings", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Earnings report", report)
}

func (h *AnalyticsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	report, err := h.service.Forecast(r.Context(), metric)
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientHistory) {
			utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.fail(w, r, "Failed to compute forecast", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Forecast", report)
}

func (h *AnalyticsHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Anomalies(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to flag anomalies", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Anomaly report", report)
}

func (h *AnalyticsHandler) Weekdays(w http.ResponseWriter, r *http.Request) {
	averages, err := h.service.WeekdayAverages(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load weekday averages", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Weekday averages", averages)
}

func (h *AnalyticsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	cells, err := h.service.Heatmap(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load heatmap", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Delivery heatmap", cells)
}

func (h *AnalyticsHandler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.log.Error("ANALYTICS", message+": "+err.Error())
	utils.WriteError(w, http.StatusInternalServerError, message)
}
