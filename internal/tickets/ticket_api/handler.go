// Package ticket_api exposes the ticket workflow over HTTP: record CRUD,
// bulk operations, batch management, comparison, the restricted SQL console,
// settings, labels, and backup transfer.
package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ticketdesk/internal/analytics"
	"ticketdesk/internal/backup"
	"ticketdesk/internal/config"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/models"
	"ticketdesk/internal/status"
	"ticketdesk/internal/tickets/db"
	"ticketdesk/internal/tickets/label"
	tickets "ticketdesk/internal/tickets/service"
	"ticketdesk/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Backup        *backup.Service
	Settings      *config.Settings
	Mapper        *status.Mapper
	Snapshots     *analytics.SnapshotCache
	Log           *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, backupService *backup.Service, settings *config.Settings, mapper *status.Mapper, snapshots *analytics.SnapshotCache, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: ticketService,
		Backup:        backupService,
		Settings:      settings,
		Mapper:        mapper,
		Snapshots:     snapshots,
		Log:           log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	r.Post("/tickets", h.CreateTicket)
	r.Post("/tickets/bulk", h.BulkCreate)
	r.Post("/ingest", h.Ingest)
	r.Get("/tickets", h.ListTickets)
	r.Post("/tickets/update-by-list", h.UpdateByList)
	r.Post("/tickets/compare", h.Compare)
	r.Post("/tickets/delete-range", h.DeleteRange)
	r.Put("/tickets/status-by-range", h.StatusByRange)
	r.Get("/tickets/{number}", h.GetTicket)
	r.Put("/tickets/{number}", h.UpdateTicket)
	r.Delete("/tickets/{number}", h.DeleteTicket)
	r.Get("/tickets/{number}/label", h.TicketLabel)

	r.Get("/batches", h.ListBatches)
	r.Put("/batches/{name}/status", h.UpdateBatchStatus)
	r.Delete("/batches/{name}", h.DeleteBatch)

	r.Post("/sql", h.ExecSQL)
	r.Get("/backup/export", h.ExportBackup)
	r.Post("/backup/restore", h.RestoreBackup)
}

// ticketView overlays the display label on top of the stored record.
type ticketView struct {
	models.Ticket
	Status string `json:"status"`
}

func (h *Handler) view(t models.Ticket) ticketView {
	return ticketView{Ticket: t, Status: h.Mapper.ToDisplay(t.Status)}
}

func (h *Handler) views(list []models.Ticket) []ticketView {
	views := make([]ticketView, len(list))
	for i, t := range list {
		views[i] = h.view(t)
	}
	return views
}

// invalidateSnapshots drops the cached dashboard summary after a write.
func (h *Handler) invalidateSnapshots(r *http.Request) {
	if h.Snapshots != nil {
		h.Snapshots.Invalidate(r.Context())
	}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Current settings", h.Settings.Snapshot())
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketPrice *float64 `json:"ticket_price"`
		CompanyName *string  `json:"company_name"`
		BatchPrefix *string  `json:"batch_prefix"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.TicketPrice != nil {
		if *req.TicketPrice < 0 {
			utils.WriteError(w, http.StatusBadRequest, "ticket_price must not be negative")
			return
		}
		h.Settings.SetTicketPrice(*req.TicketPrice)
	}
	if req.CompanyName != nil {
		h.Settings.SetCompanyName(*req.CompanyName)
	}
	if req.BatchPrefix != nil {
		h.Settings.SetBatchPrefix(*req.BatchPrefix)
	}

	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Settings updated", h.Settings.Snapshot())
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketNumber  string `json:"ticket_number"`
		NumSubTickets int    `json:"num_sub_tickets"`
		BatchName     string `json:"batch_name"`
		Comments      string `json:"comments"`
		TicketDay     string `json:"ticket_day"`
		TicketSchool  string `json:"ticket_school"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ticket, err := h.TicketService.AddTicket(tickets.AddTicketInput{
		TicketNumber:  req.TicketNumber,
		NumSubTickets: req.NumSubTickets,
		BatchName:     req.BatchName,
		Comments:      req.Comments,
		TicketDay:     req.TicketDay,
		TicketSchool:  req.TicketSchool,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateTicket) {
			utils.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.LogTicket("CREATED", ticket.TicketNumber, "batch "+ticket.BatchName)
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusCreated, "Ticket created", h.view(*ticket))
}

func (h *Handler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		BatchName string `json:"batch_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.TicketService.AddTicketsFromText(req.Text, req.BatchName)
	if err != nil {
		if errors.Is(err, tickets.ErrNoTicketNumbers) {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "Bulk insert failed", err)
		return
	}

	h.Log.Info("TICKET", fmt.Sprintf("Bulk insert: %d added, %d duplicates in %s", result.Inserted, len(result.Duplicates), result.BatchName))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusCreated, "Bulk insert complete", result)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.TicketService.IngestRawData(req.Text, req.Status)
	if err != nil {
		if errors.Is(err, tickets.ErrNoTicketNumbers) || errors.Is(err, tickets.ErrUnknownStatus) {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "Ingest failed", err)
		return
	}

	h.Log.Info("TICKET", fmt.Sprintf("Ingest: %d parsed, %d inserted, %d updated", result.Parsed, result.Inserted, result.Updated))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Ingest complete", result)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.TicketService.ListTickets(r.URL.Query().Get("status"), r.URL.Query().Get("batch"))
	if err != nil {
		h.fail(w, "Failed to list tickets", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tickets", h.views(list))
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(chi.URLParam(r, "number"))
	if err != nil {
		if errors.Is(err, db.ErrTicketNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Ticket not found")
			return
		}
		h.fail(w, "Failed to load ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket", h.view(*ticket))
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var input tickets.UpdateTicketInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	number := chi.URLParam(r, "number")
	rows, err := h.TicketService.UpdateTicket(number, input)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.LogTicket("UPDATED", number, fmt.Sprintf("%d rows", rows))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Ticket update applied", map[string]int64{"rows_affected": rows})
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	rows, err := h.TicketService.DeleteTicket(number)
	if err != nil {
		h.fail(w, "Failed to delete ticket", err)
		return
	}

	h.Log.LogTicket("DELETED", number, fmt.Sprintf("%d rows", rows))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Ticket delete applied", map[string]int64{"rows_affected": rows})
}

func (h *Handler) TicketLabel(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if _, err := h.TicketService.GetTicket(number); err != nil {
		if errors.Is(err, db.ErrTicketNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Ticket not found")
			return
		}
		h.fail(w, "Failed to load ticket", err)
		return
	}

	size := label.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.WriteError(w, http.StatusBadRequest, "size must be a positive integer")
			return
		}
		size = parsed
	}

	png, err := label.PNG(number, size)
	if err != nil {
		h.fail(w, "Failed to render label", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `inline; filename="ticket-`+number+`.png"`)
	w.Write(png)
}

func (h *Handler) UpdateByList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string   `json:"text"`
		Action string   `json:"action"`
		Status string   `json:"status"`
		Pay    *float64 `json:"pay"`
		Delta  *int     `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	numbers := tickets.SplitTicketNumbers(req.Text)
	var (
		result *tickets.BulkUpdateResult
		err    error
	)
	switch req.Action {
	case "status":
		result, err = h.TicketService.UpdateStatusByList(numbers, req.Status)
	case "price":
		if req.Pay == nil {
			utils.WriteError(w, http.StatusBadRequest, "pay is required for the price action")
			return
		}
		result, err = h.TicketService.UpdatePriceByList(numbers, *req.Pay)
	case "add-subtickets":
		if req.Delta == nil {
			utils.WriteError(w, http.StatusBadRequest, "delta is required for the add-subtickets action")
			return
		}
		result, err = h.TicketService.AddSubTicketsByList(numbers, *req.Delta)
	default:
		utils.WriteError(w, http.StatusBadRequest, "action must be status, price, or add-subtickets")
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.Info("TICKET", fmt.Sprintf("Bulk %s: %d updated, %d missing", req.Action, len(result.Found), len(result.Missing)))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Bulk update applied", result)
}

func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.TicketService.Compare(req.Text)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Comparison", result)
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.TicketService.BatchSummaries()
	if err != nil {
		h.fail(w, "Failed to list batches", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Batches", summaries)
}

func (h *Handler) UpdateBatchStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := chi.URLParam(r, "name")
	rows, err := h.TicketService.UpdateStatusByBatch(name, req.Status)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.Info("TICKET", fmt.Sprintf("Batch %s status change: %d rows", name, rows))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Batch status applied", map[string]int64{"rows_affected": rows})
}

func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rows, err := h.TicketService.DeleteBatch(name)
	if err != nil {
		h.fail(w, "Failed to delete batch", err)
		return
	}

	h.Log.Info("TICKET", fmt.Sprintf("Batch %s deleted: %d rows", name, rows))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Batch delete applied", map[string]int64{"rows_affected": rows})
}

type dateRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (req dateRangeRequest) validate() error {
	for _, d := range []string{req.StartDate, req.EndDate} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
		}
	}
	return nil
}

func (h *Handler) DeleteRange(w http.ResponseWriter, r *http.Request) {
	var req dateRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.TicketService.DeleteByDateRange(req.StartDate, req.EndDate)
	if err != nil {
		h.fail(w, "Failed to delete date range", err)
		return
	}

	h.Log.Info("TICKET", fmt.Sprintf("Range delete %s..%s: %d rows", req.StartDate, req.EndDate, rows))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Range delete applied", map[string]int64{"rows_affected": rows})
}

func (h *Handler) StatusByRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		dateRangeRequest
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.TicketService.UpdateStatusByDateRange(req.StartDate, req.EndDate, req.Status)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.Info("TICKET", fmt.Sprintf("Range status %s..%s: %d rows", req.StartDate, req.EndDate, rows))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Range status applied", map[string]int64{"rows_affected": rows})
}

func (h *Handler) ExecSQL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rows, err := h.TicketService.ExecRestrictedSQL(req.Query)
	if err != nil {
		if errors.Is(err, tickets.ErrRestrictedSQL) {
			utils.WriteError(w, http.StatusForbidden, err.Error())
			return
		}
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.Warn("SQL", "Console statement executed: "+req.Query)
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Statement executed", map[string]int64{"rows_affected": rows})
}

func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tickets-`+time.Now().Format("2006-01-02")+`.csv"`)
	if err := h.Backup.Export(w); err != nil {
		h.Log.Error("BACKUP", "Export failed: "+err.Error())
	}
}

func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	count, err := h.Backup.Restore(r.Body)
	if err != nil {
		if errors.Is(err, backup.ErrMissingColumns) || errors.Is(err, backup.ErrEmptyBackup) {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "Restore failed", err)
		return
	}

	h.Log.Warn("BACKUP", fmt.Sprintf("Database restored from upload: %d tickets", count))
	h.invalidateSnapshots(r)
	utils.WriteSuccess(w, http.StatusOK, "Restore complete", map[string]int{"restored": count})
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	h.Log.Error("API", message+": "+err.Error())
	utils.WriteError(w, http.StatusInternalServerError, message)
}
