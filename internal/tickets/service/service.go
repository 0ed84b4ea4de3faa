package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketdesk/internal/config"
	"ticketdesk/internal/models"
	"ticketdesk/internal/status"
	"ticketdesk/internal/tickets/db"
)

// TicketDBLayer is everything the service needs from storage.
type TicketDBLayer interface {
	CreateTicket(ticket models.Ticket) error
	TicketExists(ticketNumber string) (bool, error)
	GetTicketByNumber(ticketNumber string) (*models.Ticket, error)
	UpdateTicket(ticket models.Ticket) (int64, error)
	UpdateStatusByNumbers(status string, ticketNumbers []string) (int64, error)
	UpdatePriceByNumbers(pay float64, ticketNumbers []string) (int64, error)
	AddSubTicketsByNumbers(delta int, ticketNumbers []string) (int64, error)
	UpdateStatusByBatch(status, batchName string) (int64, error)
	UpdateStatusByDateRange(status, startDate, endDate string) (int64, error)
	DeleteByNumber(ticketNumber string) (int64, error)
	DeleteByBatch(batchName string) (int64, error)
	DeleteByDateRange(startDate, endDate string) (int64, error)
	ListByStatus(status string) ([]models.Ticket, error)
	ListByBatch(batchName string) ([]models.Ticket, error)
	ListAll() ([]models.Ticket, error)
	AllTicketNumbers() ([]string, error)
	GetTicketsByNumbers(ticketNumbers []string) ([]models.Ticket, error)
	BatchSummaries() ([]models.BatchSummary, error)
	ExecRaw(query string) (int64, error)
}

// EventPublisher receives ticket lifecycle notifications. A nil publisher
// disables them.
type EventPublisher interface {
	PublishTicketCreated(ticket models.Ticket) error
	PublishTicketUpdated(ticket models.Ticket) error
	PublishTicketDeleted(ticketNumber string) error
}

var (
	ErrRestrictedSQL   = errors.New("only INSERT or UPDATE statements are allowed")
	ErrNoTicketNumbers = errors.New("no ticket numbers found in input")
	ErrUnknownStatus   = errors.New("unknown status")
)

type TicketService struct {
	DB       TicketDBLayer
	Mapper   *status.Mapper
	Settings *config.Settings
	Status   config.StatusConfig
	Events   EventPublisher

	now func() time.Time
}

func NewTicketService(dbLayer TicketDBLayer, mapper *status.Mapper, settings *config.Settings, statusCfg config.StatusConfig, events EventPublisher) *TicketService {
	return &TicketService{
		DB:       dbLayer,
		Mapper:   mapper,
		Settings: settings,
		Status:   statusCfg,
		Events:   events,
		now:      time.Now,
	}
}

type AddTicketInput struct {
	TicketNumber  string
	NumSubTickets int
	BatchName     string
	Comments      string
	TicketDay     string
	TicketSchool  string
}

// AddTicket inserts one record with intake defaults: the creation timestamp,
// the intake status code, and the current configured unit price. A duplicate
// ticket number is reported as db.ErrDuplicateTicket and never mutates the
// existing record.
func (s *TicketService) AddTicket(input AddTicketInput) (*models.Ticket, error) {
	number := strings.TrimSpace(input.TicketNumber)
	if number == "" {
		return nil, errors.New("ticket number is required")
	}
	subTickets := input.NumSubTickets
	if subTickets < 1 {
		subTickets = 1
	}
	batch := strings.TrimSpace(input.BatchName)
	if batch == "" {
		batch = s.generateBatchName()
	}

	now := s.now()
	ticket := models.Ticket{
		Date:          now.Format("2006-01-02"),
		Time:          now.Format("15:04:05"),
		BatchName:     batch,
		TicketNumber:  number,
		NumSubTickets: subTickets,
		Status:        s.Status.IntakeCode,
		Pay:           s.Settings.TicketPrice(),
		Comments:      input.Comments,
		TicketDay:     input.TicketDay,
		TicketSchool:  input.TicketSchool,
	}

	if err := s.DB.CreateTicket(ticket); err != nil {
		return nil, err
	}
	s.publishCreated(ticket)
	return &ticket, nil
}

type BulkInsertResult struct {
	BatchName  string   `json:"batch_name"`
	Inserted   int      `json:"inserted"`
	Duplicates []string `json:"duplicates"`
}

// AddTicketsFromText splits free text on whitespace and newlines into
// candidate ticket numbers and inserts each under one shared batch. Existing
// numbers land in Duplicates; every non-duplicate is still inserted.
func (s *TicketService) AddTicketsFromText(text, batchName string) (*BulkInsertResult, error) {
	numbers := dedupe(strings.Fields(text))
	if len(numbers) == 0 {
		return nil, ErrNoTicketNumbers
	}

	batch := strings.TrimSpace(batchName)
	if batch == "" {
		batch = s.generateBatchName()
	}

	result := &BulkInsertResult{BatchName: batch, Duplicates: []string{}}
	for _, number := range numbers {
		_, err := s.AddTicket(AddTicketInput{TicketNumber: number, BatchName: batch})
		if errors.Is(err, db.ErrDuplicateTicket) {
			result.Duplicates = append(result.Duplicates, number)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert ticket %s: %w", number, err)
		}
		result.Inserted++
	}
	return result, nil
}

type IngestResult struct {
	Parsed   int   `json:"parsed"`
	Inserted int   `json:"inserted"`
	Updated  int64 `json:"updated"`
}

// IngestRawData parses lines of the form "<ticket-number> - <description>"
// (falling back to the first whitespace token) and upserts them in two
// phases: insert any absent number with intake defaults, then set the status
// of every listed number to the target. The phases are not atomic: a crash
// between them leaves the newly inserted tickets at the intake status rather
// than the target. Re-running the same paste converges.
func (s *TicketService) IngestRawData(text, targetStatus string) (*IngestResult, error) {
	numbers := parseRawTicketLines(text)
	if len(numbers) == 0 {
		return nil, ErrNoTicketNumbers
	}

	code := s.Mapper.ToStorage(targetStatus)
	if !s.Mapper.Known(code) {
		return nil, fmt.Errorf("%w: target %q", ErrUnknownStatus, targetStatus)
	}

	result := &IngestResult{Parsed: len(numbers)}

	for _, number := range numbers {
		_, err := s.AddTicket(AddTicketInput{TicketNumber: number, BatchName: "Auto-Batch"})
		if errors.Is(err, db.ErrDuplicateTicket) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert ticket %s: %w", number, err)
		}
		result.Inserted++
	}

	updated, err := s.DB.UpdateStatusByNumbers(code, numbers)
	if err != nil {
		return nil, fmt.Errorf("update ingested tickets: %w", err)
	}
	result.Updated = updated
	return result, nil
}

type UpdateTicketInput struct {
	Status        *string  `json:"status"` // display label or storage code
	NumSubTickets *int     `json:"num_sub_tickets"`
	Pay           *float64 `json:"pay"`
	Comments      *string  `json:"comments"`
	TicketDay     *string  `json:"ticket_day"`
	TicketSchool  *string  `json:"ticket_school"`
}

// UpdateTicket applies the provided fields to one ticket. A missing ticket
// is a zero-effect result, not an error.
func (s *TicketService) UpdateTicket(ticketNumber string, input UpdateTicketInput) (int64, error) {
	ticket, err := s.DB.GetTicketByNumber(strings.TrimSpace(ticketNumber))
	if errors.Is(err, db.ErrTicketNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if input.Status != nil {
		code := s.Mapper.ToStorage(*input.Status)
		if !s.Mapper.Known(code) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, *input.Status)
		}
		ticket.Status = code
	}
	if input.NumSubTickets != nil {
		if *input.NumSubTickets < 1 {
			return 0, errors.New("num_sub_tickets must be at least 1")
		}
		ticket.NumSubTickets = *input.NumSubTickets
	}
	if input.Pay != nil {
		ticket.Pay = *input.Pay
	}
	if input.Comments != nil {
		ticket.Comments = *input.Comments
	}
	if input.TicketDay != nil {
		ticket.TicketDay = *input.TicketDay
	}
	if input.TicketSchool != nil {
		ticket.TicketSchool = *input.TicketSchool
	}

	rows, err := s.DB.UpdateTicket(*ticket)
	if err == nil && rows > 0 {
		s.publishUpdated(*ticket)
	}
	return rows, err
}

type BulkUpdateResult struct {
	Found    []string `json:"found"`
	Missing  []string `json:"missing"`
	Affected int64    `json:"affected"`
}

// UpdateStatusByList deduplicates the input, partitions it into found and
// missing ticket numbers, and mutates only the found subset.
func (s *TicketService) UpdateStatusByList(ticketNumbers []string, newStatus string) (*BulkUpdateResult, error) {
	code := s.Mapper.ToStorage(newStatus)
	if !s.Mapper.Known(code) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}
	return s.bulkByList(ticketNumbers, func(found []string) (int64, error) {
		return s.DB.UpdateStatusByNumbers(code, found)
	})
}

func (s *TicketService) UpdatePriceByList(ticketNumbers []string, pay float64) (*BulkUpdateResult, error) {
	if pay < 0 {
		return nil, errors.New("price must not be negative")
	}
	return s.bulkByList(ticketNumbers, func(found []string) (int64, error) {
		return s.DB.UpdatePriceByNumbers(pay, found)
	})
}

func (s *TicketService) AddSubTicketsByList(ticketNumbers []string, delta int) (*BulkUpdateResult, error) {
	if delta < 1 {
		return nil, errors.New("additional sub-ticket count must be at least 1")
	}
	return s.bulkByList(ticketNumbers, func(found []string) (int64, error) {
		return s.DB.AddSubTicketsByNumbers(delta, found)
	})
}

func (s *TicketService) bulkByList(ticketNumbers []string, apply func(found []string) (int64, error)) (*BulkUpdateResult, error) {
	numbers := dedupe(ticketNumbers)
	if len(numbers) == 0 {
		return nil, ErrNoTicketNumbers
	}

	result := &BulkUpdateResult{Found: []string{}, Missing: []string{}}
	for _, number := range numbers {
		exists, err := s.DB.TicketExists(number)
		if err != nil {
			return nil, fmt.Errorf("check ticket %s: %w", number, err)
		}
		if exists {
			result.Found = append(result.Found, number)
		} else {
			result.Missing = append(result.Missing, number)
		}
	}

	if len(result.Found) > 0 {
		affected, err := apply(result.Found)
		if err != nil {
			return nil, err
		}
		result.Affected = affected
	}
	return result, nil
}

// UpdateStatusByBatch mutates every ticket in the batch, unconditionally.
func (s *TicketService) UpdateStatusByBatch(batchName, newStatus string) (int64, error) {
	code := s.Mapper.ToStorage(newStatus)
	if !s.Mapper.Known(code) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}
	return s.DB.UpdateStatusByBatch(code, strings.TrimSpace(batchName))
}

func (s *TicketService) UpdateStatusByDateRange(startDate, endDate, newStatus string) (int64, error) {
	code := s.Mapper.ToStorage(newStatus)
	if !s.Mapper.Known(code) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}
	return s.DB.UpdateStatusByDateRange(code, startDate, endDate)
}

func (s *TicketService) DeleteTicket(ticketNumber string) (int64, error) {
	rows, err := s.DB.DeleteByNumber(strings.TrimSpace(ticketNumber))
	if err == nil && rows > 0 {
		s.publishDeleted(ticketNumber)
	}
	return rows, err
}

func (s *TicketService) DeleteBatch(batchName string) (int64, error) {
	return s.DB.DeleteByBatch(strings.TrimSpace(batchName))
}

func (s *TicketService) DeleteByDateRange(startDate, endDate string) (int64, error) {
	return s.DB.DeleteByDateRange(startDate, endDate)
}

func (s *TicketService) GetTicket(ticketNumber string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByNumber(strings.TrimSpace(ticketNumber))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets filters by display label or storage code and/or batch name;
// with neither it returns everything.
func (s *TicketService) ListTickets(statusFilter, batchFilter string) ([]models.Ticket, error) {
	switch {
	case statusFilter != "":
		return s.DB.ListByStatus(s.Mapper.ToStorage(statusFilter))
	case batchFilter != "":
		return s.DB.ListByBatch(batchFilter)
	default:
		return s.DB.ListAll()
	}
}

// BatchSummaries resolves each batch's status list to a single display label
// or "Mixed".
func (s *TicketService) BatchSummaries() ([]models.BatchSummary, error) {
	summaries, err := s.DB.BatchSummaries()
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if strings.Contains(summaries[i].Statuses, ",") {
			summaries[i].Status = "Mixed"
		} else {
			summaries[i].Status = s.Mapper.ToDisplay(summaries[i].Statuses)
		}
	}
	return summaries, nil
}

type ComparisonResult struct {
	Missing        []string        `json:"missing_in_db"`
	Extra          []string        `json:"extra_in_db"`
	Matches        []string        `json:"matches"`
	ExtraTickets   []models.Ticket `json:"extra_tickets"`
	MatchedTickets []models.Ticket `json:"matched_tickets"`
}

// Compare partitions the pasted ticket numbers against the stored set into
// missing (pasted only), extra (stored only), and matches. Lists come back
// sorted for stable rendering.
func (s *TicketService) Compare(text string) (*ComparisonResult, error) {
	pasted := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			pasted[line] = true
		}
	}
	if len(pasted) == 0 {
		return nil, errors.New("no ticket numbers found in input")
	}

	stored, err := s.DB.AllTicketNumbers()
	if err != nil {
		return nil, err
	}
	storedSet := make(map[string]bool, len(stored))
	for _, number := range stored {
		storedSet[number] = true
	}

	result := &ComparisonResult{Missing: []string{}, Extra: []string{}, Matches: []string{}}
	for number := range pasted {
		if storedSet[number] {
			result.Matches = append(result.Matches, number)
		} else {
			result.Missing = append(result.Missing, number)
		}
	}
	for number := range storedSet {
		if !pasted[number] {
			result.Extra = append(result.Extra, number)
		}
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Extra)
	sort.Strings(result.Matches)

	if result.ExtraTickets, err = s.DB.GetTicketsByNumbers(result.Extra); err != nil {
		return nil, err
	}
	if result.MatchedTickets, err = s.DB.GetTicketsByNumbers(result.Matches); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecRestrictedSQL runs a caller-written statement against the ticket
// table. Only INSERT and UPDATE are let through; errors come back as-is for
// display, with no retry.
func (s *TicketService) ExecRestrictedSQL(query string) (int64, error) {
	trimmed := strings.TrimSpace(query)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "INSERT") && !strings.HasPrefix(upper, "UPDATE") {
		return 0, ErrRestrictedSQL
	}
	// The driver executes every statement it is handed, so a semicolon
	// anywhere but as a single trailing terminator would smuggle a second
	// statement past the prefix check. Semicolons inside string literals are
	// rejected too; the console only promises single statements.
	if strings.Contains(strings.TrimSuffix(trimmed, ";"), ";") {
		return 0, ErrRestrictedSQL
	}
	return s.DB.ExecRaw(trimmed)
}

func (s *TicketService) generateBatchName() string {
	return s.Settings.BatchPrefix() + uuid.New().String()[:8]
}

func (s *TicketService) publishCreated(ticket models.Ticket) {
	if s.Events != nil {
		_ = s.Events.PublishTicketCreated(ticket)
	}
}

func (s *TicketService) publishUpdated(ticket models.Ticket) {
	if s.Events != nil {
		_ = s.Events.PublishTicketUpdated(ticket)
	}
}

func (s *TicketService) publishDeleted(ticketNumber string) {
	if s.Events != nil {
		_ = s.Events.PublishTicketDeleted(ticketNumber)
	}
}

// SplitTicketNumbers breaks pasted free text on whitespace and newlines
// into distinct ticket numbers, preserving first-seen order.
func SplitTicketNumbers(text string) []string {
	return dedupe(strings.Fields(text))
}

func parseRawTicketLines(text string) []string {
	var numbers []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if number, _, ok := strings.Cut(line, " - "); ok {
			numbers = append(numbers, strings.TrimSpace(number))
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			numbers = append(numbers, fields[0])
		}
	}
	return dedupe(numbers)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
