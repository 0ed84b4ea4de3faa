// Package backup exports the ticket table to CSV and restores it from one.
// A restore is destructive: the current table contents are replaced wholesale
// by the uploaded file.
package backup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ticketdesk/internal/models"
)

// Columns is the exported header, in order. Restore accepts any column
// order but requires every name to be present.
var Columns = []string{
	"date", "time", "batch_name", "ticket_number", "num_sub_tickets",
	"status", "pay", "comments", "ticket_day", "ticket_school",
}

var (
	ErrMissingColumns = errors.New("backup: csv is missing required columns")
	ErrEmptyBackup    = errors.New("backup: csv contains no header row")
)

// Store is the slice of the ticket layer a backup needs.
type Store interface {
	ListAll() ([]models.Ticket, error)
	ReplaceAll(tickets []models.Ticket) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Export writes every ticket as CSV. Rows come out in the store's listing
// order, newest first.
func (s *Service) Export(w io.Writer) error {
	tickets, err := s.store.ListAll()
	if err != nil {
		return fmt.Errorf("listing tickets for export: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, t := range tickets {
		record := []string{
			t.Date,
			t.Time,
			t.BatchName,
			t.TicketNumber,
			strconv.Itoa(t.NumSubTickets),
			t.Status,
			strconv.FormatFloat(t.Pay, 'f', -1, 64),
			t.Comments,
			t.TicketDay,
			t.TicketSchool,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Restore parses the whole file first and only then replaces the table, so
// a malformed upload never destroys existing data. Returns the number of
// restored rows.
func (s *Service) Restore(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return 0, ErrEmptyBackup
	}
	if err != nil {
		return 0, fmt.Errorf("reading csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var tickets []models.Ticket
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading csv row: %w", err)
		}
		line++

		field := func(col string) string { return strings.TrimSpace(record[index[col]]) }

		subTickets, err := strconv.Atoi(field("num_sub_tickets"))
		if err != nil {
			return 0, fmt.Errorf("row %d: invalid num_sub_tickets %q", line, field("num_sub_tickets"))
		}
		pay, err := strconv.ParseFloat(field("pay"), 64)
		if err != nil {
			return 0, fmt.Errorf("row %d: invalid pay %q", line, field("pay"))
		}

		tickets = append(tickets, models.Ticket{
			Date:          field("date"),
			Time:          field("time"),
			BatchName:     field("batch_name"),
			TicketNumber:  field("ticket_number"),
			NumSubTickets: subTickets,
			Status:        field("status"),
			Pay:           pay,
			Comments:      field("comments"),
			TicketDay:     field("ticket_day"),
			TicketSchool:  field("ticket_school"),
		})
	}

	if err := s.store.ReplaceAll(tickets); err != nil {
		return 0, fmt.Errorf("replacing tickets: %w", err)
	}
	return len(tickets), nil
}
