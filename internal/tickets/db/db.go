package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ticketdesk/internal/models"
)

var (
	// ErrDuplicateTicket is returned when an insert targets a ticket number
	// that already exists. The existing record is never touched.
	ErrDuplicateTicket = errors.New("ticket number already exists")

	// ErrTicketNotFound is returned by single-record reads only. Updates and
	// deletes against missing tickets report zero rows affected instead.
	ErrTicketNotFound = errors.New("ticket not found")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateTicket(ticket models.Ticket) error {
	exists, err := d.TicketExists(ticket.TicketNumber)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateTicket
	}
	_, err = d.Bun.NewInsert().Model(&ticket).Exec(context.Background())
	return err
}

func (d *DB) TicketExists(ticketNumber string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_number = ?", ticketNumber).
		Exists(context.Background())
}

func (d *DB) GetTicketByNumber(ticketNumber string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_number = ?", ticketNumber).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateTicket rewrites the mutable fields of the row matching the ticket
// number and reports how many rows that touched (zero when absent).
func (d *DB) UpdateTicket(ticket models.Ticket) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model(&ticket).
		Column("status", "num_sub_tickets", "pay", "comments", "ticket_day", "ticket_school").
		Where("ticket_number = ?", ticket.TicketNumber).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) UpdateStatusByNumbers(status string, ticketNumbers []string) (int64, error) {
	if len(ticketNumbers) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Where("ticket_number IN (?)", bun.In(ticketNumbers)).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) UpdatePriceByNumbers(pay float64, ticketNumbers []string) (int64, error) {
	if len(ticketNumbers) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("pay = ?", pay).
		Where("ticket_number IN (?)", bun.In(ticketNumbers)).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) AddSubTicketsByNumbers(delta int, ticketNumbers []string) (int64, error) {
	if len(ticketNumbers) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("num_sub_tickets = num_sub_tickets + ?", delta).
		Where("ticket_number IN (?)", bun.In(ticketNumbers)).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) UpdateStatusByBatch(status, batchName string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Where("batch_name = ?", batchName).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateStatusByDateRange mutates every ticket whose date falls in
// [startDate, endDate]. Dates are fixed-width YYYY-MM-DD strings, so the
// lexicographic BETWEEN matches chronological order.
func (d *DB) UpdateStatusByDateRange(status, startDate, endDate string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Where("date BETWEEN ? AND ?", startDate, endDate).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) DeleteByNumber(ticketNumber string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("ticket_number = ?", ticketNumber).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) DeleteByBatch(batchName string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("batch_name = ?", batchName).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) DeleteByDateRange(startDate, endDate string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("date BETWEEN ? AND ?", startDate, endDate).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) ListByStatus(status string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("status = ?", status).
		Order("date DESC", "time DESC").
		Scan(context.Background())
	return tickets, err
}

func (d *DB) ListByBatch(batchName string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("batch_name = ?", batchName).
		Order("date DESC", "time DESC").
		Scan(context.Background())
	return tickets, err
}

func (d *DB) ListAll() ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Order("date DESC", "time DESC").
		Scan(context.Background())
	return tickets, err
}

func (d *DB) AllTicketNumbers() ([]string, error) {
	var numbers []string
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("ticket_number").
		Scan(context.Background(), &numbers)
	return numbers, err
}

func (d *DB) GetTicketsByNumbers(ticketNumbers []string) ([]models.Ticket, error) {
	if len(ticketNumbers) == 0 {
		return nil, nil
	}
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("ticket_number IN (?)", bun.In(ticketNumbers)).
		Order("ticket_number").
		Scan(context.Background())
	return tickets, err
}

func (d *DB) BatchSummaries() ([]models.BatchSummary, error) {
	var summaries []models.BatchSummary
	err := d.Bun.NewRaw(`
		SELECT batch_name,
		       SUM(num_sub_tickets) AS total_tickets,
		       GROUP_CONCAT(DISTINCT status) AS statuses
		FROM tickets
		GROUP BY batch_name
		ORDER BY batch_name
	`).Scan(context.Background(), &summaries)
	return summaries, err
}

// ReplaceAll wipes the ticket table and inserts the given rows in its place.
// This is the restore path's documented destructive semantics; there is no
// merge variant.
func (d *DB) ReplaceAll(tickets []models.Ticket) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("1 = 1").
			Exec(ctx); err != nil {
			return err
		}
		if len(tickets) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&tickets).Exec(ctx)
		return err
	})
}

// ExecRaw runs a caller-supplied statement verbatim and reports rows
// affected. Statement vetting happens in the service layer.
func (d *DB) ExecRaw(query string) (int64, error) {
	res, err := d.Bun.ExecContext(context.Background(), query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
