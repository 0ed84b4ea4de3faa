package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ticketdesk/internal/models"
	"ticketdesk/internal/tickets/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func ticket(number, date, batch, status string, subTickets int, pay float64) models.Ticket {
	return models.Ticket{
		Date:          date,
		Time:          "12:00:00",
		BatchName:     batch,
		TicketNumber:  number,
		NumSubTickets: subTickets,
		Status:        status,
		Pay:           pay,
	}
}

func TestCreateAndGetTicket(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	err := ticketDB.CreateTicket(ticket("T100", "2025-03-01", "Batch-1", "Intake", 2, 5.5))
	assert.NoError(t, err)

	got, err := ticketDB.GetTicketByNumber("T100")
	assert.NoError(t, err)
	assert.Equal(t, "T100", got.TicketNumber)
	assert.Equal(t, "Batch-1", got.BatchName)
	assert.Equal(t, 2, got.NumSubTickets)
	assert.Equal(t, 5.5, got.Pay)

	_, err = ticketDB.GetTicketByNumber("missing")
	assert.ErrorIs(t, err, db.ErrTicketNotFound)
}

func TestDuplicateInsertLeavesExistingUntouched(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("T200", "2025-03-01", "Batch-1", "Intake", 3, 5.5)))

	err := ticketDB.CreateTicket(ticket("T200", "2025-03-02", "Batch-2", "Delivered", 9, 99.0))
	assert.ErrorIs(t, err, db.ErrDuplicateTicket)

	got, err := ticketDB.GetTicketByNumber("T200")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", got.Date)
	assert.Equal(t, "Batch-1", got.BatchName)
	assert.Equal(t, 3, got.NumSubTickets)
	assert.Equal(t, "Intake", got.Status)
}

func TestUpdateTicket(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("T300", "2025-03-01", "Batch-1", "Intake", 1, 5.5)))

	updated := ticket("T300", "2025-03-01", "Batch-1", "Delivered", 4, 7.0)
	updated.Comments = "rush job"
	rows, err := ticketDB.UpdateTicket(updated)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	got, err := ticketDB.GetTicketByNumber("T300")
	require.NoError(t, err)
	assert.Equal(t, "Delivered", got.Status)
	assert.Equal(t, 4, got.NumSubTickets)
	assert.Equal(t, 7.0, got.Pay)
	assert.Equal(t, "rush job", got.Comments)

	// Missing target reports zero rows, not an error.
	rows, err = ticketDB.UpdateTicket(ticket("nope", "2025-03-01", "", "Intake", 1, 5.5))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestBulkStatusUpdateByNumbers(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	for _, n := range []string{"A1", "A2", "A3"} {
		require.NoError(t, ticketDB.CreateTicket(ticket(n, "2025-03-01", "Batch-1", "Intake", 1, 5.5)))
	}

	rows, err := ticketDB.UpdateStatusByNumbers("Return", []string{"A1", "A3", "ghost"})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	got, _ := ticketDB.GetTicketByNumber("A2")
	assert.Equal(t, "Intake", got.Status)

	rows, err = ticketDB.UpdateStatusByNumbers("Delivered", nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestUpdateByBatchAndDateRange(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("B1", "2025-03-01", "alpha", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("B2", "2025-03-05", "alpha", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("B3", "2025-03-10", "beta", "Intake", 1, 5.5)))

	rows, err := ticketDB.UpdateStatusByBatch("Delivered", "alpha")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	// Inclusive on both ends.
	rows, err = ticketDB.UpdateStatusByDateRange("Return", "2025-03-10", "2025-03-10")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	got, _ := ticketDB.GetTicketByNumber("B3")
	assert.Equal(t, "Return", got.Status)
}

func TestAddSubTicketsAndPrice(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("C1", "2025-03-01", "b", "Intake", 2, 5.5)))

	rows, err := ticketDB.AddSubTicketsByNumbers(3, []string{"C1"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = ticketDB.UpdatePriceByNumbers(8.25, []string{"C1"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	got, _ := ticketDB.GetTicketByNumber("C1")
	assert.Equal(t, 5, got.NumSubTickets)
	assert.Equal(t, 8.25, got.Pay)
}

func TestDeleteByBatchScopedExactly(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("D1", "2025-03-01", "keep", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("D2", "2025-03-01", "drop", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("D3", "2025-03-02", "drop", "Intake", 1, 5.5)))

	rows, err := ticketDB.DeleteByBatch("drop")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	numbers, err := ticketDB.AllTicketNumbers()
	assert.NoError(t, err)
	assert.Equal(t, []string{"D1"}, numbers)

	// Deleting an absent target is a zero-effect result.
	rows, err = ticketDB.DeleteByNumber("ghost")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestDeleteByDateRange(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("E1", "2025-02-28", "b", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("E2", "2025-03-01", "b", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("E3", "2025-03-15", "b", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("E4", "2025-03-16", "b", "Intake", 1, 5.5)))

	rows, err := ticketDB.DeleteByDateRange("2025-03-01", "2025-03-15")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	numbers, _ := ticketDB.AllTicketNumbers()
	assert.ElementsMatch(t, []string{"E1", "E4"}, numbers)
}

func TestBatchSummaries(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("F1", "2025-03-01", "mixed", "Intake", 2, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("F2", "2025-03-01", "mixed", "Delivered", 3, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("F3", "2025-03-01", "plain", "Intake", 1, 5.5)))

	summaries, err := ticketDB.BatchSummaries()
	assert.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "mixed", summaries[0].BatchName)
	assert.Equal(t, 5, summaries[0].TotalTickets)
	assert.Contains(t, summaries[0].Statuses, "Intake")
	assert.Contains(t, summaries[0].Statuses, "Delivered")

	assert.Equal(t, "plain", summaries[1].BatchName)
	assert.Equal(t, "Intake", summaries[1].Statuses)
}

func TestReplaceAll(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, ticketDB.CreateTicket(ticket("old1", "2025-01-01", "b", "Intake", 1, 5.5)))
	require.NoError(t, ticketDB.CreateTicket(ticket("old2", "2025-01-02", "b", "Intake", 1, 5.5)))

	err := ticketDB.ReplaceAll([]models.Ticket{
		ticket("new1", "2025-03-01", "restored", "Delivered", 2, 6.0),
	})
	assert.NoError(t, err)

	numbers, err := ticketDB.AllTicketNumbers()
	assert.NoError(t, err)
	assert.Equal(t, []string{"new1"}, numbers)
}

func TestExecRaw(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	rows, err := ticketDB.ExecRaw(
		"INSERT INTO tickets (date, time, batch_name, ticket_number, num_sub_tickets, status, pay, comments) " +
			"VALUES ('2025-03-24', '12:34:56', 'Batch-100', 'RAW1', 1, 'Intake', 5.5, '')")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	_, err = ticketDB.ExecRaw("UPDATE nowhere SET x = 1")
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	count, err := ticketDB.CountUsers()
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, ticketDB.CreateUser(models.User{Username: "admin", Password: "admin"}))

	user, err := ticketDB.GetUserByUsername("admin")
	assert.NoError(t, err)
	assert.Equal(t, "admin", user.Password)

	_, err = ticketDB.GetUserByUsername("ghost")
	assert.ErrorIs(t, err, db.ErrUserNotFound)
}
