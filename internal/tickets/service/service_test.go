package service_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketdesk/internal/config"
	"ticketdesk/internal/models"
	"ticketdesk/internal/status"
	"ticketdesk/internal/tickets/db"
	"ticketdesk/internal/tickets/service"
)

// MockTicketDB is a map-backed implementation of the TicketDBLayer interface.
type MockTicketDB struct {
	tickets map[string]*models.Ticket
}

func NewMockTicketDB() *MockTicketDB {
	return &MockTicketDB{tickets: make(map[string]*models.Ticket)}
}

func (m *MockTicketDB) CreateTicket(ticket models.Ticket) error {
	if _, exists := m.tickets[ticket.TicketNumber]; exists {
		return db.ErrDuplicateTicket
	}
	m.tickets[ticket.TicketNumber] = &ticket
	return nil
}

func (m *MockTicketDB) TicketExists(number string) (bool, error) {
	_, exists := m.tickets[number]
	return exists, nil
}

func (m *MockTicketDB) GetTicketByNumber(number string) (*models.Ticket, error) {
	ticket, exists := m.tickets[number]
	if !exists {
		return nil, db.ErrTicketNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (m *MockTicketDB) UpdateTicket(ticket models.Ticket) (int64, error) {
	if _, exists := m.tickets[ticket.TicketNumber]; !exists {
		return 0, nil
	}
	m.tickets[ticket.TicketNumber] = &ticket
	return 1, nil
}

func (m *MockTicketDB) UpdateStatusByNumbers(statusCode string, numbers []string) (int64, error) {
	var affected int64
	for _, n := range numbers {
		if t, exists := m.tickets[n]; exists {
			t.Status = statusCode
			affected++
		}
	}
	return affected, nil
}

func (m *MockTicketDB) UpdatePriceByNumbers(pay float64, numbers []string) (int64, error) {
	var affected int64
	for _, n := range numbers {
		if t, exists := m.tickets[n]; exists {
			t.Pay = pay
			affected++
		}
	}
	return affected, nil
}

func (m *MockTicketDB) AddSubTicketsByNumbers(delta int, numbers []string) (int64, error) {
	var affected int64
	for _, n := range numbers {
		if t, exists := m.tickets[n]; exists {
			t.NumSubTickets += delta
			affected++
		}
	}
	return affected, nil
}

func (m *MockTicketDB) UpdateStatusByBatch(statusCode, batch string) (int64, error) {
	var affected int64
	for _, t := range m.tickets {
		if t.BatchName == batch {
			t.Status = statusCode
			affected++
		}
	}
	return affected, nil
}

func (m *MockTicketDB) UpdateStatusByDateRange(statusCode, start, end string) (int64, error) {
	var affected int64
	for _, t := range m.tickets {
		if t.Date >= start && t.Date <= end {
			t.Status = statusCode
			affected++
		}
	}
	return affected, nil
}

func (m *MockTicketDB) DeleteByNumber(number string) (int64, error) {
	if _, exists := m.tickets[number]; !exists {
		return 0, nil
	}
	delete(m.tickets, number)
	return 1, nil
}

func (m *MockTicketDB) DeleteByBatch(batch string) (int64, error) {
	var affected int64
	for n, t := range m.tickets {
		if t.BatchName == batch {
			delete(m.tickets, n)
			affected++
		}
	}
	return affected, nil
}

func (m *MockTicketDB) DeleteByDateRange(start, end string) (int64, error) {
	var affected int64
	for n, t := range m.tickets {
		if t.Date >= start && t.Date <= end {
			delete(m.tickets, n)
			affected++
		}
	}
	return affected, nil
}

func (m *MockTicketDB) ListByStatus(statusCode string) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.Status == statusCode {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MockTicketDB) ListByBatch(batch string) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.BatchName == batch {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MockTicketDB) ListAll() ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range m.tickets {
		out = append(out, *t)
	}
	return out, nil
}

func (m *MockTicketDB) AllTicketNumbers() ([]string, error) {
	var numbers []string
	for n := range m.tickets {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers, nil
}

func (m *MockTicketDB) GetTicketsByNumbers(numbers []string) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, n := range numbers {
		if t, exists := m.tickets[n]; exists {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MockTicketDB) BatchSummaries() ([]models.BatchSummary, error) {
	totals := make(map[string]int)
	statuses := make(map[string]map[string]bool)
	for _, t := range m.tickets {
		totals[t.BatchName] += t.NumSubTickets
		if statuses[t.BatchName] == nil {
			statuses[t.BatchName] = make(map[string]bool)
		}
		statuses[t.BatchName][t.Status] = true
	}
	var out []models.BatchSummary
	for batch, total := range totals {
		var codes []string
		for code := range statuses[batch] {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		out = append(out, models.BatchSummary{
			BatchName:    batch,
			TotalTickets: total,
			Statuses:     strings.Join(codes, ","),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchName < out[j].BatchName })
	return out, nil
}

func (m *MockTicketDB) ExecRaw(query string) (int64, error) {
	return 0, nil
}

func newTestService(mockDB *MockTicketDB) *service.TicketService {
	cfg := config.StatusConfig{
		Codes:            []string{"Intake", "Return", "Delivered"},
		DisplayOverrides: map[string]string{"Return": "Ready to Deliver"},
		IntakeCode:       "Intake",
		DeliveredCode:    "Delivered",
	}
	settings := config.NewSettings(5.5, "My Business", "Batch-")
	return service.NewTicketService(mockDB, status.Default(), settings, cfg, nil)
}

func TestAddTicketDefaults(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	ticket, err := svc.AddTicket(service.AddTicketInput{TicketNumber: "T1"})
	require.NoError(t, err)

	assert.Equal(t, "Intake", ticket.Status)
	assert.Equal(t, 1, ticket.NumSubTickets)
	assert.Equal(t, 5.5, ticket.Pay)
	assert.True(t, strings.HasPrefix(ticket.BatchName, "Batch-"))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, ticket.Date)
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}$`, ticket.Time)
}

func TestAddTicketDuplicate(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: "T1", NumSubTickets: 3})
	require.NoError(t, err)

	_, err = svc.AddTicket(service.AddTicketInput{TicketNumber: "T1"})
	assert.ErrorIs(t, err, db.ErrDuplicateTicket)

	existing, _ := mockDB.GetTicketByNumber("T1")
	assert.Equal(t, 3, existing.NumSubTickets)
}

func TestAddTicketsFromTextPartitionsDuplicates(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: "OLD1"})
	require.NoError(t, err)

	result, err := svc.AddTicketsFromText("NEW1 OLD1\nNEW2\n NEW3 ", "Batch-7")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, []string{"OLD1"}, result.Duplicates)
	assert.Equal(t, "Batch-7", result.BatchName)

	for _, n := range []string{"NEW1", "NEW2", "NEW3"} {
		ticket, err := mockDB.GetTicketByNumber(n)
		require.NoError(t, err)
		assert.Equal(t, "Batch-7", ticket.BatchName)
	}
}

func TestIngestRawDataTwoPhase(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: "125631"})
	require.NoError(t, err)

	raw := "125633 - Eastport-South Manor / Acer R752T\n" +
		"125632 - Eastport-South Manor / Acer R752T\n" +
		"125631 - Eastport-South Manor / Acer R752T\n" +
		"125630"

	result, err := svc.IngestRawData(raw, "Ready to Deliver")
	require.NoError(t, err)

	assert.Equal(t, 4, result.Parsed)
	assert.Equal(t, 3, result.Inserted) // 125631 already existed
	assert.Equal(t, int64(4), result.Updated)

	// Every listed number ends at the target status, new and pre-existing.
	for _, n := range []string{"125630", "125631", "125632", "125633"} {
		ticket, err := mockDB.GetTicketByNumber(n)
		require.NoError(t, err)
		assert.Equal(t, "Return", ticket.Status, "ticket %s", n)
	}
}

func TestIngestRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(NewMockTicketDB())

	_, err := svc.IngestRawData("1 - x", "Vanished")
	assert.Error(t, err)
}

func TestUpdateStatusByListPartition(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	for _, n := range []string{"A", "B"} {
		_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: n})
		require.NoError(t, err)
	}

	input := []string{"A", "X", "B", "A", "Y"} // includes a duplicate
	result, err := svc.UpdateStatusByList(input, "Delivered")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, result.Found)
	assert.Equal(t, []string{"X", "Y"}, result.Missing)
	assert.Equal(t, int64(2), result.Affected)

	// Disjoint, and their union is the deduplicated input.
	union := append(append([]string{}, result.Found...), result.Missing...)
	sort.Strings(union)
	assert.Equal(t, []string{"A", "B", "X", "Y"}, union)

	for _, n := range []string{"A", "B"} {
		ticket, _ := mockDB.GetTicketByNumber(n)
		assert.Equal(t, "Delivered", ticket.Status)
	}
}

func TestUpdateTicketMissingIsZeroEffect(t *testing.T) {
	svc := newTestService(NewMockTicketDB())

	newStatus := "Delivered"
	rows, err := svc.UpdateTicket("ghost", service.UpdateTicketInput{Status: &newStatus})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestUpdateTicketMapsDisplayLabel(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: "T1"})
	require.NoError(t, err)

	label := "Ready to Deliver"
	rows, err := svc.UpdateTicket("T1", service.UpdateTicketInput{Status: &label})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	ticket, _ := mockDB.GetTicketByNumber("T1")
	assert.Equal(t, "Return", ticket.Status) // stored as the code
}

func TestUpdateTicketRejectsInvalidSubTickets(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: "T1"})
	require.NoError(t, err)

	zero := 0
	_, err = svc.UpdateTicket("T1", service.UpdateTicketInput{NumSubTickets: &zero})
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	for _, n := range []string{"1", "2", "3"} {
		_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: n})
		require.NoError(t, err)
	}

	result, err := svc.Compare("2\n3\n4\n\n4\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"4"}, result.Missing)
	assert.Equal(t, []string{"1"}, result.Extra)
	assert.Equal(t, []string{"2", "3"}, result.Matches)
	assert.Len(t, result.ExtraTickets, 1)
	assert.Len(t, result.MatchedTickets, 2)
}

func TestBatchSummariesMixed(t *testing.T) {
	mockDB := NewMockTicketDB()
	svc := newTestService(mockDB)

	_, err := svc.AddTicket(service.AddTicketInput{TicketNumber: "M1", BatchName: "mix"})
	require.NoError(t, err)
	_, err = svc.AddTicket(service.AddTicketInput{TicketNumber: "M2", BatchName: "mix"})
	require.NoError(t, err)
	_, err = svc.AddTicket(service.AddTicketInput{TicketNumber: "R1", BatchName: "ready"})
	require.NoError(t, err)

	_, err = svc.UpdateStatusByList([]string{"M2"}, "Delivered")
	require.NoError(t, err)
	_, err = svc.UpdateStatusByList([]string{"R1"}, "Ready to Deliver")
	require.NoError(t, err)

	summaries, err := svc.BatchSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "Mixed", summaries[0].Status)
	assert.Equal(t, "Ready to Deliver", summaries[1].Status)
}

func TestExecRestrictedSQL(t *testing.T) {
	svc := newTestService(NewMockTicketDB())

	_, err := svc.ExecRestrictedSQL("DELETE FROM tickets")
	assert.ErrorIs(t, err, service.ErrRestrictedSQL)

	_, err = svc.ExecRestrictedSQL("DROP TABLE tickets")
	assert.ErrorIs(t, err, service.ErrRestrictedSQL)

	_, err = svc.ExecRestrictedSQL("  update tickets set pay = 6 where batch_name = 'x'")
	assert.NoError(t, err)
}

func TestExecRestrictedSQLRejectsCompoundStatements(t *testing.T) {
	svc := newTestService(NewMockTicketDB())

	// An allowed prefix must not smuggle a second statement through.
	_, err := svc.ExecRestrictedSQL("UPDATE tickets SET pay = 1; DROP TABLE tickets")
	assert.ErrorIs(t, err, service.ErrRestrictedSQL)

	_, err = svc.ExecRestrictedSQL("INSERT INTO tickets (ticket_number) VALUES ('1'); DELETE FROM tickets;")
	assert.ErrorIs(t, err, service.ErrRestrictedSQL)

	_, err = svc.ExecRestrictedSQL("UPDATE tickets SET pay = 6;;")
	assert.ErrorIs(t, err, service.ErrRestrictedSQL)

	// A single trailing terminator is still one statement.
	_, err = svc.ExecRestrictedSQL("UPDATE tickets SET pay = 6;")
	assert.NoError(t, err)
}

func TestDeleteTicketZeroEffect(t *testing.T) {
	svc := newTestService(NewMockTicketDB())

	rows, err := svc.DeleteTicket("nothing")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}
