package models

import (
	"github.com/uptrace/bun"
)

// Ticket is one repair job record. A single row may represent several
// physical units via NumSubTickets.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            int64   `bun:"id,pk,autoincrement" json:"id"`
	Date          string  `bun:"date,notnull" json:"date"` // YYYY-MM-DD
	Time          string  `bun:"time,notnull" json:"time"` // HH:MM:SS
	BatchName     string  `bun:"batch_name" json:"batch_name"`
	TicketNumber  string  `bun:"ticket_number,unique,notnull" json:"ticket_number"`
	NumSubTickets int     `bun:"num_sub_tickets,notnull,default:1" json:"num_sub_tickets"`
	Status        string  `bun:"status,notnull" json:"status"`
	Pay           float64 `bun:"pay,notnull" json:"pay"`
	Comments      string  `bun:"comments,default:''" json:"comments"`
	TicketDay     string  `bun:"ticket_day" json:"ticket_day,omitempty"`
	TicketSchool  string  `bun:"ticket_school" json:"ticket_school,omitempty"`
}
