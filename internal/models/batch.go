package models

// BatchSummary is one row of the batch overview: total sub-ticket count per
// batch plus the distinct storage statuses found in it (comma-joined by the
// aggregate query; a batch spanning several statuses renders as "Mixed").
type BatchSummary struct {
	BatchName    string `bun:"batch_name" json:"batch_name"`
	TotalTickets int    `bun:"total_tickets" json:"total_tickets"`
	Statuses     string `bun:"statuses" json:"-"`
	Status       string `bun:"-" json:"status"`
}
