package config

import "sync"

// Settings are the operator-tunable dashboard values: the unit price applied
// to new tickets, the company name shown on reports, and the prefix used for
// auto-generated batch names. One instance is built at startup and threaded
// explicitly into every component that needs it; the settings API mutates it
// at runtime. Changes do not persist across restarts.
type Settings struct {
	mu          sync.RWMutex
	ticketPrice float64
	companyName string
	batchPrefix string
}

// SettingsSnapshot is a point-in-time copy safe to serialize.
type SettingsSnapshot struct {
	TicketPrice float64 `json:"ticket_price"`
	CompanyName string  `json:"company_name"`
	BatchPrefix string  `json:"batch_prefix"`
}

func NewSettings(ticketPrice float64, companyName, batchPrefix string) *Settings {
	return &Settings{
		ticketPrice: ticketPrice,
		companyName: companyName,
		batchPrefix: batchPrefix,
	}
}

func (s *Settings) TicketPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticketPrice
}

func (s *Settings) CompanyName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companyName
}

func (s *Settings) BatchPrefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchPrefix
}

func (s *Settings) SetTicketPrice(price float64) {
	s.mu.Lock()
	s.ticketPrice = price
	s.mu.Unlock()
}

func (s *Settings) SetCompanyName(name string) {
	s.mu.Lock()
	s.companyName = name
	s.mu.Unlock()
}

func (s *Settings) SetBatchPrefix(prefix string) {
	s.mu.Lock()
	s.batchPrefix = prefix
	s.mu.Unlock()
}

func (s *Settings) Snapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsSnapshot{
		TicketPrice: s.ticketPrice,
		CompanyName: s.companyName,
		BatchPrefix: s.batchPrefix,
	}
}
