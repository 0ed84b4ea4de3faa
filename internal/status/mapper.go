// Package status translates between stored status codes and the labels shown
// to users. Write paths store codes, read paths show labels; anything outside
// the configured enumeration passes through unchanged in both directions.
package status

// Mapper is a two-way lookup built from the configured code list and display
// overrides. Codes without an override display as themselves.
type Mapper struct {
	codes     []string
	toDisplay map[string]string
	toStorage map[string]string
}

// NewMapper builds a mapper for the given storage codes. overrides maps a
// storage code to its display label; codes absent from overrides are
// identity-mapped.
func NewMapper(codes []string, overrides map[string]string) *Mapper {
	m := &Mapper{
		codes:     append([]string(nil), codes...),
		toDisplay: make(map[string]string, len(codes)),
		toStorage: make(map[string]string, len(codes)),
	}
	for _, code := range codes {
		label := code
		if o, ok := overrides[code]; ok {
			label = o
		}
		m.toDisplay[code] = label
		m.toStorage[label] = code
	}
	return m
}

// Default returns the Intake/Return/Delivered mapper with the stored
// "Return" code shown as "Ready to Deliver".
func Default() *Mapper {
	return NewMapper(
		[]string{"Intake", "Return", "Delivered"},
		map[string]string{"Return": "Ready to Deliver"},
	)
}

// ToDisplay returns the label for a storage code. Unknown input is returned
// unchanged, never an error.
func (m *Mapper) ToDisplay(code string) string {
	if label, ok := m.toDisplay[code]; ok {
		return label
	}
	return code
}

// ToStorage returns the storage code for a display label. Unknown input is
// returned unchanged, never an error.
func (m *Mapper) ToStorage(label string) string {
	if code, ok := m.toStorage[label]; ok {
		return code
	}
	return label
}

// Known reports whether code is a member of the configured enumeration.
func (m *Mapper) Known(code string) bool {
	_, ok := m.toDisplay[code]
	return ok
}

// Codes returns the configured storage codes in their configured order.
func (m *Mapper) Codes() []string {
	return append([]string(nil), m.codes...)
}

// Labels returns the display labels in code order.
func (m *Mapper) Labels() []string {
	labels := make([]string, len(m.codes))
	for i, code := range m.codes {
		labels[i] = m.toDisplay[code]
	}
	return labels
}
