// Package label renders printable ticket labels.
package label

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

var ErrEmptyTicketNumber = errors.New("label: ticket number is empty")

// PNG encodes the ticket number as a QR code image of size x size pixels.
// Scanning the label at intake or pickup pulls the ticket up by number.
func PNG(ticketNumber string, size int) ([]byte, error) {
	if ticketNumber == "" {
		return nil, ErrEmptyTicketNumber
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(ticketNumber, qrcode.Medium, size)
}
