package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReservationCode returns a random uppercase alphanumeric booking code.
// Codes are not checked for cross-record uniqueness; booking identity is
// carried by (user, date, room).
func NewReservationCode() (string, error) {
	buf := make([]byte, ReservationCodeLength)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate reservation code: %w", err)
		}
		buf[i] = codeCharset[n.Int64()]
	}
	return string(buf), nil
}
