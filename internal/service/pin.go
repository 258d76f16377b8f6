package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var pinSpace = big.NewInt(10000)

// GeneratePIN returns a uniformly random 4-digit string, "0000" to "9999".
// PINs are not unique across courses.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate deletion PIN: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
