package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 20
	charset  = "abcdefghijklmnopqrstuvwxyz0123456789"

	runIDPrefix = "run_"
)

var runIDPattern = regexp.MustCompile(`^run_[a-z0-9]{20}$`)

// NewRunID generates a new run ID with the "run_" prefix followed by 20
// cryptographically random lowercase alphanumeric characters. Run IDs
// namespace per-request output directories, so they must be unique across
// concurrent requests and safe as path components.
func NewRunID() string {
	return runIDPrefix + randomAlphanumeric(idLength)
}

// ValidateRunID checks whether the given string is a well-formed run ID.
func ValidateRunID(id string) bool {
	return runIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
