// Package secrets generates the process signing secret. The ledger keeps
// no stored credentials; the only secret in the system is the HMAC key
// material handed to the token codec at startup.
package secrets

import (
	"crypto/rand"
	"encoding/base64"

	dErrors "github.com/oiblz/tally/pkg/domain-errors"
)

// Generate creates a cryptographically secure random secret, base64
// encoded, suitable for TALLY_SECRET.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
