package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint computes the content digest used for duplicate
// detection. It is stable across byte-identical content regardless of
// filename or MIME metadata.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
