// Package checksum fingerprints uploaded files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// documentNamespace scopes name-based document ids to this application.
var documentNamespace = uuid.MustParse("6f1c2d0e-7a59-4b8e-9c53-1d4f0e2a8b77")

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// DocumentID derives the stable document id for a file's content.
// Identical bytes always map to the same id.
func DocumentID(data []byte) string {
	return uuid.NewSHA1(documentNamespace, []byte(Sum(data))).String()
}
