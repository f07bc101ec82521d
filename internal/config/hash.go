package config

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint returns the BLAKE3 digest of data as "blake3:<hex>". The host
// logs it at startup and stores it with the journal session.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:])
}
