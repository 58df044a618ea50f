package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// BatchID returns a short deterministic id for an ordered batch of keys.
// Used to correlate log lines of one batch; not a security boundary.
func BatchID(keys []string) string {
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0}) // separator so ["ab"] != ["a","b"]
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
