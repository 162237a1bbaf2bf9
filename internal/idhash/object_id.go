package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeObjectID computes a deterministic identifier for a synthetic
// tracked object using SHA256.
// Formula: SHA256(namespace|seed|index), truncated to 12 bytes and
// base58-encoded so identifiers stay short but collision-safe for any
// realistic catalog size.
func ComputeObjectID(namespace string, seed int64, index int) string {
	data := fmt.Sprintf("%s|%d|%d", namespace, seed, index)

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s-%s", namespace, base58.Encode(hash[:12]))
}

// ComputeSubSeed derives a per-object RNG seed from the root seed and the
// object identifier. Deriving instead of sharing one stream keeps each
// object's series independently reproducible regardless of generation order.
func ComputeSubSeed(seed int64, objectID string) int64 {
	data := fmt.Sprintf("%d|%s", seed, objectID)

	hash := sha256.Sum256([]byte(data))
	var sub int64
	for i := 0; i < 8; i++ {
		sub = sub<<8 | int64(hash[i])
	}
	if sub < 0 {
		sub = -sub
	}
	return sub
}
