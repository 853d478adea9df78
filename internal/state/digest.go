package state

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/teahouse-finance/tvault/internal/types"
)

// Digest hashes the key/value encoding of s in key order. Two states with the
// same rows have the same digest, so a receipt's digest can be checked against
// the state restored from the store.
func Digest(s *types.VaultState) (string, error) {
	kv, err := EncodeState(s)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(kv))
	for key := range kv {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := blake3.New()
	for _, key := range keys {
		_, _ = h.Write([]byte(key))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(kv[key]))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
