package checkin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// balanceHashLength is the number of hex characters kept from the digest.
const balanceHashLength = 16

// BalanceHash fingerprints the accountKey -> balance map. The JSON encoder
// sorts map keys and emits minimal separators, so equal maps always produce
// equal hashes regardless of insertion order. An empty map hashes to "".
func BalanceHash(balances map[string]float64) string {
	if len(balances) == 0 {
		return ""
	}
	canonical, err := json.Marshal(balances)
	if err != nil {
		// A map[string]float64 cannot fail to marshal unless a balance is
		// NaN/Inf; treat that as "nothing to fingerprint".
		return ""
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:balanceHashLength]
}
