package domain

import "strings"

// TrackedPair is the static identity of a supported trading pair.
// Pairs are defined at startup (config) and never change while the
// process runs.
type TrackedPair struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`             // Base asset symbol (e.g., "BTC")
	DisplayName string  `json:"display_name" yaml:"display_name"` // Pair name (e.g., "BTC/USDT")
	BasePrice   float64 `json:"base_price" yaml:"base_price"`     // Session opening price anchor
}

// SplitPair splits a pair display name into (base, quote) symbols.
// Returns ok=false if the name is not of the form "BASE/QUOTE".
func SplitPair(pair string) (base, quote string, ok bool) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
