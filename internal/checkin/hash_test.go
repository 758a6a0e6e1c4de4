package checkin

import (
	"regexp"
	"testing"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestBalanceHash(t *testing.T) {
	if got := BalanceHash(nil); got != "" {
		t.Fatalf("hash of nil map = %q, want empty", got)
	}
	if got := BalanceHash(map[string]float64{}); got != "" {
		t.Fatalf("hash of empty map = %q, want empty", got)
	}

	h := BalanceHash(map[string]float64{"anyrouter_1": 25.0, "anyrouter_2": 10.5})
	if !hexRe.MatchString(h) {
		t.Fatalf("hash %q is not 16 lowercase hex chars", h)
	}

	// Insertion order must not matter.
	other := map[string]float64{}
	other["anyrouter_2"] = 10.5
	other["anyrouter_1"] = 25.0
	if got := BalanceHash(other); got != h {
		t.Fatalf("hash differs across insertion order: %q vs %q", got, h)
	}

	changed := BalanceHash(map[string]float64{"anyrouter_1": 25.0, "anyrouter_2": 10.51})
	if changed == h {
		t.Fatal("hash must change when any balance changes")
	}
}
