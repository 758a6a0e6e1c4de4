package store

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestFileHistoryStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileHistoryStore(dir)

	history, err := s.Load()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}

	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	want := map[string]Record{
		"anyrouter_1001":   {Time: now, Balance: f64(25.50)},
		"agentrouter_2002": {Time: now.Add(-time.Hour)},
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	rec := got["anyrouter_1001"]
	if !rec.Time.Equal(now) {
		t.Fatalf("time mismatch: got %v, want %v", rec.Time, now)
	}
	if rec.Balance == nil || *rec.Balance != 25.50 {
		t.Fatalf("balance mismatch: got %v", rec.Balance)
	}
	if got["agentrouter_2002"].Balance != nil {
		t.Fatalf("expected nil balance for record without one")
	}
}

func TestFileHistoryStore_LegacyStringRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, historyFileName)
	content := `{
  "anyrouter_1001": "2026-08-20T09:30:00",
  "anyrouter_1002": {"time": "2026-08-21T09:30:00Z", "balance": 12.5},
  "anyrouter_1003": {"time": "not-a-time"}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	got, err := NewFileHistoryStore(dir).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// The undecodable entry is dropped, the legacy string entry survives.
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	legacy, ok := got["anyrouter_1001"]
	if !ok {
		t.Fatal("legacy string record missing")
	}
	if legacy.Balance != nil {
		t.Fatal("legacy record should have no balance")
	}
	if legacy.Time.Day() != 20 {
		t.Fatalf("legacy time wrong: %v", legacy.Time)
	}
}

func TestFileHistoryStore_FailedSaveKeepsCommittedContent(t *testing.T) {
	dir := t.TempDir()
	s := NewFileHistoryStore(dir)

	committed := map[string]Record{
		"anyrouter_1001": {Time: time.Now().UTC().Truncate(time.Second), Balance: f64(5)},
	}
	if err := s.Save(committed); err != nil {
		t.Fatalf("save: %v", err)
	}

	// NaN cannot be JSON-encoded, so this save fails before touching disk.
	broken := map[string]Record{
		"anyrouter_1001": {Time: time.Now(), Balance: f64(math.NaN())},
	}
	if err := s.Save(broken); err == nil {
		t.Fatal("expected save of NaN balance to fail")
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load after failed save: %v", err)
	}
	if len(got) != 1 || got["anyrouter_1001"].Balance == nil || *got["anyrouter_1001"].Balance != 5 {
		t.Fatalf("committed content corrupted: %+v", got)
	}

	// No temp litter left behind either.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the history file in %s, found %d entries", dir, len(entries))
	}
}

func TestFileBalanceHashStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileBalanceHashStore(dir)

	hash, err := s.Load()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if hash != "" {
		t.Fatalf("expected empty hash, got %q", hash)
	}

	if err := s.Save("a1b2c3d4e5f60718"); err != nil {
		t.Fatalf("save: %v", err)
	}
	hash, err = s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if hash != "a1b2c3d4e5f60718" {
		t.Fatalf("hash mismatch: %q", hash)
	}
}
