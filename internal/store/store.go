// Package store persists the per-account signin history and the balance
// change-detection hash. Two interchangeable backends exist: a flat-file
// store (default) and a sqlite store. Exactly one backend is live per run.
package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the last known settlement point for one account: when the last
// decisive signin happened and what the balance was at that moment.
type Record struct {
	Time    time.Time `json:"time"`
	Balance *float64  `json:"balance,omitempty"`
}

// HistoryStore loads and saves the accountKey -> Record map.
// Save must be atomic: a reader after a crash mid-write sees either the old
// or the new content, never a partial record.
type HistoryStore interface {
	Load() (map[string]Record, error)
	Save(history map[string]Record) error
}

// BalanceHashStore persists the 16-character balance fingerprint between
// runs. Load returns "" when no hash has been saved yet.
type BalanceHashStore interface {
	Load() (string, error)
	Save(hash string) error
}

// recordJSON is the on-disk object form of Record.
type recordJSON struct {
	Time    string   `json:"time"`
	Balance *float64 `json:"balance,omitempty"`
}

// MarshalJSON encodes the record with an RFC3339 timestamp.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Time:    r.Time.Format(time.RFC3339),
		Balance: r.Balance,
	})
}

// UnmarshalJSON accepts both the current object form {"time":..,"balance":..}
// and the legacy form where the value is a bare timestamp string.
func (r *Record) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		ts, err := parseTimestamp(legacy)
		if err != nil {
			return err
		}
		*r = Record{Time: ts}
		return nil
	}

	var obj recordJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	ts, err := parseTimestamp(obj.Time)
	if err != nil {
		return err
	}
	*r = Record{Time: ts, Balance: obj.Balance}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized record timestamp %q", s)
}
