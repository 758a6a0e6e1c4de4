package checkin

import "testing"

func TestAnalyzeBalance(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		after      float64
		before     *float64
		wantStatus Status
		wantDiff   *float64
	}{
		{name: "no baseline is a first run", after: 10.0, before: nil, wantStatus: StatusFirstRun},
		{name: "increase is success", after: 7.5, before: f(5.0), wantStatus: StatusSuccess, wantDiff: f(2.5)},
		{name: "unchanged is cooldown", after: 5.0, before: f(5.0), wantStatus: StatusCooldown, wantDiff: f(0)},
		{name: "decrease is cooldown", after: 3.75, before: f(5.0), wantStatus: StatusCooldown, wantDiff: f(-1.25)},
		{name: "sub-cent increase rounds away", after: 10.001, before: f(10.0), wantStatus: StatusCooldown, wantDiff: f(0)},
		{name: "diff rounds to two decimals", after: 10.056, before: f(10.0), wantStatus: StatusSuccess, wantDiff: f(0.06)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, diff := AnalyzeBalance(tt.after, tt.before)
			if status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", status, tt.wantStatus)
			}
			if tt.wantDiff == nil {
				if diff != nil {
					t.Fatalf("diff = %v, want nil", *diff)
				}
				return
			}
			if diff == nil || *diff != *tt.wantDiff {
				t.Fatalf("diff = %v, want %v", diff, *tt.wantDiff)
			}
		})
	}
}

func TestAnomalousDrop(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	if AnomalousDrop(nil) {
		t.Fatal("nil diff must not be anomalous")
	}
	if AnomalousDrop(f(-AnomalyDropThreshold)) {
		t.Fatal("a drop exactly at the threshold must not be anomalous")
	}
	if !AnomalousDrop(f(-AnomalyDropThreshold - 0.01)) {
		t.Fatal("a drop beyond the threshold must be anomalous")
	}
	if AnomalousDrop(f(2.5)) {
		t.Fatal("an increase must not be anomalous")
	}
}
