package scraper

import (
	"testing"
	"time"
)

func TestScanDateBank(t *testing.T) {
	now := time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"Sold  Dec 28, 2024", time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC), true},
		{"SOLD Nov 2, 2023", time.Date(2023, 11, 2, 0, 0, 0, 0, time.UTC), true},
		{"Ended January 15, 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"Ended 01/15/2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"completed 2024-07-04", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), true},
		{"Sold today", time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC), true},
		{"ended yesterday", time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC), true},
		{"Sold 3 days ago", now.AddDate(0, 0, -3), true},
		{"no date here", time.Time{}, false},
		{"Sold Foo 12, 2024", time.Time{}, false},
	}

	for _, tc := range cases {
		got, ok := scanDateBank(tc.in, now)
		if ok != tc.ok {
			t.Errorf("scanDateBank(%q): ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && !got.Equal(tc.want) {
			t.Errorf("scanDateBank(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestScanDateBankHoursMinutesAgo(t *testing.T) {
	now := time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)

	got, ok := scanDateBank("Sold 5 hours ago", now)
	if !ok || !got.Equal(now.Add(-5*time.Hour)) {
		t.Errorf("hours ago: got %s, %v", got, ok)
	}
	got, ok = scanDateBank("Sold 30 minutes ago", now)
	if !ok || !got.Equal(now.Add(-30*time.Minute)) {
		t.Errorf("minutes ago: got %s, %v", got, ok)
	}
}

// A month/day with no year resolves to the most recent past occurrence.
func TestYearInference(t *testing.T) {
	now := time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)

	// Jan 3 already happened this year.
	got, ok := scanDateBank("Sold Jan 3", now)
	if !ok || !got.Equal(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("past month-day: got %s, %v", got, ok)
	}

	// Oct 12 has not happened yet, so it must be last year's.
	got, ok = scanDateBank("Sold Oct 12", now)
	if !ok || !got.Equal(time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("future month-day: got %s, %v", got, ok)
	}
}

func TestExplicitDateBeatsRelativePhrase(t *testing.T) {
	now := time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)

	got, ok := scanDateBank("Sold Dec 28, 2024 - 3 days ago", now)
	if !ok || !got.Equal(time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected literal date to win, got %s, %v", got, ok)
	}
}

func TestValidDateRejectsImpossible(t *testing.T) {
	now := time.Date(2025, 8, 28, 15, 0, 0, 0, time.UTC)

	if _, ok := scanDateBank("Ended 02/31/2024", now); ok {
		t.Error("Feb 31 should not parse")
	}
	if _, ok := scanDateBank("Ended 13/10/2024", now); ok {
		t.Error("month 13 should not parse")
	}
}
