package report

import (
	"testing"
	"time"

	"github.com/resivalidator/service-core/internal/report/repo"
)

func TestSummarize(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		row      repo.DayRow
		expected int
	}{
		{"all verified", repo.DayRow{Day: day, TotalResi: 4, VerifiedResi: 4}, 100},
		{"half", repo.DayRow{Day: day, TotalResi: 4, VerifiedResi: 2, PendingResi: 2}, 50},
		{"rounds up", repo.DayRow{Day: day, TotalResi: 3, VerifiedResi: 2, PendingResi: 1}, 67},
		{"rounds down", repo.DayRow{Day: day, TotalResi: 3, VerifiedResi: 1, PendingResi: 2}, 33},
		{"empty day", repo.DayRow{Day: day}, 0},
	}
	for _, tc := range cases {
		got := Summarize(tc.row)
		if got.VerifiedPercent != tc.expected {
			t.Fatalf("%s: percent = %d, expected %d", tc.name, got.VerifiedPercent, tc.expected)
		}
		if got.TotalResi != tc.row.TotalResi || got.VerifiedResi != tc.row.VerifiedResi || got.PendingResi != tc.row.PendingResi {
			t.Fatalf("%s: counts not carried through: %+v", tc.name, got)
		}
	}
}

func TestClampDays(t *testing.T) {
	cases := []struct {
		in       string
		expected int
	}{
		{"", 30},
		{"abc", 30},
		{"0", 30},
		{"-5", 30},
		{"7", 7},
		{"365", 365},
		{"1000", 365},
	}
	for _, tc := range cases {
		if got := ClampDays(tc.in); got != tc.expected {
			t.Fatalf("ClampDays(%q) = %d, expected %d", tc.in, got, tc.expected)
		}
	}
}
