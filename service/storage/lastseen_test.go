package storage

import (
	"testing"
	"time"
)

func TestFormatLastSeenBuckets(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 45 * time.Second, "45 S"},
		{"ninety seconds", 90 * time.Second, "1 Min"},
		{"just over an hour", 3700 * time.Second, "1 H"},
		{"two days", 49 * time.Hour, "2 D"},
		{"forty days", 40 * 24 * time.Hour, "1 M"},
		{"four hundred days", 400 * 24 * time.Hour, "1 Y"},
	}

	for _, tc := range cases {
		got := FormatLastSeen(now.Add(-tc.ago), now)
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatLastSeenZero(t *testing.T) {
	if got := FormatLastSeen(time.Time{}, time.Now()); got != "" {
		t.Errorf("zero lastSeen should format empty, got %q", got)
	}
}

func TestFormatLastSeenFuture(t *testing.T) {
	now := time.Now()
	if got := FormatLastSeen(now.Add(time.Minute), now); got != "0 S" {
		t.Errorf("future lastSeen should clamp to 0 S, got %q", got)
	}
}
