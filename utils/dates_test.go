package utils

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Run("Given an ISO date When parsed Then returns UTC midnight", func(t *testing.T) {
		got, err := ParseDate("2025-12-02")
		if err != nil {
			t.Fatalf("ParseDate failed: %v", err)
		}
		want := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("Given an impossible date When parsed Then returns error", func(t *testing.T) {
		if _, err := ParseDate("2025-02-30"); err == nil {
			t.Fatal("expected error for 2025-02-30")
		}
	})

	t.Run("Given a timestamp When parsed Then returns error", func(t *testing.T) {
		if _, err := ParseDate("2025-12-02T10:00:00Z"); err == nil {
			t.Fatal("expected error for a full timestamp")
		}
	})
}

func TestNights(t *testing.T) {
	in := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	out := time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)
	if n := Nights(in, out); n != 4 {
		t.Errorf("Nights() = %d, want 4", n)
	}
	if n := Nights(in, in.Add(14*time.Hour)); n != 0 {
		t.Errorf("same calendar day should be 0 nights, got %d", n)
	}
}
