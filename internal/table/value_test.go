package table

import (
	"testing"
	"time"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want float64
		ok   bool
	}{
		{"plain", String("42.5"), 42.5, true},
		{"thousands separators", String("1,234.56"), 1234.56, true},
		{"currency symbol", String("$1,200"), 1200, true},
		{"whitespace", String("  7 "), 7, true},
		{"negative", String("-3"), -3, true},
		{"not a number", String("n/a"), 0, false},
		{"empty", String(""), 0, false},
		{"missing", Missing, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseNumber(%q) = (%v, %v), want (%v, %v)", tt.in.Raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want float64
		ok   bool
	}{
		{"plain number", String("85"), 85, true},
		{"percent suffix", String("90%"), 90, true},
		{"suffix with space", String(" 72.5 % "), 72.5, true},
		{"not a number", String("not-a-number"), 0, false},
		{"double suffix", String("90%%"), 0, false},
		{"missing", Missing, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePercent(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParsePercent(%q) = (%v, %v), want (%v, %v)", tt.in.Raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"date only", "2025-03-10", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"datetime", "2025-03-10 14:30:00", time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC), true},
		{"us format", "03/10/2025", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"garbage", "soon", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(String(tt.in))
			if ok != tt.ok {
				t.Fatalf("ParseTime(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold(String("Gold Membership Plan"), "membership") {
		t.Error("expected case-insensitive match")
	}
	if ContainsFold(Missing, "membership") {
		t.Error("missing cell must not match")
	}
	if ContainsFold(String("anything"), "") {
		t.Error("empty keyword must not match")
	}
}
