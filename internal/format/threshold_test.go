package format

import (
	"math"
	"testing"

	"github.com/opsdash/servicekpi/internal/kpi"
)

func TestClassifyTiers(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		goal     float64
		tier     Tier
		progress float64
	}{
		{"exceeds goal clamps at 100", 3000, 2500, TierOnTarget, 100},
		{"exactly on goal", 2500, 2500, TierOnTarget, 100},
		{"above goal counts on-target", 82, 80, TierOnTarget, 100},
		{"near target", 85, 100, TierNearTarget, 85},
		{"near boundary at 80", 80, 100, TierNearTarget, 80},
		{"below target", 70, 100, TierBelowTarget, 70},
		{"below boundary at 60", 60, 100, TierBelowTarget, 60},
		{"off target", 59, 100, TierOffTarget, 59},
		{"zero value", 0, 100, TierOffTarget, 0},
		{"zero goal", 50, 0, TierOffTarget, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.value, tt.goal, kpi.FormatPercentage)
			if c.Tier != tt.tier {
				t.Errorf("tier: got %s, want %s", c.Tier, tt.tier)
			}
			if math.Abs(c.Progress-tt.progress) > 1e-9 {
				t.Errorf("progress: got %v, want %v", c.Progress, tt.progress)
			}
		})
	}
}

func TestClassifyDisplaySignal(t *testing.T) {
	c := Classify(82, 80, kpi.FormatPercentage)
	if c.Display != "82.0%" {
		t.Errorf("display: got %q, want %q", c.Display, "82.0%")
	}
	if c.GoalText != "80%" {
		t.Errorf("goal text: got %q, want %q", c.GoalText, "80%")
	}
	if c.Color != "#4CAF50" || c.Icon != "✓" {
		t.Errorf("expected on-target color and icon, got %q %q", c.Color, c.Icon)
	}

	c = Classify(40, 100, kpi.FormatPercentage)
	if c.Color != "#F44336" || c.Icon != "▼" {
		t.Errorf("expected off-target color and icon, got %q %q", c.Color, c.Icon)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		value float64
		kind  kpi.Format
		want  string
	}{
		{1234.5, kpi.FormatCurrency, "$1,234.50"},
		{1234567.891, kpi.FormatCurrency, "$1,234,567.89"},
		{0, kpi.FormatCurrency, "$0.00"},
		{87.5, kpi.FormatPercentage, "87.5%"},
		{100, kpi.FormatPercentage, "100.0%"},
		{42, kpi.FormatNumber, "42"},
		{12345, kpi.FormatNumber, "12,345"},
		{-1234.5, kpi.FormatCurrency, "$-1,234.50"},
	}
	for _, tt := range tests {
		if got := Render(tt.value, tt.kind); got != tt.want {
			t.Errorf("Render(%v, %s): got %q, want %q", tt.value, tt.kind, got, tt.want)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	tests := []struct{ in, want string }{
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567.89", "1,234,567.89"},
		{"-1234", "-1,234"},
	}
	for _, tt := range tests {
		if got := groupThousands(tt.in); got != tt.want {
			t.Errorf("groupThousands(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
