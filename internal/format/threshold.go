// Package format turns raw KPI values into the presentation-ready progress
// signal: a four-level tier against a goal plus a rendered string. The
// rendering kind never influences the tier.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/opsdash/servicekpi/internal/kpi"
)

// Tier is the progress classification of a value against its goal.
type Tier string

const (
	TierOnTarget    Tier = "on-target"
	TierNearTarget  Tier = "near-target"
	TierBelowTarget Tier = "below-target"
	TierOffTarget   Tier = "off-target"
)

// Display colors and icons per tier, consumed by the presentation layer.
var tierDisplay = map[Tier]struct {
	Color string
	Icon  string
}{
	TierOnTarget:    {Color: "#4CAF50", Icon: "✓"},
	TierNearTarget:  {Color: "#2196F3", Icon: "●"},
	TierBelowTarget: {Color: "#FF9800", Icon: "▲"},
	TierOffTarget:   {Color: "#F44336", Icon: "▼"},
}

// Classification is the full presentation signal for one KPI value.
type Classification struct {
	Display  string  `json:"display"`
	GoalText string  `json:"goal_display"`
	Progress float64 `json:"progress"`
	Tier     Tier    `json:"tier"`
	Color    string  `json:"color"`
	Icon     string  `json:"icon"`
}

// Classify computes the progress tier of value against goal and renders
// both. Progress is value/goal in percent, clamped to 100; a zero goal
// yields zero progress.
func Classify(value, goal float64, kind kpi.Format) Classification {
	progress := 0.0
	if goal != 0 {
		progress = math.Min(value/goal*100, 100)
	}

	var tier Tier
	switch {
	case progress >= 100:
		tier = TierOnTarget
	case progress >= 80:
		tier = TierNearTarget
	case progress >= 60:
		tier = TierBelowTarget
	default:
		tier = TierOffTarget
	}

	d := tierDisplay[tier]
	return Classification{
		Display:  Render(value, kind),
		GoalText: renderGoal(goal, kind),
		Progress: progress,
		Tier:     tier,
		Color:    d.Color,
		Icon:     d.Icon,
	}
}

// Render formats a value according to its kind: currency as a 2-decimal
// dollar amount with thousands separators, percentage with 1 decimal,
// number as a separated integer.
func Render(value float64, kind kpi.Format) string {
	switch kind {
	case kpi.FormatCurrency:
		return "$" + groupThousands(fmt.Sprintf("%.2f", value))
	case kpi.FormatPercentage:
		return fmt.Sprintf("%.1f%%", value)
	default:
		return groupThousands(fmt.Sprintf("%.0f", value))
	}
}

// renderGoal renders the goal side of a progress display; goals show
// without decimals.
func renderGoal(goal float64, kind kpi.Format) string {
	switch kind {
	case kpi.FormatCurrency:
		return "$" + groupThousands(fmt.Sprintf("%.0f", goal))
	case kpi.FormatPercentage:
		return fmt.Sprintf("%.0f%%", goal)
	default:
		return groupThousands(fmt.Sprintf("%.0f", goal))
	}
}

// groupThousands inserts comma separators into the integer part of an
// already-formatted decimal string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	out := intPart + frac
	if neg {
		out = "-" + out
	}
	return out
}
