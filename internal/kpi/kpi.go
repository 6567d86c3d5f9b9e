// Package kpi holds the calculator registry. Every calculator is a pure
// function over the unified table: it filters by technician, reads whatever
// columns it needs, and degrades to a documented fallback when the data
// cannot support the computation. No calculator ever returns an error.
package kpi

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdash/servicekpi/internal/diag"
	"github.com/opsdash/servicekpi/internal/table"
)

// Column names the calculators read.
const (
	ColTechnician      = "Technician"
	ColApptStatus      = "Appt Status"
	ColRevenue         = "Revenue"
	ColCreatedAt       = "Created At"
	ColJobEfficiency   = "Job Efficiency"
	ColServiceCategory = "Service Category"
	ColItemsSold       = "Items_Sold"
	ColItemsQty        = "Total_Items_Qty"

	// StatusCompleted is the sentinel marking a won/closed appointment.
	StatusCompleted = "Completed"

	// ActorAll is the sentinel filter meaning "no restriction".
	ActorAll = "All"
)

// Format controls how a KPI value renders.
type Format string

const (
	FormatCurrency   Format = "currency"
	FormatPercentage Format = "percentage"
	FormatNumber     Format = "number"
)

// Keywords are the substring sets used by the keyword-matching calculators.
type Keywords struct {
	HydroJetting []string `yaml:"hydro_jetting"`
	Descaling    []string `yaml:"descaling"`
	Warranty     []string `yaml:"warranty"`
	Membership   []string `yaml:"membership"`
}

// DefaultKeywords returns the built-in keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		HydroJetting: []string{"jetting", "hydro"},
		Descaling:    []string{"descal"},
		Warranty:     []string{"warranty"},
		Membership:   []string{"membership"},
	}
}

// DefaultComplianceRate is reported when no efficiency column exists at
// all: completed work is assumed compliant rather than shown as 0% purely
// for lack of instrumentation.
const DefaultComplianceRate = 95

// Env is everything a calculator may consult besides the table itself.
type Env struct {
	// Actor restricts computation to one technician. Empty or ActorAll
	// means no restriction.
	Actor string
	// Now anchors trailing-window calculations.
	Now time.Time
	// Keywords for the keyword-matching calculators.
	Keywords Keywords
	// ComplianceDefault is the assumed-compliant fallback percentage.
	ComplianceDefault float64

	Logger zerolog.Logger
	Diag   *diag.Collector
}

func (e Env) unparsable() {
	if e.Diag != nil {
		e.Diag.RecordUnparsableValue()
	}
}

// Result is a calculator outcome: either a computed value or a documented
// fallback. Fallback names why the value is not a straight measurement of
// the input (missing column, empty input, heuristic branch).
type Result struct {
	Value    float64
	Fallback string
}

func value(v float64) Result {
	return Result{Value: v}
}

func fallback(v float64, reason string) Result {
	return Result{Value: v, Fallback: reason}
}

// Calculator is one named KPI.
type Calculator struct {
	// Name is the stable identifier used for goal configuration.
	Name string
	// Label is the display label.
	Label string
	// Format is the rendering kind for the value.
	Format Format
	// Proxy marks simulated/heuristic estimators that do not measure the
	// quantity they are named after.
	Proxy bool
	// Compute derives the value. Implementations never panic on missing or
	// malformed data; they degrade per their contract.
	Compute func(t *table.Table, env Env) Result
}

// Registry returns all calculators in display order.
func Registry() []Calculator {
	return []Calculator{
		{Name: "average_ticket_value", Label: "Avg Ticket", Format: FormatCurrency, Compute: averageTicketValue},
		{Name: "job_close_rate", Label: "Job Close Rate", Format: FormatPercentage, Compute: jobCloseRate},
		{Name: "weekly_revenue", Label: "Weekly Revenue", Format: FormatCurrency, Compute: weeklyRevenue},
		{Name: "average_job_efficiency", Label: "Avg Job Eff", Format: FormatPercentage, Compute: averageJobEfficiency},
		{Name: "compliance_rate", Label: "Compliance", Format: FormatPercentage, Compute: complianceRate},
		{Name: "membership_win_rate", Label: "Membership Win Rate", Format: FormatPercentage, Compute: membershipWinRate},
		{Name: "hydro_jetting_sold", Label: "Hydro Jetting Sold", Format: FormatNumber, Compute: hydroJettingSold},
		{Name: "descaling_sold", Label: "Descaling Sold", Format: FormatNumber, Compute: descalingSold},
		{Name: "on_time_arrival_rate", Label: "On-Time Arrival Rate", Format: FormatPercentage, Proxy: true, Compute: onTimeArrivalRate},
		{Name: "five_star_reviews", Label: "5-Star Reviews", Format: FormatNumber, Proxy: true, Compute: fiveStarReviews},
		{Name: "warranty_call_rate", Label: "Warranty Call Rate", Format: FormatPercentage, Compute: warrantyCallRate},
		{Name: "upsell_conversion_rate", Label: "Upsell Conversion Rate", Format: FormatPercentage, Proxy: true, Compute: upsellConversionRate},
		{Name: "total_jobs", Label: "Total Jobs", Format: FormatNumber, Compute: totalJobs},
		{Name: "total_revenue", Label: "Total Revenue", Format: FormatCurrency, Compute: totalRevenue},
	}
}

// filterActor applies the technician filter. An absent technician column
// turns the filter into a no-op rather than an empty result. Matching is
// on trimmed values, so the names the actor list advertises always select
// their records even when the source cell carries stray whitespace.
func filterActor(t *table.Table, actor string) *table.Table {
	if actor == "" || actor == ActorAll {
		return t
	}
	if !t.HasColumn(ColTechnician) {
		return t
	}
	want := strings.TrimSpace(actor)
	return t.Filter(func(rec table.Record) bool {
		v := rec.Get(ColTechnician)
		return v.Present && strings.TrimSpace(v.Raw) == want
	})
}

func completed(rec table.Record) bool {
	v := rec.Get(ColApptStatus)
	return v.Present && v.Raw == StatusCompleted
}

// containsAny reports whether the cell contains any of the keywords,
// case-insensitively.
func containsAny(v table.Value, keywords []string) bool {
	for _, kw := range keywords {
		if table.ContainsFold(v, kw) {
			return true
		}
	}
	return false
}
