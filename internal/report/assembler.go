// Package report orchestrates the pipeline: it builds a session's unified
// table once per load, recomputes every calculator on each technician
// selection, and classifies the results against their goals. Calculator
// failures are isolated here; one bad calculator never blocks its siblings.
package report

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opsdash/servicekpi/internal/diag"
	"github.com/opsdash/servicekpi/internal/format"
	"github.com/opsdash/servicekpi/internal/kpi"
	"github.com/opsdash/servicekpi/internal/merge"
	"github.com/opsdash/servicekpi/internal/table"
)

// Session is one loaded dashboard: the raw sources and the unified table
// built from them. The unified table is immutable after construction; a
// new load builds a new session.
type Session struct {
	ID        string
	CreatedAt time.Time
	Sources   merge.Sources
	Unified   *table.Table
	Info      *merge.Info
}

// Query narrows a report to one technician and/or a creation-date range.
// A zero From/To leaves that bound open; an empty or "All" technician
// applies no actor restriction.
type Query struct {
	Technician string
	From       time.Time
	To         time.Time
}

// Entry is one KPI in a snapshot.
type Entry struct {
	Name      string                `json:"name"`
	Label     string                `json:"label"`
	Value     float64               `json:"value"`
	Goal      float64               `json:"goal"`
	Format    kpi.Format            `json:"format"`
	Proxy     bool                  `json:"proxy,omitempty"`
	Fallback  string                `json:"fallback_reason,omitempty"`
	Rendering format.Classification `json:"rendering"`
}

// Snapshot is the full per-technician KPI report the presentation layer
// renders. It is recomputed on demand and never cached across selections.
type Snapshot struct {
	SessionID   string    `json:"session_id"`
	Technician  string    `json:"technician"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// Summary are the aggregate figures shown alongside the KPI snapshot.
type Summary struct {
	TotalJobs         int     `json:"total_jobs"`
	TotalRevenue      float64 `json:"total_revenue"`
	TotalRevenueText  string  `json:"total_revenue_display"`
	ActiveTechnicians int     `json:"active_technicians"`
}

// Assembler wires the merger, the calculator registry and the threshold
// formatter together.
type Assembler struct {
	merger            *merge.Merger
	calculators       []kpi.Calculator
	goals             map[string]float64
	keywords          kpi.Keywords
	complianceDefault float64
	logger            zerolog.Logger
	diag              *diag.Collector
	now               func() time.Time
}

// NewAssembler creates an assembler with the given goal and keyword
// configuration.
func NewAssembler(goals map[string]float64, keywords kpi.Keywords, complianceDefault float64, logger zerolog.Logger, collector *diag.Collector) *Assembler {
	return &Assembler{
		merger:            merge.NewMerger(logger, collector),
		calculators:       kpi.Registry(),
		goals:             goals,
		keywords:          keywords,
		complianceDefault: complianceDefault,
		logger:            logger.With().Str("component", "report").Logger(),
		diag:              collector,
		now:               time.Now,
	}
}

// NewSession merges the sources into a fresh session. The error is
// merge.ErrMissingBaseData when the appointments table is absent; nothing
// else fails a load.
func (a *Assembler) NewSession(src merge.Sources) (*Session, error) {
	unified, info, err := a.merger.Merge(src)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: a.now(),
		Sources:   src,
		Unified:   unified,
		Info:      info,
	}, nil
}

// View returns the unified table narrowed by the query. The technician
// restriction mirrors the calculators' own filter so the tabular display
// matches the KPI figures.
func (a *Assembler) View(s *Session, q Query) *table.Table {
	t := s.Unified
	if !q.From.IsZero() || !q.To.IsZero() {
		t = t.Filter(func(rec table.Record) bool {
			created, ok := table.ParseTime(rec.Get(kpi.ColCreatedAt))
			if !ok {
				return false
			}
			if !q.From.IsZero() && created.Before(q.From) {
				return false
			}
			if !q.To.IsZero() && created.After(q.To) {
				return false
			}
			return true
		})
	}
	if q.Technician != "" && q.Technician != kpi.ActorAll && t.HasColumn(kpi.ColTechnician) {
		// Trimmed comparison, mirroring the calculators' actor filter and
		// the trimmed names Technicians advertises.
		want := strings.TrimSpace(q.Technician)
		t = t.Filter(func(rec table.Record) bool {
			v := rec.Get(kpi.ColTechnician)
			return v.Present && strings.TrimSpace(v.Raw) == want
		})
	}
	return t
}

// dateView applies only the date bounds; actor filtering happens inside
// each calculator.
func (a *Assembler) dateView(s *Session, q Query) *table.Table {
	return a.View(s, Query{From: q.From, To: q.To})
}

// Snapshot evaluates every calculator against the session and classifies
// each value against its configured goal.
func (a *Assembler) Snapshot(s *Session, q Query) *Snapshot {
	t := a.dateView(s, q)
	env := kpi.Env{
		Actor:             q.Technician,
		Now:               a.now(),
		Keywords:          a.keywords,
		ComplianceDefault: a.complianceDefault,
		Logger:            a.logger,
		Diag:              a.diag,
	}

	snap := &Snapshot{
		SessionID:   s.ID,
		Technician:  q.Technician,
		GeneratedAt: env.Now,
		Entries:     make([]Entry, 0, len(a.calculators)),
	}

	for _, c := range a.calculators {
		res := a.runCalculator(c, t, env)
		if res.Fallback != "" {
			a.diag.RecordCalculatorFallback()
			a.logger.Debug().
				Str("calculator", c.Name).
				Str("reason", res.Fallback).
				Msg("calculator degraded")
		}
		goal := a.goals[c.Name]
		snap.Entries = append(snap.Entries, Entry{
			Name:      c.Name,
			Label:     c.Label,
			Value:     res.Value,
			Goal:      goal,
			Format:    c.Format,
			Proxy:     c.Proxy,
			Fallback:  res.Fallback,
			Rendering: format.Classify(res.Value, goal, c.Format),
		})
	}
	return snap
}

// runCalculator isolates a single calculator. Calculators are written not
// to panic, but a defect in one must still not take down the report.
func (a *Assembler) runCalculator(c kpi.Calculator, t *table.Table, env kpi.Env) (res kpi.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.diag.RecordCalculatorPanic()
			a.logger.Error().
				Str("calculator", c.Name).
				Interface("panic", r).
				Msg("calculator panicked, value degraded to zero")
			res = kpi.Result{Fallback: "internal failure"}
		}
	}()
	return c.Compute(t, env)
}

// Technicians returns the selectable actor list: "All" followed by the
// sorted distinct technician names.
func (a *Assembler) Technicians(s *Session) []string {
	return append([]string{kpi.ActorAll}, s.Unified.DistinctValues(kpi.ColTechnician)...)
}

// Summarize computes the aggregate data summary for the current view.
func (a *Assembler) Summarize(s *Session, q Query) Summary {
	t := a.View(s, q)
	total := 0.0
	for _, rec := range t.Records() {
		if v, ok := table.ParseNumber(rec.Get(kpi.ColRevenue)); ok {
			total += v
		}
	}
	return Summary{
		TotalJobs:         t.Len(),
		TotalRevenue:      total,
		TotalRevenueText:  format.Render(total, kpi.FormatCurrency),
		ActiveTechnicians: len(t.DistinctValues(kpi.ColTechnician)),
	}
}
