package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdash/servicekpi/internal/diag"
	"github.com/opsdash/servicekpi/internal/kpi"
	"github.com/opsdash/servicekpi/internal/loader"
	"github.com/opsdash/servicekpi/internal/merge"
	"github.com/opsdash/servicekpi/internal/table"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestAssembler() *Assembler {
	goals := map[string]float64{
		"average_ticket_value": 2500,
		"job_close_rate":       80,
		"total_jobs":           100,
	}
	a := NewAssembler(goals, kpi.DefaultKeywords(), 95, zerolog.New(&bytes.Buffer{}), diag.NewCollector())
	a.now = func() time.Time { return fixedNow }
	return a
}

func appointmentsFixture() *table.Table {
	t := table.New([]string{"Job", "Technician", "Appt Status", "Customer Email", "Phone", "Created At", "Revenue", "Service Category", "Job Efficiency"})
	rows := [][]string{
		{"J1", "Alice", "Completed", "a@x.com", "555-0001", "2025-06-14", "300", "Hydro Jetting", "92"},
		{"J2", "Alice", "Cancelled", "b@x.com", "555-0002", "2025-06-10", "0", "Drain Cleaning", ""},
		{"J3", "Bob", "Completed", "c@x.com", "555-0003", "2025-06-13", "500", "Membership Plan", "85%"},
		{"J4", "Bob", "Completed", "d@x.com", "", "not-a-date", "200", "Install", "junk"},
	}
	for _, r := range rows {
		t.AppendRow(r)
	}
	return t
}

func newTestSession(t *testing.T, a *Assembler) *Session {
	t.Helper()
	s, err := a.NewSession(merge.Sources{Appointments: appointmentsFixture()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestNewSessionRequiresAppointments(t *testing.T) {
	a := newTestAssembler()
	_, err := a.NewSession(merge.Sources{})
	if !errors.Is(err, merge.ErrMissingBaseData) {
		t.Fatalf("expected ErrMissingBaseData, got %v", err)
	}
}

func TestSnapshotCoversEveryCalculator(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	snap := a.Snapshot(s, Query{Technician: "All"})
	if snap.SessionID != s.ID {
		t.Errorf("session id: got %q, want %q", snap.SessionID, s.ID)
	}
	if len(snap.Entries) != len(kpi.Registry()) {
		t.Fatalf("expected %d entries, got %d", len(kpi.Registry()), len(snap.Entries))
	}
	byName := make(map[string]Entry, len(snap.Entries))
	for _, e := range snap.Entries {
		byName[e.Name] = e
		if e.Rendering.Display == "" {
			t.Errorf("%s: entry has no rendering", e.Name)
		}
	}

	// 3 completed of 4 appointments.
	if e := byName["job_close_rate"]; e.Value != 75 {
		t.Errorf("job_close_rate: got %v, want 75", e.Value)
	}
	if e := byName["total_jobs"]; e.Value != 4 || e.Goal != 100 {
		t.Errorf("total_jobs: got value %v goal %v", e.Value, e.Goal)
	}
	// Unconfigured goal classifies against zero.
	if e := byName["warranty_call_rate"]; e.Goal != 0 || e.Rendering.Progress != 0 {
		t.Errorf("warranty_call_rate: expected zero goal and progress, got %v %v", e.Goal, e.Rendering.Progress)
	}
}

func TestSnapshotTechnicianFilter(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	snap := a.Snapshot(s, Query{Technician: "Alice"})
	var totalJobs float64
	for _, e := range snap.Entries {
		if e.Name == "total_jobs" {
			totalJobs = e.Value
		}
	}
	if totalJobs != 2 {
		t.Errorf("expected 2 jobs for Alice, got %v", totalJobs)
	}
}

func TestSnapshotIsolatesPanic(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	a.calculators = append([]kpi.Calculator{{
		Name:   "broken",
		Label:  "Broken",
		Format: kpi.FormatNumber,
		Compute: func(*table.Table, kpi.Env) kpi.Result {
			panic("boom")
		},
	}}, a.calculators...)

	snap := a.Snapshot(s, Query{})
	if len(snap.Entries) != len(a.calculators) {
		t.Fatalf("expected %d entries, got %d", len(a.calculators), len(snap.Entries))
	}
	broken := snap.Entries[0]
	if broken.Value != 0 || broken.Fallback == "" {
		t.Errorf("expected degraded zero entry, got %+v", broken)
	}
	// Siblings still computed.
	if snap.Entries[1].Name != "average_ticket_value" {
		t.Errorf("unexpected second entry %s", snap.Entries[1].Name)
	}
}

func TestViewDateRange(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	from := time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)
	v := a.View(s, Query{From: from})
	// J1 and J3 are in range; J4 has an unparsable date and is excluded
	// once bounds are set.
	if v.Len() != 2 {
		t.Errorf("expected 2 rows in range, got %d", v.Len())
	}

	// No bounds: everything stays, including the unparsable date.
	if v := a.View(s, Query{}); v.Len() != 4 {
		t.Errorf("expected all 4 rows without bounds, got %d", v.Len())
	}
}

func TestViewTechnician(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	if v := a.View(s, Query{Technician: "Bob"}); v.Len() != 2 {
		t.Errorf("expected 2 rows for Bob, got %d", v.Len())
	}
	if v := a.View(s, Query{Technician: "All"}); v.Len() != 4 {
		t.Errorf(`expected 4 rows for "All", got %d`, v.Len())
	}
}

func TestTechnicians(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	got := a.Technicians(s)
	want := []string{"All", "Alice", "Bob"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("technicians[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTechnicianSelectionRoundTrip(t *testing.T) {
	a := newTestAssembler()
	base := table.New([]string{"Job", "Technician", "Appt Status"})
	base.AppendRow([]string{"J1", "Alice ", "Completed"})
	base.AppendRow([]string{"J2", "Bob", "Completed"})
	s, err := a.NewSession(merge.Sources{Appointments: base})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// Every advertised name must select its records, including names whose
	// source cells carry stray whitespace.
	for _, name := range a.Technicians(s)[1:] {
		if v := a.View(s, Query{Technician: name}); v.Len() != 1 {
			t.Errorf("View(%q): got %d rows, want 1", name, v.Len())
		}
		snap := a.Snapshot(s, Query{Technician: name})
		for _, e := range snap.Entries {
			if e.Name == "total_jobs" && e.Value != 1 {
				t.Errorf("total_jobs for %q: got %v, want 1", name, e.Value)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	sum := a.Summarize(s, Query{})
	if sum.TotalJobs != 4 {
		t.Errorf("total jobs: got %d, want 4", sum.TotalJobs)
	}
	if sum.TotalRevenue != 1000 {
		t.Errorf("total revenue: got %v, want 1000", sum.TotalRevenue)
	}
	if sum.TotalRevenueText != "$1,000.00" {
		t.Errorf("revenue text: got %q", sum.TotalRevenueText)
	}
	if sum.ActiveTechnicians != 2 {
		t.Errorf("active technicians: got %d, want 2", sum.ActiveTechnicians)
	}
}

func TestDetails(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	details := a.Details(s, Query{}, 0)
	if len(details) != 4 {
		t.Fatalf("expected 4 detail rows, got %d", len(details))
	}
	first := details[0]
	if first.Job != "J1" || first.WonLost != "Won" {
		t.Errorf("unexpected first row %+v", first)
	}
	if first.RevenueCredit != "$300.00" {
		t.Errorf("revenue credit: got %q", first.RevenueCredit)
	}
	if first.Efficiency != "92%" {
		t.Errorf("efficiency: got %q", first.Efficiency)
	}
	if first.MembershipWin != "No" {
		t.Errorf("membership win: got %q", first.MembershipWin)
	}

	second := details[1]
	if second.WonLost != "Lost" || second.Efficiency != "0%" {
		t.Errorf("unexpected second row %+v", second)
	}

	third := details[2]
	if third.MembershipWin != "Yes" {
		t.Errorf("expected membership win for J3, got %q", third.MembershipWin)
	}

	if capped := a.Details(s, Query{}, 2); len(capped) != 2 {
		t.Errorf("expected limit of 2, got %d", len(capped))
	}
}

func TestAnalytics(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	an := a.Analyze(s, Query{})

	if len(an.RevenueByTechnician) != 2 {
		t.Fatalf("revenue series: got %v", an.RevenueByTechnician)
	}
	if an.RevenueByTechnician[0].Name != "Alice" || an.RevenueByTechnician[0].Value != 300 {
		t.Errorf("Alice revenue: got %+v", an.RevenueByTechnician[0])
	}
	if an.RevenueByTechnician[1].Name != "Bob" || an.RevenueByTechnician[1].Value != 700 {
		t.Errorf("Bob revenue: got %+v", an.RevenueByTechnician[1])
	}

	status := map[string]float64{}
	for _, p := range an.StatusDistribution {
		status[p.Name] = p.Value
	}
	if status["Completed"] != 3 || status["Cancelled"] != 1 {
		t.Errorf("status distribution: got %v", status)
	}

	// J4's date does not parse, so three days appear.
	if len(an.JobsPerDay) != 3 {
		t.Errorf("jobs per day: got %v", an.JobsPerDay)
	}
	for i := 1; i < len(an.JobsPerDay); i++ {
		if an.JobsPerDay[i-1].Name > an.JobsPerDay[i].Name {
			t.Errorf("jobs per day not ascending: %v", an.JobsPerDay)
		}
	}
}

func TestWriteTableRoundTrip(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	var buf bytes.Buffer
	if err := a.WriteTable(&buf, s, Query{}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	res, err := loader.Read(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if res.Table.Len() != s.Unified.Len() {
		t.Errorf("round trip rows: got %d, want %d", res.Table.Len(), s.Unified.Len())
	}
	if len(res.Table.Columns()) != len(s.Unified.Columns()) {
		t.Errorf("round trip columns: got %d, want %d", len(res.Table.Columns()), len(s.Unified.Columns()))
	}
}

func TestWriteReportSections(t *testing.T) {
	a := newTestAssembler()
	s := newTestSession(t, a)

	var buf bytes.Buffer
	if err := a.WriteReport(&buf, s, Query{}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("Metric,Value,Goal,Tier")) {
		t.Errorf("missing summary header in %q", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Avg Ticket")) {
		t.Errorf("missing KPI row in %q", out)
	}
}
