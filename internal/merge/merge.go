// Package merge reconciles the independently-produced source tables into
// one unified table anchored on the appointments export. All joins are left
// joins, so the unified table always has exactly one row per appointment.
package merge

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opsdash/servicekpi/internal/diag"
	"github.com/opsdash/servicekpi/internal/table"
)

// ErrMissingBaseData is returned when the appointments source is absent.
// It is the only condition the merger surfaces; every other anomaly
// degrades the result instead.
var ErrMissingBaseData = errors.New("missing base appointments data")

// Column names of the source data contract.
const (
	ColJob           = "Job"
	ColJobID         = "Job ID"
	ColCustomerEmail = "Customer Email"
	ColPrice         = "Price"
	ColQuantity      = "Quantity"
	ColLineItem      = "Line Item"

	// Columns produced by the items aggregation.
	ColItemsPrice = "Total_Items_Price"
	ColItemsQty   = "Total_Items_Qty"
	ColItemsSold  = "Items_Sold"
)

// JoinKey is an ordered list of candidate key columns tried when connecting
// two tables. The first candidate present on both sides wins.
type JoinKey struct {
	Candidates []string
}

// Resolve returns the first candidate column declared by both tables.
func (k JoinKey) Resolve(left, right *table.Table) (string, bool) {
	for _, c := range k.Candidates {
		if left.HasColumn(c) && right.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// Join keys per optional source, precise identifier first.
var (
	jobTimesKey      = JoinKey{Candidates: []string{ColJob, ColJobID}}
	opportunitiesKey = JoinKey{Candidates: []string{ColJob, ColJobID}}
	itemsKey         = JoinKey{Candidates: []string{ColCustomerEmail}}
)

// Sources are the raw tables handed over by the loader. Only Appointments
// is mandatory.
type Sources struct {
	Appointments  *table.Table
	JobTimes      *table.Table
	Opportunities *table.Table
	ItemsSold     *table.Table
}

// Info describes what a merge actually did.
type Info struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
	Joined  []string `json:"joined_sources"`
	Skipped []string `json:"skipped_sources"`
}

// Merger joins the source tables into a unified table.
type Merger struct {
	logger zerolog.Logger
	diag   *diag.Collector
}

// NewMerger creates a merger.
func NewMerger(logger zerolog.Logger, collector *diag.Collector) *Merger {
	return &Merger{
		logger: logger.With().Str("component", "merge").Logger(),
		diag:   collector,
	}
}

// Merge left-joins the optional sources onto the appointments table.
// Sources whose join key cannot be resolved are skipped silently; their
// columns stay absent from the result. The returned table has exactly one
// record per appointment record.
func (m *Merger) Merge(src Sources) (*table.Table, *Info, error) {
	if src.Appointments == nil {
		return nil, nil, ErrMissingBaseData
	}

	unified := copyTable(src.Appointments)
	info := &Info{}

	m.joinOptional(&unified, src.JobTimes, "job_times", jobTimesKey, "_time", info)
	m.joinOptional(&unified, src.Opportunities, "opportunities", opportunitiesKey, "_opp", info)

	if src.ItemsSold != nil {
		agg := m.aggregateItems(src.ItemsSold)
		m.joinOptional(&unified, agg, "items_sold", itemsKey, "_items", info)
	}

	info.Rows = unified.Len()
	info.Columns = unified.Columns()
	m.logger.Info().
		Int("rows", info.Rows).
		Int("columns", len(info.Columns)).
		Strs("joined", info.Joined).
		Strs("skipped", info.Skipped).
		Msg("sources merged")
	return unified, info, nil
}

// joinOptional left-joins right onto left in place. A nil right source is
// simply not part of this load; a missing join key skips the source and
// records the skip.
func (m *Merger) joinOptional(left **table.Table, right *table.Table, name string, key JoinKey, suffix string, info *Info) {
	if right == nil {
		return
	}
	keyCol, ok := key.Resolve(*left, right)
	if !ok {
		info.Skipped = append(info.Skipped, name)
		m.diag.RecordJoinSkipped()
		m.logger.Warn().
			Str("source", name).
			Strs("candidates", key.Candidates).
			Msg("no join key matched, source skipped")
		return
	}

	joined, unmatched := leftJoin(*left, right, keyCol, suffix)
	*left = joined
	info.Joined = append(info.Joined, name)
	if unmatched > 0 {
		m.diag.RecordRowsUnmatched(unmatched)
	}
	m.logger.Debug().
		Str("source", name).
		Str("key", keyCol).
		Int("unmatched_rows", unmatched).
		Msg("source joined")
}

// leftJoin merges right into left on keyCol. Right-side columns that
// collide with an existing left column are suffixed, never overwritten.
// Each base row matches at most the first right row sharing its key, so
// base cardinality is preserved.
func leftJoin(left, right *table.Table, keyCol, suffix string) (*table.Table, int) {
	index := make(map[string]table.Record, right.Len())
	for _, rec := range right.Records() {
		k := joinValue(rec.Get(keyCol))
		if k == "" {
			continue
		}
		if _, dup := index[k]; !dup {
			index[k] = rec
		}
	}

	// Decide the output name of every right column up front.
	rightCols := make([][2]string, 0, len(right.Columns()))
	for _, col := range right.Columns() {
		if col == keyCol {
			continue
		}
		out := col
		if left.HasColumn(out) {
			out = col + suffix
		}
		rightCols = append(rightCols, [2]string{col, out})
	}

	columns := left.Columns()
	for _, rc := range rightCols {
		columns = append(columns, rc[1])
	}
	result := table.New(columns)

	unmatched := 0
	for _, lrec := range left.Records() {
		out := make(table.Record, len(columns))
		for col, v := range lrec {
			out[col] = v
		}
		rrec, ok := index[joinValue(lrec.Get(keyCol))]
		if !ok {
			unmatched++
		}
		for _, rc := range rightCols {
			if ok {
				if v, present := rrec[rc[0]]; present {
					out[rc[1]] = v
				}
			}
			// Unmatched rows contribute missing values, not empty strings.
		}
		result.Append(out)
	}
	return result, unmatched
}

// aggregateItems collapses the line-item export to one row per customer:
// summed price and quantity plus the distinct item labels comma-joined.
// This guarantees the subsequent join cannot fan out the base table.
func (m *Merger) aggregateItems(items *table.Table) *table.Table {
	out := table.New([]string{ColCustomerEmail, ColItemsPrice, ColItemsQty, ColItemsSold})
	if !items.HasColumn(ColCustomerEmail) {
		// No identity column: resolution fails later and the source is
		// skipped as a whole.
		return items
	}

	type group struct {
		price float64
		qty   float64
		items []string
		seen  map[string]struct{}
	}
	groups := make(map[string]*group)
	var order []string

	for _, rec := range items.Records() {
		email := joinValue(rec.Get(ColCustomerEmail))
		if email == "" {
			m.diag.RecordItemRowDropped()
			continue
		}
		g, ok := groups[email]
		if !ok {
			g = &group{seen: make(map[string]struct{})}
			groups[email] = g
			order = append(order, email)
		}
		if p, ok := table.ParseNumber(rec.Get(ColPrice)); ok {
			g.price += p
		}
		if q, ok := table.ParseNumber(rec.Get(ColQuantity)); ok {
			g.qty += q
		}
		if item := rec.Get(ColLineItem); !item.IsBlank() {
			label := strings.TrimSpace(item.Raw)
			if _, dup := g.seen[label]; !dup {
				g.seen[label] = struct{}{}
				g.items = append(g.items, label)
			}
		}
	}

	for _, email := range order {
		g := groups[email]
		out.Append(table.Record{
			ColCustomerEmail: table.String(email),
			ColItemsPrice:    table.String(formatFloat(g.price)),
			ColItemsQty:      table.String(formatFloat(g.qty)),
			ColItemsSold:     table.String(strings.Join(g.items, ", ")),
		})
	}
	return out
}

func joinValue(v table.Value) string {
	if v.IsBlank() {
		return ""
	}
	return strings.TrimSpace(v.Raw)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func copyTable(t *table.Table) *table.Table {
	out := table.New(t.Columns())
	for _, rec := range t.Records() {
		out.Append(rec)
	}
	return out
}
