package report

import (
	"sort"

	"github.com/opsdash/servicekpi/internal/kpi"
	"github.com/opsdash/servicekpi/internal/table"
)

// SeriesPoint is one labeled value in a chart series.
type SeriesPoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Analytics are the data series behind the dashboard charts. Only the
// numbers live here; rendering belongs to the presentation layer.
type Analytics struct {
	RevenueByTechnician  []SeriesPoint `json:"revenue_by_technician"`
	StatusDistribution   []SeriesPoint `json:"status_distribution"`
	TopServiceCategories []SeriesPoint `json:"top_service_categories"`
	JobsPerDay           []SeriesPoint `json:"jobs_per_day"`
}

const topCategories = 10

// Analyze computes the chart series for the queried view.
func (a *Assembler) Analyze(s *Session, q Query) Analytics {
	t := a.View(s, q)
	return Analytics{
		RevenueByTechnician:  sumBy(t, kpi.ColTechnician, kpi.ColRevenue),
		StatusDistribution:   countBy(t, kpi.ColApptStatus, 0),
		TopServiceCategories: countBy(t, kpi.ColServiceCategory, topCategories),
		JobsPerDay:           jobsPerDay(t),
	}
}

// sumBy groups rows by a label column and sums a numeric column, sorted by
// label. Rows with a blank label or unparsable value are excluded.
func sumBy(t *table.Table, labelCol, valueCol string) []SeriesPoint {
	if !t.HasColumn(labelCol) || !t.HasColumn(valueCol) {
		return nil
	}
	sums := make(map[string]float64)
	for _, rec := range t.Records() {
		label := rec.Get(labelCol)
		if label.IsBlank() {
			continue
		}
		v, ok := table.ParseNumber(rec.Get(valueCol))
		if !ok {
			continue
		}
		sums[label.Raw] += v
	}
	out := make([]SeriesPoint, 0, len(sums))
	for name, v := range sums {
		out = append(out, SeriesPoint{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// countBy groups rows by a label column. limit > 0 keeps only the most
// frequent labels, sorted by count descending; otherwise the series sorts
// by label.
func countBy(t *table.Table, labelCol string, limit int) []SeriesPoint {
	if !t.HasColumn(labelCol) {
		return nil
	}
	counts := make(map[string]float64)
	for _, rec := range t.Records() {
		label := rec.Get(labelCol)
		if label.IsBlank() {
			continue
		}
		counts[label.Raw]++
	}
	out := make([]SeriesPoint, 0, len(counts))
	for name, v := range counts {
		out = append(out, SeriesPoint{Name: name, Value: v})
	}
	if limit > 0 {
		sort.Slice(out, func(i, j int) bool {
			if out[i].Value != out[j].Value {
				return out[i].Value > out[j].Value
			}
			return out[i].Name < out[j].Name
		})
		if len(out) > limit {
			out = out[:limit]
		}
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	return out
}

// jobsPerDay counts records per creation date, ascending. Unparsable dates
// are excluded from the series.
func jobsPerDay(t *table.Table) []SeriesPoint {
	if !t.HasColumn(kpi.ColCreatedAt) {
		return nil
	}
	counts := make(map[string]float64)
	for _, rec := range t.Records() {
		created, ok := table.ParseTime(rec.Get(kpi.ColCreatedAt))
		if !ok {
			continue
		}
		counts[created.Format("2006-01-02")]++
	}
	out := make([]SeriesPoint, 0, len(counts))
	for day, v := range counts {
		out = append(out, SeriesPoint{Name: day, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
