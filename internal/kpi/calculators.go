package kpi

import (
	"math"
	"time"

	"github.com/opsdash/servicekpi/internal/table"
)

// averageTicketValue is the mean revenue across completed appointments.
func averageTicketValue(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if !df.HasColumn(ColRevenue) {
		return fallback(0, "no revenue column")
	}
	sum, n := 0.0, 0
	for _, rec := range df.Records() {
		if !completed(rec) {
			continue
		}
		v, ok := table.ParseNumber(rec.Get(ColRevenue))
		if !ok {
			if !rec.Get(ColRevenue).IsBlank() {
				env.unparsable()
			}
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return fallback(0, "no completed records with revenue")
	}
	return value(sum / float64(n))
}

// jobCloseRate is the completed share of all appointments, in percent.
func jobCloseRate(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	won := 0
	for _, rec := range df.Records() {
		if completed(rec) {
			won++
		}
	}
	return value(float64(won) / float64(df.Len()) * 100)
}

// weeklyRevenue sums revenue created within the trailing seven days of the
// evaluation time. Records whose creation date does not parse are excluded.
func weeklyRevenue(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if !df.HasColumn(ColRevenue) || !df.HasColumn(ColCreatedAt) {
		return fallback(0, "no revenue or creation-date column")
	}
	cutoff := env.Now.Add(-7 * 24 * time.Hour)
	sum := 0.0
	for _, rec := range df.Records() {
		created, ok := table.ParseTime(rec.Get(ColCreatedAt))
		if !ok {
			if !rec.Get(ColCreatedAt).IsBlank() {
				env.unparsable()
			}
			continue
		}
		if created.Before(cutoff) {
			continue
		}
		if v, ok := table.ParseNumber(rec.Get(ColRevenue)); ok {
			sum += v
		}
	}
	return value(sum)
}

// averageJobEfficiency averages the efficiency metric, accepting plain
// numbers and percent-suffixed strings and skipping anything else.
func averageJobEfficiency(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if !df.HasColumn(ColJobEfficiency) {
		return fallback(0, "no efficiency column")
	}
	sum, n := 0.0, 0
	for _, rec := range df.Records() {
		v := rec.Get(ColJobEfficiency)
		f, ok := table.ParsePercent(v)
		if !ok {
			if !v.IsBlank() {
				env.unparsable()
			}
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return fallback(0, "no parsable efficiency values")
	}
	return value(sum / float64(n))
}

// complianceRate is the share of completed appointments whose normalized
// efficiency is at least 80, in percent of completed. A table with no
// efficiency column at all reports the assumed-compliant default instead
// of a ratio.
func complianceRate(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if !df.HasColumn(ColJobEfficiency) {
		def := env.ComplianceDefault
		if def == 0 {
			def = DefaultComplianceRate
		}
		return fallback(def, "no efficiency column, assumed compliant")
	}
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	done, compliant := 0, 0
	for _, rec := range df.Records() {
		if !completed(rec) {
			continue
		}
		done++
		if f, ok := table.ParsePercent(rec.Get(ColJobEfficiency)); ok && f >= 80 {
			compliant++
		}
	}
	if done == 0 {
		return fallback(0, "no completed records")
	}
	return value(float64(compliant) / float64(done) * 100)
}

// membershipWinRate is the share of records whose aggregated items text,
// or failing that the service category, mentions a membership keyword.
func membershipWinRate(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	col := ColItemsSold
	if !df.HasColumn(col) {
		col = ColServiceCategory
	}
	if !df.HasColumn(col) {
		return fallback(0, "no items or category column")
	}
	wins := 0
	for _, rec := range df.Records() {
		if containsAny(rec.Get(col), env.Keywords.Membership) {
			wins++
		}
	}
	return value(float64(wins) / float64(df.Len()) * 100)
}

// keywordSoldCount counts keyword hits in the service category and in the
// aggregated items text. Both columns are checked independently, so one
// record can contribute twice.
func keywordSoldCount(t *table.Table, env Env, keywords []string) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	count := 0
	for _, rec := range df.Records() {
		if df.HasColumn(ColServiceCategory) && containsAny(rec.Get(ColServiceCategory), keywords) {
			count++
		}
		if df.HasColumn(ColItemsSold) && containsAny(rec.Get(ColItemsSold), keywords) {
			count++
		}
	}
	return value(float64(count))
}

func hydroJettingSold(t *table.Table, env Env) Result {
	return keywordSoldCount(t, env, env.Keywords.HydroJetting)
}

func descalingSold(t *table.Table, env Env) Result {
	return keywordSoldCount(t, env, env.Keywords.Descaling)
}

// onTimeArrivalRate proxies punctuality with the efficiency metric when one
// exists (>=80 counts as on time, over parsable values only); otherwise it
// falls back to the completed/total ratio.
func onTimeArrivalRate(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if df.HasColumn(ColJobEfficiency) {
		onTime, total := 0, 0
		for _, rec := range df.Records() {
			f, ok := table.ParsePercent(rec.Get(ColJobEfficiency))
			if !ok {
				continue
			}
			total++
			if f >= 80 {
				onTime++
			}
		}
		if total == 0 {
			return fallback(0, "no parsable efficiency values")
		}
		return value(float64(onTime) / float64(total) * 100)
	}
	won := 0
	for _, rec := range df.Records() {
		if completed(rec) {
			won++
		}
	}
	return fallback(float64(won)/float64(df.Len())*100, "no efficiency column, used completion ratio")
}

// fiveStarReviews estimates review volume: completed records with
// efficiency >=90 when the metric exists, else 70% of completed rounded
// down. Both branches are simulations, not measured review data.
func fiveStarReviews(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if df.HasColumn(ColJobEfficiency) {
		count := 0
		for _, rec := range df.Records() {
			if !completed(rec) {
				continue
			}
			if f, ok := table.ParsePercent(rec.Get(ColJobEfficiency)); ok && f >= 90 {
				count++
			}
		}
		return value(float64(count))
	}
	won := 0
	for _, rec := range df.Records() {
		if completed(rec) {
			won++
		}
	}
	return fallback(math.Floor(float64(won)*0.7), "no efficiency column, estimated from completions")
}

// warrantyCallRate is the share of records whose service category mentions
// a warranty keyword, in percent of all records.
func warrantyCallRate(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if !df.HasColumn(ColServiceCategory) {
		return fallback(0, "no category column")
	}
	calls := 0
	for _, rec := range df.Records() {
		if containsAny(rec.Get(ColServiceCategory), env.Keywords.Warranty) {
			calls++
		}
	}
	return value(float64(calls) / float64(df.Len()) * 100)
}

// upsellConversionRate is the share of records with more than one item
// sold. Without an aggregated quantity column it proxies upsells with
// records whose revenue exceeds 1.5x the mean.
func upsellConversionRate(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if df.HasColumn(ColItemsQty) {
		upsells := 0
		for _, rec := range df.Records() {
			if q, ok := table.ParseNumber(rec.Get(ColItemsQty)); ok && q > 1 {
				upsells++
			}
		}
		return value(float64(upsells) / float64(df.Len()) * 100)
	}
	if !df.HasColumn(ColRevenue) {
		return fallback(0, "no quantity or revenue column")
	}
	sum, n := 0.0, 0
	for _, rec := range df.Records() {
		if v, ok := table.ParseNumber(rec.Get(ColRevenue)); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return fallback(0, "no parsable revenue values")
	}
	mean := sum / float64(n)
	upsells := 0
	for _, rec := range df.Records() {
		if v, ok := table.ParseNumber(rec.Get(ColRevenue)); ok && v > mean*1.5 {
			upsells++
		}
	}
	return fallback(float64(upsells)/float64(df.Len())*100, "no quantity column, used revenue heuristic")
}

// totalJobs is the record count under the current filter.
func totalJobs(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	return value(float64(df.Len()))
}

// totalRevenue sums the revenue column under the current filter.
func totalRevenue(t *table.Table, env Env) Result {
	df := filterActor(t, env.Actor)
	if df.Len() == 0 {
		return fallback(0, "no records")
	}
	if !df.HasColumn(ColRevenue) {
		return fallback(0, "no revenue column")
	}
	sum := 0.0
	for _, rec := range df.Records() {
		if v, ok := table.ParseNumber(rec.Get(ColRevenue)); ok {
			sum += v
		}
	}
	return value(sum)
}
