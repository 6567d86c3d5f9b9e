package report

import (
	"fmt"

	"github.com/opsdash/servicekpi/internal/format"
	"github.com/opsdash/servicekpi/internal/kpi"
	"github.com/opsdash/servicekpi/internal/merge"
	"github.com/opsdash/servicekpi/internal/table"
)

// JobDetail is one row of the job-details view: the selected display
// columns with presentation formatting applied.
type JobDetail struct {
	Job           string `json:"job"`
	WonLost       string `json:"won_lost"`
	Customer      string `json:"customer"`
	Phone         string `json:"phone"`
	RevenueCredit string `json:"revenue_credit"`
	Efficiency    string `json:"efficiency"`
	Service       string `json:"service"`
	MembershipWin string `json:"membership_win"`
}

// Details builds the job-details rows for the queried view. limit <= 0
// means no cap.
func (a *Assembler) Details(s *Session, q Query, limit int) []JobDetail {
	t := a.View(s, q)
	out := make([]JobDetail, 0, t.Len())
	for _, rec := range t.Records() {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, JobDetail{
			Job:           rec.Get(merge.ColJob).Raw,
			WonLost:       wonLost(rec),
			Customer:      rec.Get(merge.ColCustomerEmail).Raw,
			Phone:         rec.Get("Phone").Raw,
			RevenueCredit: revenueCredit(rec),
			Efficiency:    efficiencyText(rec),
			Service:       rec.Get(kpi.ColServiceCategory).Raw,
			MembershipWin: membershipWin(rec, a.keywords.Membership),
		})
	}
	return out
}

// wonLost collapses the appointment status to the Won/Lost display value.
func wonLost(rec table.Record) string {
	if v := rec.Get(kpi.ColApptStatus); v.Present && v.Raw == kpi.StatusCompleted {
		return "Won"
	}
	return "Lost"
}

func revenueCredit(rec table.Record) string {
	if v, ok := table.ParseNumber(rec.Get(kpi.ColRevenue)); ok {
		return format.Render(v, kpi.FormatCurrency)
	}
	return "$0.00"
}

func efficiencyText(rec table.Record) string {
	if v, ok := table.ParsePercent(rec.Get(kpi.ColJobEfficiency)); ok {
		return fmt.Sprintf("%.0f%%", v)
	}
	return "0%"
}

// membershipWin checks the aggregated items text first, then the service
// category, for a membership keyword.
func membershipWin(rec table.Record, keywords []string) string {
	for _, kw := range keywords {
		if table.ContainsFold(rec.Get(merge.ColItemsSold), kw) ||
			table.ContainsFold(rec.Get(kpi.ColServiceCategory), kw) {
			return "Yes"
		}
	}
	return "No"
}
