package domain

import (
	"errors"
	"fmt"
)

// ErrMonthNotFound is returned by the view helpers when the requested month
// has no period in the dataset.
var ErrMonthNotFound = errors.New("month not found")

// Share is a named volume and its percentage of some whole.
type Share struct {
	Name    string  `json:"name"`
	Volume  float64 `json:"volume"`
	Percent float64 `json:"percent"`
}

// ZoneStats is one zone's reconciliation for a single month.
type ZoneStats struct {
	Zone       Zone    `json:"zone"`
	Bulk       float64 `json:"bulk"`
	Individual float64 `json:"individual"`
	Loss       float64 `json:"loss"`
	Efficiency float64 `json:"efficiency"`
}

// EfficiencyPoint is one month of stage and overall efficiencies, in percent.
type EfficiencyPoint struct {
	Month          string  `json:"month"`
	Stage01        float64 `json:"stage01"`
	Stage02        float64 `json:"stage02"`
	Overall        float64 `json:"overall"`
	LossPercentage float64 `json:"loss_percentage"`
}

// KPIs are the headline figures for one month and their change against the
// previous period, in percent.
type KPIs struct {
	Month           string  `json:"month"`
	PreviousMonth   string  `json:"previous_month,omitempty"`
	L1              float64 `json:"l1"`
	L3              float64 `json:"l3"`
	TotalLoss       float64 `json:"total_loss"`
	LossPercentage  float64 `json:"loss_percentage"`
	L1Change        float64 `json:"l1_change"`
	L3Change        float64 `json:"l3_change"`
	TotalLossChange float64 `json:"total_loss_change"`
}

// percent returns num/den*100, or 0 when den <= 0.
func percent(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den * 100
}

func periodIndex(ds WaterDataset, month string) (int, error) {
	for i, p := range ds.Periods {
		if p.Month == month {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrMonthNotFound, month)
}

func zoneMonthIndex(seq []ZoneMonth, month string) int {
	for i, m := range seq {
		if m.Month == month {
			return i
		}
	}
	return -1
}

// FlowDistribution breaks one month's flow into L1, L2, L3 and total loss,
// each with its share of L1.
func FlowDistribution(ds WaterDataset, month string) ([]Share, error) {
	i, err := periodIndex(ds, month)
	if err != nil {
		return nil, err
	}
	p := ds.Periods[i]
	return []Share{
		{Name: "L1", Volume: p.L1, Percent: percent(p.L1, p.L1)},
		{Name: "L2", Volume: p.L2, Percent: percent(p.L2, p.L1)},
		{Name: "L3", Volume: p.L3, Percent: percent(p.L3, p.L1)},
		{Name: "TotalLoss", Volume: p.TotalLoss, Percent: percent(p.TotalLoss, p.L1)},
	}, nil
}

// ZonePerformance returns bulk, individual, loss and efficiency for every zone
// in the given month. Zones without a bulk row for the month read as zero.
func ZonePerformance(ds WaterDataset, month string) ([]ZoneStats, error) {
	if _, err := periodIndex(ds, month); err != nil {
		return nil, err
	}
	i := zoneMonthIndex(ds.Zones.Bulk, month)
	bulk := zoneMonthAt(ds.Zones.Bulk, i)
	individual := zoneMonthAt(ds.Zones.Individual, i)
	loss := zoneMonthAt(ds.Zones.Loss, i)

	stats := make([]ZoneStats, 0, len(Zones))
	for _, z := range Zones {
		b, ind := bulk.Value(z), individual.Value(z)
		stats = append(stats, ZoneStats{
			Zone:       z,
			Bulk:       b,
			Individual: ind,
			Loss:       loss.Value(z),
			Efficiency: percent(ind, b),
		})
	}
	return stats, nil
}

// LossDistribution returns each zone's share of the month's total positive
// zone loss. Zones with zero or negative loss are left out.
func LossDistribution(ds WaterDataset, month string) ([]Share, error) {
	if _, err := periodIndex(ds, month); err != nil {
		return nil, err
	}
	loss := zoneMonthAt(ds.Zones.Loss, zoneMonthIndex(ds.Zones.Loss, month))

	var total float64
	for _, z := range Zones {
		if v := loss.Value(z); v > 0 {
			total += v
		}
	}

	shares := make([]Share, 0, len(Zones))
	for _, z := range Zones {
		v := loss.Value(z)
		if v <= 0 {
			continue
		}
		shares = append(shares, Share{Name: string(z), Volume: v, Percent: percent(v, total)})
	}
	return shares, nil
}

// DCBreakdown returns the month's direct-connection sub-uses and the residual
// "Other" as shares of total DC.
func DCBreakdown(ds WaterDataset, month string) ([]Share, error) {
	if _, err := periodIndex(ds, month); err != nil {
		return nil, err
	}
	var dc DirectConnectionPeriod
	for _, d := range ds.DirectConnections {
		if d.Month == month {
			dc = d
			break
		}
	}

	other := dc.DC - dc.Irrigation - dc.DBuildingCommon - dc.MBCommon
	return []Share{
		{Name: "Irrigation", Volume: dc.Irrigation, Percent: percent(dc.Irrigation, dc.DC)},
		{Name: "DBuildingCommon", Volume: dc.DBuildingCommon, Percent: percent(dc.DBuildingCommon, dc.DC)},
		{Name: "MBCommon", Volume: dc.MBCommon, Percent: percent(dc.MBCommon, dc.DC)},
		{Name: "Other", Volume: other, Percent: percent(other, dc.DC)},
	}, nil
}

// EfficiencyTrend returns the stage efficiencies of every period in order.
func EfficiencyTrend(ds WaterDataset) []EfficiencyPoint {
	points := make([]EfficiencyPoint, len(ds.Periods))
	for i, p := range ds.Periods {
		points[i] = EfficiencyPoint{
			Month:          p.Month,
			Stage01:        percent(p.L2, p.L1),
			Stage02:        percent(p.L3, p.L2),
			Overall:        percent(p.L3, p.L1),
			LossPercentage: percent(p.TotalLoss, p.L1),
		}
	}
	return points
}

// MonthlyKPIs returns the headline figures for month with month-over-month
// changes against the preceding period. Changes are 0 for the first period.
func MonthlyKPIs(ds WaterDataset, month string) (KPIs, error) {
	i, err := periodIndex(ds, month)
	if err != nil {
		return KPIs{}, err
	}
	p := ds.Periods[i]
	k := KPIs{
		Month:          p.Month,
		L1:             p.L1,
		L3:             p.L3,
		TotalLoss:      p.TotalLoss,
		LossPercentage: percent(p.TotalLoss, p.L1),
	}
	if i == 0 {
		return k, nil
	}

	prev := ds.Periods[i-1]
	k.PreviousMonth = prev.Month
	k.L1Change = percentChange(p.L1, prev.L1)
	k.L3Change = percentChange(p.L3, prev.L3)
	k.TotalLossChange = percentChange(p.TotalLoss, prev.TotalLoss)
	return k, nil
}

func percentChange(current, previous float64) float64 {
	return percent(current-previous, previous)
}
