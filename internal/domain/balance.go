package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Tolerance is the largest difference between a stored derived value and its
// recomputed value that is not reported as a mismatch.
const Tolerance = 0.1

// Report is the outcome of Validate.
type Report struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Recompute returns a copy of ds with every derived field overwritten from
// the primary fields. Stored losses are never trusted. The zone loss sequence
// is rebuilt to the length and month labels of the bulk sequence.
func Recompute(ds WaterDataset) WaterDataset {
	out := ds.Clone()

	for i := range out.Periods {
		p := &out.Periods[i]
		p.Stage01Loss = p.L1 - p.L2
		p.Stage02Loss = p.L2 - p.L3
		p.TotalLoss = p.Stage01Loss + p.Stage02Loss
	}

	loss := make([]ZoneMonth, len(out.Zones.Bulk))
	for i, bulk := range out.Zones.Bulk {
		individual := zoneMonthAt(out.Zones.Individual, i)
		readings := make(map[Zone]float64, len(Zones))
		for _, z := range Zones {
			readings[z] = bulk.Value(z) - individual.Value(z)
		}
		loss[i] = ZoneMonth{Month: bulk.Month, Readings: readings}
	}
	out.Zones.Loss = loss

	return out
}

// Validate audits the derived fields of ds against values recomputed from the
// primary fields. It reports one message per mismatched field and never
// modifies ds. An empty dataset is valid.
func Validate(ds WaterDataset) Report {
	var errs []string
	errorf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	for _, p := range ds.Periods {
		stage01 := p.L1 - p.L2
		stage02 := p.L2 - p.L3
		total := stage01 + stage02

		if mismatch(p.Stage01Loss, stage01) {
			errorf("%s: Stage01Loss mismatch: stored %s, expected %s", p.Month, formatVolume(p.Stage01Loss), formatVolume(stage01))
		}
		if mismatch(p.Stage02Loss, stage02) {
			errorf("%s: Stage02Loss mismatch: stored %s, expected %s", p.Month, formatVolume(p.Stage02Loss), formatVolume(stage02))
		}
		if mismatch(p.TotalLoss, total) {
			errorf("%s: TotalLoss mismatch: stored %s, expected %s", p.Month, formatVolume(p.TotalLoss), formatVolume(total))
		}
	}

	for i, bulk := range ds.Zones.Bulk {
		individual := zoneMonthAt(ds.Zones.Individual, i)
		stored := zoneMonthAt(ds.Zones.Loss, i)
		if i < len(ds.Zones.Loss) && stored.Month != bulk.Month {
			errorf("%s: zone loss row %d is labelled %q", bulk.Month, i, stored.Month)
		}
		for _, z := range Zones {
			expected := bulk.Value(z) - individual.Value(z)
			if mismatch(stored.Value(z), expected) {
				errorf("%s %s: loss mismatch: stored %s, expected %s", bulk.Month, z, formatVolume(stored.Value(z)), formatVolume(expected))
			}
		}
	}

	return Report{Valid: len(errs) == 0, Errors: errs}
}

func mismatch(stored, expected float64) bool {
	return math.Abs(expected-stored) > Tolerance
}

func zoneMonthAt(seq []ZoneMonth, i int) ZoneMonth {
	if i < 0 || i >= len(seq) {
		return ZoneMonth{}
	}
	return seq[i]
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
