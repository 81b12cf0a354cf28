package ingest

import "github.com/couchcryptid/water-balance-service/internal/domain"

// Audit recomputes the parsed dataset and validates the input as supplied.
// Every derived field the source did not carry is taken from the recomputed
// dataset before validation, since absent columns and readings parse as zero.
func (r Result) Audit() (domain.WaterDataset, domain.Report) {
	repaired := domain.Recompute(r.Dataset)
	return repaired, domain.Validate(r.auditInput(repaired))
}

func (r Result) auditInput(repaired domain.WaterDataset) domain.WaterDataset {
	audit := r.Dataset.Clone()

	cols := r.PeriodLossCols
	for i := range audit.Periods {
		p, want := &audit.Periods[i], repaired.Periods[i]
		if !cols.Stage01Loss {
			p.Stage01Loss = want.Stage01Loss
		}
		if !cols.Stage02Loss {
			p.Stage02Loss = want.Stage02Loss
		}
		if !cols.TotalLoss {
			p.TotalLoss = want.TotalLoss
		}
	}

	// One loss row per bulk row; supplied readings win, the rest are filled.
	loss := make([]domain.ZoneMonth, len(repaired.Zones.Loss))
	for i, want := range repaired.Zones.Loss {
		row := domain.ZoneMonth{Month: want.Month, Readings: make(map[domain.Zone]float64, len(domain.Zones))}
		var supplied domain.ZoneMonth
		if i < len(audit.Zones.Loss) {
			supplied = audit.Zones.Loss[i]
			row.Month = supplied.Month
		}
		for _, z := range domain.Zones {
			if v, ok := supplied.Readings[z]; ok {
				row.Readings[z] = v
			} else {
				row.Readings[z] = want.Value(z)
			}
		}
		loss[i] = row
	}
	audit.Zones.Loss = loss

	return audit
}
