package domain

// Zone identifies a metered subdivision of the distribution network.
type Zone string

const (
	Zone01FM Zone = "Zone01FM"
	Zone03A  Zone = "Zone03A"
	Zone03B  Zone = "Zone03B"
	Zone05   Zone = "Zone05"
	Zone08   Zone = "Zone08"
	ZoneVS   Zone = "ZoneVS"
	ZoneSC   Zone = "ZoneSC"
)

// Zones is the fixed set of zones reconciled by the balance model, in display order.
var Zones = []Zone{Zone01FM, Zone03A, Zone03B, Zone05, Zone08, ZoneVS, ZoneSC}

// ParseZone returns the zone with the given identifier.
func ParseZone(s string) (Zone, bool) {
	for _, z := range Zones {
		if string(z) == s {
			return z, true
		}
	}
	return "", false
}

// Period holds one month of the L1 -> L2 -> L3 flow and its stage losses.
// The loss fields are derived and are only trusted after Recompute.
type Period struct {
	Month       string  `json:"month" yaml:"month"`
	L1          float64 `json:"l1" yaml:"l1"`
	L2          float64 `json:"l2" yaml:"l2"`
	L3          float64 `json:"l3" yaml:"l3"`
	Stage01Loss float64 `json:"stage01_loss" yaml:"stage01_loss"`
	Stage02Loss float64 `json:"stage02_loss" yaml:"stage02_loss"`
	TotalLoss   float64 `json:"total_loss" yaml:"total_loss"`
}

// ZoneMonth is one month of per-zone readings.
type ZoneMonth struct {
	Month    string           `json:"month" yaml:"month"`
	Readings map[Zone]float64 `json:"readings" yaml:"readings"`
}

// Value returns the reading for z, or 0 when the zone has no reading.
func (m ZoneMonth) Value(z Zone) float64 {
	return m.Readings[z]
}

// ZoneSeries holds the bulk, individual, and loss sequences. The three
// sequences are aligned by month index.
type ZoneSeries struct {
	Bulk       []ZoneMonth `json:"bulk" yaml:"bulk"`
	Individual []ZoneMonth `json:"individual" yaml:"individual"`
	Loss       []ZoneMonth `json:"loss" yaml:"loss"`
}

// DirectConnectionPeriod is the volume delivered outside the zone hierarchy
// for one month. The residual "other" use is never stored; see DCBreakdown.
type DirectConnectionPeriod struct {
	Month           string  `json:"month" yaml:"month"`
	DC              float64 `json:"dc" yaml:"dc"`
	Irrigation      float64 `json:"irrigation" yaml:"irrigation"`
	DBuildingCommon float64 `json:"d_building_common" yaml:"d_building_common"`
	MBCommon        float64 `json:"mb_common" yaml:"mb_common"`
}

// MBPayment is the billing-reference volume for one month.
type MBPayment struct {
	Month  string  `json:"month" yaml:"month"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// WaterDataset is the aggregate root consumed by the dashboard. Readers treat
// it as immutable; a new load replaces it wholesale.
type WaterDataset struct {
	Periods           []Period                 `json:"periods" yaml:"periods"`
	Zones             ZoneSeries               `json:"zones" yaml:"zones"`
	DirectConnections []DirectConnectionPeriod `json:"direct_connections" yaml:"direct_connections"`
	MBPayments        []MBPayment              `json:"mb_payments" yaml:"mb_payments"`
}

// Clone returns a deep copy of the dataset.
func (ds WaterDataset) Clone() WaterDataset {
	return WaterDataset{
		Periods: append([]Period(nil), ds.Periods...),
		Zones: ZoneSeries{
			Bulk:       cloneZoneMonths(ds.Zones.Bulk),
			Individual: cloneZoneMonths(ds.Zones.Individual),
			Loss:       cloneZoneMonths(ds.Zones.Loss),
		},
		DirectConnections: append([]DirectConnectionPeriod(nil), ds.DirectConnections...),
		MBPayments:        append([]MBPayment(nil), ds.MBPayments...),
	}
}

func cloneZoneMonths(in []ZoneMonth) []ZoneMonth {
	if in == nil {
		return nil
	}
	out := make([]ZoneMonth, len(in))
	for i, m := range in {
		if m.Readings == nil {
			out[i] = ZoneMonth{Month: m.Month}
			continue
		}
		readings := make(map[Zone]float64, len(m.Readings))
		for z, v := range m.Readings {
			readings[z] = v
		}
		out[i] = ZoneMonth{Month: m.Month, Readings: readings}
	}
	return out
}

// Months returns the month labels of the dataset's periods in order.
func Months(ds WaterDataset) []string {
	months := make([]string, len(ds.Periods))
	for i, p := range ds.Periods {
		months[i] = p.Month
	}
	return months
}

// LatestMonth returns the label of the last period, or "" for an empty dataset.
func LatestMonth(ds WaterDataset) string {
	if len(ds.Periods) == 0 {
		return ""
	}
	return ds.Periods[len(ds.Periods)-1].Month
}
