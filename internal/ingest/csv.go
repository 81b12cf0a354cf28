package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/water-balance-service/internal/domain"
)

// ParseCSV reads a comma-separated upload with one row per month.
func ParseCSV(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return Result{}, &MalformedInputError{Err: fmt.Errorf("read csv: %w", err)}
	}

	res, err := fromTable(rows, 1)
	if err != nil {
		return Result{}, err
	}
	res.Format = FormatCSV
	return res, nil
}

// WriteCSV encodes ds in the upload layout, one row per period. Zone, direct
// connection and payment rows are matched to periods by month; missing rows
// are written as zero.
func WriteCSV(w io.Writer, ds domain.WaterDataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	dcs := make(map[string]domain.DirectConnectionPeriod, len(ds.DirectConnections))
	for _, dc := range ds.DirectConnections {
		dcs[dc.Month] = dc
	}
	payments := make(map[string]float64, len(ds.MBPayments))
	for _, mb := range ds.MBPayments {
		payments[mb.Month] = mb.Volume
	}
	bulk := byMonth(ds.Zones.Bulk)
	individual := byMonth(ds.Zones.Individual)
	loss := byMonth(ds.Zones.Loss)

	for _, p := range ds.Periods {
		dc := dcs[p.Month]
		record := []string{
			p.Month,
			formatVolume(p.L1), formatVolume(p.L2), formatVolume(p.L3),
			formatVolume(p.Stage01Loss), formatVolume(p.Stage02Loss), formatVolume(p.TotalLoss),
			formatVolume(dc.DC), formatVolume(dc.Irrigation), formatVolume(dc.DBuildingCommon), formatVolume(dc.MBCommon),
			formatVolume(payments[p.Month]),
		}
		for _, z := range domain.Zones {
			record = append(record,
				formatVolume(bulk[p.Month].Value(z)),
				formatVolume(individual[p.Month].Value(z)),
				formatVolume(loss[p.Month].Value(z)),
			)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.Month, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func byMonth(seq []domain.ZoneMonth) map[string]domain.ZoneMonth {
	m := make(map[string]domain.ZoneMonth, len(seq))
	for _, zm := range seq {
		m[zm.Month] = zm
	}
	return m
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
