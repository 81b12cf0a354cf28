package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/water-balance-service/internal/domain"
)

// Column names of the tabular layout shared by CSV and XLSX uploads. Zone
// columns are "<Zone>_Bulk", "<Zone>_Individual" and "<Zone>_Loss".
const (
	colMonth           = "Month"
	colL1              = "L1"
	colL2              = "L2"
	colL3              = "L3"
	colStage01Loss     = "Stage01Loss"
	colStage02Loss     = "Stage02Loss"
	colTotalLoss       = "TotalLoss"
	colDC              = "DC"
	colIrrigation      = "Irrigation"
	colDBuildingCommon = "DBuildingCommon"
	colMBCommon        = "MBCommon"
	colMBPayment       = "MBPayment"

	suffixBulk       = "_Bulk"
	suffixIndividual = "_Individual"
	suffixLoss       = "_Loss"
)

var requiredColumns = []string{colMonth, colL1, colL2, colL3}

// Header returns the full column layout in canonical order.
func Header() []string {
	h := []string{
		colMonth, colL1, colL2, colL3,
		colStage01Loss, colStage02Loss, colTotalLoss,
		colDC, colIrrigation, colDBuildingCommon, colMBCommon, colMBPayment,
	}
	for _, z := range domain.Zones {
		h = append(h, string(z)+suffixBulk, string(z)+suffixIndividual, string(z)+suffixLoss)
	}
	return h
}

// tableRow is one data row with cell values keyed by header name.
type tableRow struct {
	line   int
	fields map[string]string
}

func (r tableRow) number(col string) (float64, error) {
	v, err := parseVolume(r.fields[col])
	if err != nil {
		return 0, &MalformedInputError{Line: r.line, Column: col, Err: err}
	}
	return v, nil
}

// parseVolume parses a numeric cell. Blank cells are zero and thousands
// separators are ignored.
func parseVolume(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite volume %q", s)
	}
	return v, nil
}

// fromTable maps header-keyed rows to a dataset. rows[0] is the header and
// firstLine is its 1-based line number in the source.
func fromTable(rows [][]string, firstLine int) (Result, error) {
	if len(rows) < 2 {
		return Result{}, &MalformedInputError{Err: errors.New("no data rows")}
	}

	header := make([]string, len(rows[0]))
	present := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		present[header[i]] = true
	}
	for _, col := range requiredColumns {
		if !present[col] {
			return Result{}, &MalformedInputError{Line: firstLine, Column: col, Err: errors.New("missing required column")}
		}
	}

	res := Result{
		PeriodLossCols: PeriodLossColumns{
			Stage01Loss: present[colStage01Loss],
			Stage02Loss: present[colStage02Loss],
			TotalLoss:   present[colTotalLoss],
		},
	}
	var lossZones []domain.Zone
	for _, z := range domain.Zones {
		if present[string(z)+suffixLoss] {
			lossZones = append(lossZones, z)
		}
	}

	ds := &res.Dataset
	for i, cells := range rows[1:] {
		row := tableRow{line: firstLine + 1 + i, fields: make(map[string]string, len(header))}
		blank := true
		for j, h := range header {
			if j < len(cells) {
				row.fields[h] = strings.TrimSpace(cells[j])
				if row.fields[h] != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		if err := appendRow(ds, row, lossZones); err != nil {
			return Result{}, err
		}
	}

	if len(ds.Periods) == 0 {
		return Result{}, &MalformedInputError{Err: errors.New("no data rows")}
	}
	return res, nil
}

// appendRow maps one data row. Loss readings are recorded only for lossZones,
// the zones whose loss column is present; no loss row is added when it is empty.
func appendRow(ds *domain.WaterDataset, row tableRow, lossZones []domain.Zone) error {
	month := row.fields[colMonth]
	if month == "" {
		return &MalformedInputError{Line: row.line, Column: colMonth, Err: errors.New("empty month")}
	}

	var values [11]float64
	cols := [11]string{
		colL1, colL2, colL3, colStage01Loss, colStage02Loss, colTotalLoss,
		colDC, colIrrigation, colDBuildingCommon, colMBCommon, colMBPayment,
	}
	for i, col := range cols {
		v, err := row.number(col)
		if err != nil {
			return err
		}
		values[i] = v
	}

	ds.Periods = append(ds.Periods, domain.Period{
		Month:       month,
		L1:          values[0],
		L2:          values[1],
		L3:          values[2],
		Stage01Loss: values[3],
		Stage02Loss: values[4],
		TotalLoss:   values[5],
	})
	ds.DirectConnections = append(ds.DirectConnections, domain.DirectConnectionPeriod{
		Month:           month,
		DC:              values[6],
		Irrigation:      values[7],
		DBuildingCommon: values[8],
		MBCommon:        values[9],
	})
	ds.MBPayments = append(ds.MBPayments, domain.MBPayment{Month: month, Volume: values[10]})

	bulk := domain.ZoneMonth{Month: month, Readings: make(map[domain.Zone]float64, len(domain.Zones))}
	individual := domain.ZoneMonth{Month: month, Readings: make(map[domain.Zone]float64, len(domain.Zones))}
	for _, z := range domain.Zones {
		for _, c := range []struct {
			suffix string
			into   domain.ZoneMonth
		}{
			{suffixBulk, bulk},
			{suffixIndividual, individual},
		} {
			v, err := row.number(string(z) + c.suffix)
			if err != nil {
				return err
			}
			c.into.Readings[z] = v
		}
	}
	ds.Zones.Bulk = append(ds.Zones.Bulk, bulk)
	ds.Zones.Individual = append(ds.Zones.Individual, individual)

	if len(lossZones) == 0 {
		return nil
	}
	loss := domain.ZoneMonth{Month: month, Readings: make(map[domain.Zone]float64, len(lossZones))}
	for _, z := range lossZones {
		v, err := row.number(string(z) + suffixLoss)
		if err != nil {
			return err
		}
		loss.Readings[z] = v
	}
	ds.Zones.Loss = append(ds.Zones.Loss, loss)
	return nil
}
