package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/couchcryptid/water-balance-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	testMonthJan = "Jan-24"
	testMonthFeb = "Feb-24"
)

const uploadCSV = `Month,L1,L2,L3,Stage01Loss,Stage02Loss,TotalLoss,DC,Irrigation,DBuildingCommon,MBCommon,MBPayment,Zone03A_Bulk,Zone03A_Individual,Zone03A_Loss
Jan-24,32803,28689,25680,5000,3009,7123,16000,4000,1000,3000,4114,3591,1129,2462
Feb-24,"27,996",25073.5,24196.2,,,,,,,,,1099,900,199
`

func TestParseCSV(t *testing.T) {
	res, err := ParseCSV(strings.NewReader(uploadCSV))
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, res.Format)
	assert.Equal(t, PeriodLossColumns{Stage01Loss: true, Stage02Loss: true, TotalLoss: true}, res.PeriodLossCols)
	assert.True(t, res.ZoneLossSupplied())

	ds := res.Dataset
	require.Len(t, ds.Periods, 2)
	assert.Equal(t, domain.Period{
		Month: testMonthJan, L1: 32803, L2: 28689, L3: 25680,
		Stage01Loss: 5000, Stage02Loss: 3009, TotalLoss: 7123,
	}, ds.Periods[0])
	assert.Equal(t, 27996.0, ds.Periods[1].L1)
	assert.Zero(t, ds.Periods[1].TotalLoss)

	require.Len(t, ds.Zones.Bulk, 2)
	require.Len(t, ds.Zones.Individual, 2)
	require.Len(t, ds.Zones.Loss, 2)
	assert.Equal(t, testMonthFeb, ds.Zones.Loss[1].Month)
	assert.Equal(t, 3591.0, ds.Zones.Bulk[0].Value(domain.Zone03A))
	assert.Equal(t, 1129.0, ds.Zones.Individual[0].Value(domain.Zone03A))
	assert.Zero(t, ds.Zones.Bulk[0].Value(domain.Zone05))

	require.Len(t, ds.DirectConnections, 2)
	assert.Equal(t, 16000.0, ds.DirectConnections[0].DC)
	assert.Equal(t, 4114.0, ds.MBPayments[0].Volume)
}

func TestParseCSV_PrimaryOnly(t *testing.T) {
	input := "Month,L1,L2,L3,Zone05_Bulk,Zone05_Individual\nJan-24,10,8,6,4,3\n"

	res, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.False(t, res.PeriodLossCols.Any())
	assert.False(t, res.ZoneLossSupplied())
	assert.Empty(t, res.Dataset.Zones.Loss)
	assert.Len(t, res.Dataset.Zones.Bulk, 1)
}

func TestParseCSV_SkipsBlankRows(t *testing.T) {
	input := "Month,L1,L2,L3\nJan-24,10,8,6\n,,,\nFeb-24,11,9,7\n"

	res, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{testMonthJan, testMonthFeb}, domain.Months(res.Dataset))
}

func TestParseCSV_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column string
	}{
		{"missing required column", "Month,L1,L2\nJan-24,1,2\n", 1, "L3"},
		{"non-numeric volume", "Month,L1,L2,L3\nJan-24,abc,2,3\n", 2, "L1"},
		{"non-finite volume", "Month,L1,L2,L3\nJan-24,1,NaN,3\n", 2, "L2"},
		{"empty month", "Month,L1,L2,L3\nJan-24,1,2,3\n,1,2,3\n", 3, "Month"},
		{"bad zone cell", "Month,L1,L2,L3,Zone08_Bulk\nJan-24,1,2,3,x\n", 2, "Zone08_Bulk"},
		{"header only", "Month,L1,L2,L3\n", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			require.Error(t, err)

			var malformed *MalformedInputError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.line, malformed.Line)
			assert.Equal(t, tt.column, malformed.Column)
		})
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Month", "L1", "L2", "L3", "Zone03A_Bulk", "Zone03A_Individual"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Mar-25", 41664, 34792, 30301, 3591, 1129}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := ParseXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, FormatXLSX, res.Format)
	require.Len(t, res.Dataset.Periods, 1)
	assert.Equal(t, 41664.0, res.Dataset.Periods[0].L1)

	out := domain.Recompute(res.Dataset)
	assert.Equal(t, 2462.0, out.Zones.Loss[0].Value(domain.Zone03A))
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := ParseXLSX(strings.NewReader("not a zip"))

	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
}

func TestDefaultFixture_IsConsistent(t *testing.T) {
	res, err := DefaultFixture()
	require.NoError(t, err)

	assert.Equal(t, FormatYAML, res.Format)
	assert.Equal(t, PeriodLossColumns{Stage01Loss: true, Stage02Loss: true, TotalLoss: true}, res.PeriodLossCols)
	assert.True(t, res.ZoneLossSupplied())

	report := domain.Validate(res.Dataset)
	assert.True(t, report.Valid, "default fixture mismatches: %v", report.Errors)

	ds := res.Dataset
	require.NotEmpty(t, ds.Periods)
	assert.Equal(t, testMonthJan, ds.Periods[0].Month)
	assert.Equal(t, 4114.0, ds.Periods[0].Stage01Loss)
	assert.Len(t, ds.Zones.Bulk, len(ds.Periods))
	assert.Len(t, ds.Zones.Individual, len(ds.Periods))
	assert.Len(t, ds.Zones.Loss, len(ds.Periods))
	assert.Len(t, ds.DirectConnections, len(ds.Periods))
	assert.Len(t, ds.MBPayments, len(ds.Periods))

	stats, err := domain.ZonePerformance(ds, "Mar-25")
	require.NoError(t, err)
	for _, s := range stats {
		if s.Zone == domain.Zone03A {
			assert.Equal(t, 3591.0, s.Bulk)
			assert.Equal(t, 1129.0, s.Individual)
			assert.Equal(t, 2462.0, s.Loss)
		}
	}
}

func TestParseYAML_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"no periods":    "periods: []\n",
		"unknown field": "periods:\n  - month: Jan-24\n    l4: 1\n",
		"missing month": "periods:\n  - l1: 1\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseYAML(strings.NewReader(input))
			var malformed *MalformedInputError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	res, err := DefaultFixture()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, res.Dataset))

	again, err := ParseYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, domain.Months(res.Dataset), domain.Months(again.Dataset))
}

func TestParse_DispatchesOnExtension(t *testing.T) {
	res, err := Parse("upload.CSV", strings.NewReader("Month,L1,L2,L3\nJan-24,1,1,1\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, res.Format)

	_, err = Parse("upload.pdf", strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"water.csv", FormatCSV},
		{"water.xlsx", FormatXLSX},
		{"water.yaml", FormatYAML},
		{"water.yml", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeader(t *testing.T) {
	h := Header()
	assert.Equal(t, "Month", h[0])
	assert.Len(t, h, 12+3*len(domain.Zones))
	assert.Contains(t, h, "ZoneSC_Loss")
}

func TestMalformedInputError_Message(t *testing.T) {
	err := &MalformedInputError{Line: 4, Column: "L2", Err: errors.New("boom")}
	assert.Equal(t, `malformed input: line 4, column "L2": boom`, err.Error())
}

func TestResult_Audit(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantErrors int
	}{
		{"primary only", "Month,L1,L2,L3,Zone05_Bulk,Zone05_Individual\nJan-24,10,8,6,4,3\n", 0},
		{"stale period loss", "Month,L1,L2,L3,Stage01Loss,Stage02Loss,TotalLoss\nJan-24,10,8,6,2,2,5\n", 1},
		{"stale zone loss", "Month,L1,L2,L3,Zone05_Bulk,Zone05_Individual,Zone05_Loss\nJan-24,10,8,6,4,3,9\n", 1},
		{"blank zone loss for other zones", "Month,L1,L2,L3,Zone05_Bulk,Zone05_Individual,Zone05_Loss\nJan-24,10,8,6,4,3,1\n", 0},
		{"one period loss column", "Month,L1,L2,L3,Stage01Loss\nJan-24,10,8,6,2\n", 0},
		{"one stale period loss column", "Month,L1,L2,L3,TotalLoss\nJan-24,10,8,6,3\n", 1},
		{"loss column for one zone only", "Month,L1,L2,L3,Zone03A_Bulk,Zone03A_Individual,Zone03A_Loss,Zone05_Bulk,Zone05_Individual\nJan-24,10,8,6,3591,1129,2462,900,500\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseCSV(strings.NewReader(tt.input))
			require.NoError(t, err)

			repaired, report := res.Audit()
			assert.Len(t, report.Errors, tt.wantErrors, "errors: %v", report.Errors)
			assert.True(t, domain.Validate(repaired).Valid)
			assert.Equal(t, 2.0, repaired.Periods[0].Stage01Loss)
		})
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	res, err := DefaultFixture()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res.Dataset))

	again, err := ParseCSV(&buf)
	require.NoError(t, err)
	assert.True(t, again.PeriodLossCols.Any())
	assert.True(t, again.ZoneLossSupplied())

	_, report := again.Audit()
	assert.True(t, report.Valid, "round-tripped csv mismatches: %v", report.Errors)
	assert.Equal(t, res.Dataset.Periods, again.Dataset.Periods)
	assert.Equal(t, res.Dataset.DirectConnections, again.Dataset.DirectConnections)
	assert.Equal(t, res.Dataset.Zones.Loss[0].Value(domain.ZoneSC), again.Dataset.Zones.Loss[0].Value(domain.ZoneSC))
}

func TestAudit_PartialDerivedColumns(t *testing.T) {
	input := "Month,L1,L2,L3,Stage01Loss\nJan-24,32803,28689,25680,4114\n"

	res, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, PeriodLossColumns{Stage01Loss: true}, res.PeriodLossCols)

	repaired, report := res.Audit()
	assert.True(t, report.Valid, "absent columns reported: %v", report.Errors)
	assert.Equal(t, 3009.0, repaired.Periods[0].Stage02Loss)
	assert.Equal(t, 7123.0, repaired.Periods[0].TotalLoss)
}

func TestAudit_ZoneLossForSomeZones(t *testing.T) {
	input := "Month,L1,L2,L3,Zone03A_Bulk,Zone03A_Individual,Zone03A_Loss,Zone05_Bulk,Zone05_Individual\n" +
		"Mar-25,41664,34792,30301,3591,1129,2000,900,500\n"

	res, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Dataset.Zones.Loss, 1)
	assert.Len(t, res.Dataset.Zones.Loss[0].Readings, 1)

	repaired, report := res.Audit()
	require.Len(t, report.Errors, 1, "errors: %v", report.Errors)
	assert.Equal(t, "Mar-25 Zone03A: loss mismatch: stored 2000, expected 2462", report.Errors[0])
	assert.Equal(t, 400.0, repaired.Zones.Loss[0].Value(domain.Zone05))
}

func TestAudit_ShortYAMLLossSequence(t *testing.T) {
	input := `periods:
  - {month: Jan-24, l1: 10, l2: 8, l3: 6, stage01_loss: 2, stage02_loss: 2, total_loss: 4}
  - {month: Feb-24, l1: 12, l2: 9, l3: 7, stage01_loss: 3, stage02_loss: 2, total_loss: 5}
zones:
  bulk:
    - {month: Jan-24, readings: {Zone05: 4}}
    - {month: Feb-24, readings: {Zone05: 6}}
  individual:
    - {month: Jan-24, readings: {Zone05: 3}}
    - {month: Feb-24, readings: {Zone05: 2}}
  loss:
    - {month: Jan-24, readings: {Zone05: 1}}
`
	res, err := ParseYAML(strings.NewReader(input))
	require.NoError(t, err)

	repaired, report := res.Audit()
	assert.True(t, report.Valid, "missing loss row reported: %v", report.Errors)
	require.Len(t, repaired.Zones.Loss, 2)
	assert.Equal(t, 4.0, repaired.Zones.Loss[1].Value(domain.Zone05))
}

func TestParseYAML_UnknownZoneKey(t *testing.T) {
	input := `periods:
  - {month: Mar-25, l1: 41664, l2: 34792, l3: 30301, stage01_loss: 6872, stage02_loss: 4491, total_loss: 11363}
zones:
  bulk:
    - {month: Mar-25, readings: {Zone3A: 3591}}
  individual:
    - {month: Mar-25, readings: {Zone03A: 1129}}
`
	_, err := ParseYAML(strings.NewReader(input))

	var malformed *MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "zones.bulk[0].readings", malformed.Column)
	assert.Contains(t, err.Error(), `unknown zone "Zone3A"`)
	assert.Contains(t, err.Error(), "Mar-25")
}
