package main

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/water-balance-service/internal/domain"
	"github.com/couchcryptid/water-balance-service/internal/ingest"
)

func readDataset(path string) (ingest.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ingest.Parse(path, f)
}

func runValidate(w io.Writer, path string) error {
	res, err := readDataset(path)
	if err != nil {
		return err
	}
	repaired, report := res.Audit()

	fmt.Fprintln(w, "=== Water Balance Validation ===")
	fmt.Fprintf(w, "Source: %s (%s), %d months\n", path, res.Format, len(repaired.Periods))
	fmt.Fprintln(w)

	if report.Valid {
		fmt.Fprintln(w, "All derived fields consistent.")
		return nil
	}
	for i, e := range report.Errors {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
	}
	fmt.Fprintf(w, "\nValidation FAILED (%d mismatches).\n", len(report.Errors))
	return errValidationFailed
}

func runRecompute(w io.Writer, path, out string) error {
	res, err := readDataset(path)
	if err != nil {
		return err
	}
	repaired, report := res.Audit()

	if err := writeTo(w, out, func(dst io.Writer) error {
		return ingest.WriteYAML(dst, repaired)
	}); err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintf(w, "wrote %s: %d months, %d fields repaired\n", out, len(repaired.Periods), len(report.Errors))
	}
	return nil
}

func runSummary(w io.Writer, path, month string) error {
	res, err := readDataset(path)
	if err != nil {
		return err
	}
	ds, _ := res.Audit()
	if month == "" {
		month = domain.LatestMonth(ds)
	}

	kpis, err := domain.MonthlyKPIs(ds, month)
	if err != nil {
		return err
	}
	zones, err := domain.ZonePerformance(ds, month)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "=== %s ===\n", kpis.Month)
	fmt.Fprintf(w, "  %-16s %12.0f %s\n", "L1 supply", kpis.L1, change(kpis.L1Change, kpis.PreviousMonth))
	fmt.Fprintf(w, "  %-16s %12.0f %s\n", "L3 consumption", kpis.L3, change(kpis.L3Change, kpis.PreviousMonth))
	fmt.Fprintf(w, "  %-16s %12.0f %s\n", "Total loss", kpis.TotalLoss, change(kpis.TotalLossChange, kpis.PreviousMonth))
	fmt.Fprintf(w, "  %-16s %11.1f%%\n", "Loss", kpis.LossPercentage)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %-10s %10s %10s %10s %10s\n", "Zone", "Bulk", "Individual", "Loss", "Efficiency")
	for _, z := range zones {
		fmt.Fprintf(w, "  %-10s %10.0f %10.0f %10.0f %9.1f%%\n", z.Zone, z.Bulk, z.Individual, z.Loss, z.Efficiency)
	}
	return nil
}

func change(pct float64, previous string) string {
	if previous == "" {
		return ""
	}
	return fmt.Sprintf("(%+.1f%% vs %s)", pct, previous)
}

func runExport(w io.Writer, path, format, out string) error {
	var (
		res ingest.Result
		err error
	)
	if path == "" {
		res, err = ingest.DefaultFixture()
	} else {
		res, err = readDataset(path)
	}
	if err != nil {
		return err
	}
	ds, _ := res.Audit()

	var encode func(io.Writer, domain.WaterDataset) error
	switch ingest.Format(format) {
	case ingest.FormatCSV:
		encode = ingest.WriteCSV
	case ingest.FormatYAML:
		encode = ingest.WriteYAML
	default:
		return fmt.Errorf("%w: %q", ingest.ErrUnsupportedFormat, format)
	}

	return writeTo(w, out, func(dst io.Writer) error {
		return encode(dst, ds)
	})
}

// writeTo runs encode against out, or against w when out is empty.
func writeTo(w io.Writer, out string, encode func(io.Writer) error) error {
	if out == "" {
		return encode(w)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := encode(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
