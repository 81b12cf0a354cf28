package ingest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/water-balance-service/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/default.yaml
var defaultFixture []byte

// DefaultFixtureName is the source name reported for the bundled dataset.
const DefaultFixtureName = "default.yaml"

// ParseYAML decodes a dataset fixture. Fixtures carry their precomputed
// period losses; a zone loss counts as supplied when its loss row carries a
// reading for the zone. Reading keys must name a known zone.
func ParseYAML(r io.Reader) (Result, error) {
	var res Result
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&res.Dataset); err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, &MalformedInputError{Err: errors.New("empty fixture")}
		}
		return Result{}, &MalformedInputError{Err: fmt.Errorf("parse fixture: %w", err)}
	}
	if len(res.Dataset.Periods) == 0 {
		return Result{}, &MalformedInputError{Err: errors.New("fixture has no periods")}
	}
	for i, p := range res.Dataset.Periods {
		if p.Month == "" {
			return Result{}, &MalformedInputError{Err: fmt.Errorf("period %d has no month", i)}
		}
	}

	zones := res.Dataset.Zones
	for _, seq := range []struct {
		name string
		rows []domain.ZoneMonth
	}{
		{"bulk", zones.Bulk},
		{"individual", zones.Individual},
		{"loss", zones.Loss},
	} {
		if err := checkZoneKeys(seq.name, seq.rows); err != nil {
			return Result{}, err
		}
	}

	res.Format = FormatYAML
	res.PeriodLossCols = PeriodLossColumns{Stage01Loss: true, Stage02Loss: true, TotalLoss: true}
	return res, nil
}

func checkZoneKeys(seq string, rows []domain.ZoneMonth) error {
	for i, row := range rows {
		for z := range row.Readings {
			if _, ok := domain.ParseZone(string(z)); !ok {
				return &MalformedInputError{
					Column: fmt.Sprintf("zones.%s[%d].readings", seq, i),
					Err:    fmt.Errorf("%s: unknown zone %q", row.Month, z),
				}
			}
		}
	}
	return nil
}

// LoadFixture reads a dataset fixture from disk.
func LoadFixture(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading fixture: %w", err)
	}
	return ParseYAML(bytes.NewReader(data))
}

// DefaultFixture returns the dataset bundled with the binary.
func DefaultFixture() (Result, error) {
	return ParseYAML(bytes.NewReader(defaultFixture))
}

// WriteYAML encodes ds as a fixture.
func WriteYAML(w io.Writer, ds domain.WaterDataset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return enc.Close()
}
