// Package measure converts raw body measurements to paired metric and
// imperial values and persists them per subject.
package measure

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Conversion constants shared with the fitting service's reports.
const (
	CmPerInch = 2.54
	LbsPerKg  = 2.20462
)

// OutputFile is the per-subject measurement file name.
const OutputFile = "measurements.json"

// Kind distinguishes length measurements from mass measurements.
type Kind int

const (
	KindLength Kind = iota
	KindMass
)

// Value is a single measurement in both unit systems, rounded to two
// decimals.
type Value struct {
	Kind     Kind
	Metric   float64
	Imperial float64
}

// MarshalJSON emits {"cm": x, "in": y} for lengths and
// {"kg": x, "lbs": y} for masses.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindMass {
		return json.Marshal(map[string]float64{"kg": v.Metric, "lbs": v.Imperial})
	}
	return json.Marshal(map[string]float64{"cm": v.Metric, "in": v.Imperial})
}

// Set holds the converted measurements for one avatar. Extra carries
// non-numeric report entries through unchanged.
type Set struct {
	Values map[string]Value
	Extra  map[string]any
}

// Convert builds a Set from the raw numeric measurements. Keys named
// "weight" (any case) are treated as masses in kilograms; every other
// key as a length in centimeters.
func Convert(raw map[string]float64) Set {
	values := make(map[string]Value, len(raw))
	for name, v := range raw {
		if strings.EqualFold(name, "weight") {
			values[name] = Value{
				Kind:     KindMass,
				Metric:   round2(v),
				Imperial: round2(v * LbsPerKg),
			}
			continue
		}
		values[name] = Value{
			Kind:     KindLength,
			Metric:   round2(v),
			Imperial: round2(v / CmPerInch),
		}
	}
	return Set{Values: values}
}

// ToMetric converts an imperial value back to metric, for the same kind.
func ToMetric(kind Kind, imperial float64) float64 {
	if kind == KindMass {
		return imperial / LbsPerKg
	}
	return imperial * CmPerInch
}

// MarshalJSON renders the set as a single object keyed by measurement
// name, with deterministic key order.
func (s Set) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(s.Values)+len(s.Extra))
	for k := range s.Values {
		keys = append(keys, k)
	}
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		nameJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(nameJSON)
		buf.WriteByte(':')

		var valueJSON []byte
		if v, ok := s.Values[k]; ok {
			valueJSON, err = json.Marshal(v)
		} else {
			valueJSON, err = json.Marshal(s.Extra[k])
		}
		if err != nil {
			return nil, err
		}
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

// WriteFile writes measurements.json into dir and returns its path.
func (s Set) WriteFile(dir string) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal measurements: %w", err)
	}
	path := filepath.Join(dir, OutputFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
