package measure

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestConvertLength(t *testing.T) {
	set := Convert(map[string]float64{"Height": 182.4})
	v, ok := set.Values["Height"]
	if !ok {
		t.Fatal("missing Height")
	}
	if v.Kind != KindLength {
		t.Fatalf("expected length kind, got %v", v.Kind)
	}
	if v.Metric != 182.4 {
		t.Fatalf("expected metric 182.4, got %v", v.Metric)
	}
	want := math.Round(182.4/CmPerInch*100) / 100
	if v.Imperial != want {
		t.Fatalf("expected imperial %v, got %v", want, v.Imperial)
	}
}

func TestConvertWeightUsesMassUnits(t *testing.T) {
	set := Convert(map[string]float64{"weight": 70.0, "WEIGHT": 70.0})
	for name, v := range set.Values {
		if v.Kind != KindMass {
			t.Fatalf("expected %q converted as mass", name)
		}
		if v.Imperial != 154.32 {
			t.Fatalf("expected 70 kg = 154.32 lbs, got %v", v.Imperial)
		}
	}
}

// TestRoundTrip converts metric to imperial and back, checking the
// result stays within rounding tolerance.
func TestRoundTrip(t *testing.T) {
	raw := map[string]float64{
		"Height":       182.43,
		"ChestGirth":   101.17,
		"WaistGirth":   84.9,
		"InseamHeight": 80.02,
		"weight":       76.55,
	}
	set := Convert(raw)
	for name, v := range set.Values {
		back := ToMetric(v.Kind, v.Imperial)
		if math.Abs(back-raw[name]) > 0.02 {
			t.Fatalf("%s: round trip drifted: %v -> %v -> %v", name, raw[name], v.Imperial, back)
		}
	}
}

func TestMarshalShape(t *testing.T) {
	set := Convert(map[string]float64{"Height": 180, "weight": 80})
	set.Extra = map[string]any{"units_note": "source report"}

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	height, ok := decoded["Height"].(map[string]any)
	if !ok {
		t.Fatalf("expected Height object, got %T", decoded["Height"])
	}
	if height["cm"].(float64) != 180 || height["in"].(float64) != 70.87 {
		t.Fatalf("unexpected Height values: %v", height)
	}

	weight, ok := decoded["weight"].(map[string]any)
	if !ok {
		t.Fatalf("expected weight object, got %T", decoded["weight"])
	}
	if weight["kg"].(float64) != 80 || weight["lbs"].(float64) != 176.37 {
		t.Fatalf("unexpected weight values: %v", weight)
	}

	if decoded["units_note"] != "source report" {
		t.Fatalf("expected extra entry passed through, got %v", decoded["units_note"])
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	set := Convert(map[string]float64{"Height": 170.0})

	path, err := set.WriteFile(dir)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if path != filepath.Join(dir, OutputFile) {
		t.Fatalf("unexpected path %q", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(content), `"cm"`) || !strings.Contains(string(content), `"in"`) {
		t.Fatalf("expected both unit systems in file, got: %s", content)
	}
}
