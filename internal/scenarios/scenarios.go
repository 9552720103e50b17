// Package scenarios runs data-driven demonstrations of the field rules.
// A scenario names a field, a raw value and the expected outcome; the
// runner prints one line per scenario and counts mismatches.
package scenarios

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"regform/internal/validation"
)

//go:embed default.yaml
var defaultFile []byte

// ExpectValid marks a scenario whose value must pass.
const ExpectValid = "VALID"

// File is a scenario document.
type File struct {
	// Now fixes the date used for age checks (YYYY-MM-DD). Empty means today.
	Now    string  `yaml:"now"`
	Groups []Group `yaml:"groups"`
}

type Group struct {
	Name      string     `yaml:"name"`
	Scenarios []Scenario `yaml:"scenarios"`
}

type Scenario struct {
	Description string `yaml:"description"`
	Field       string `yaml:"field"`
	Value       any    `yaml:"value"`
	Expect      string `yaml:"expect"`
}

// Report summarizes a run.
type Report struct {
	Total      int
	Mismatches int
}

// Passed reports whether every scenario behaved as expected.
func (r Report) Passed() bool {
	return r.Mismatches == 0
}

// Default returns the built-in scenarios.
func Default() (File, error) {
	return Parse(defaultFile)
}

// LoadFile reads scenarios from path.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read scenarios: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario document and checks every field name.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse scenarios: %w", err)
	}
	for _, g := range f.Groups {
		for _, sc := range g.Scenarios {
			if _, ok := validation.ParseField(sc.Field); !ok {
				return File{}, fmt.Errorf("scenario %q: unknown field %q", sc.Description, sc.Field)
			}
		}
	}
	return f, nil
}

// Clock resolves the document's fixed date, falling back to now.
func (f File) Clock(now time.Time) (time.Time, error) {
	if f.Now == "" {
		return now, nil
	}
	d, err := validation.ParseDate(f.Now)
	if err != nil {
		return time.Time{}, fmt.Errorf("scenarios now: %w", err)
	}
	return d.Time(time.UTC), nil
}

// Run evaluates every scenario at now and writes the results to w.
func Run(f File, now time.Time, w io.Writer) Report {
	var rep Report
	fmt.Fprintln(w, "=== Running example scenarios ===")
	for _, g := range f.Groups {
		fmt.Fprintf(w, "\n--- %s ---\n", g.Name)
		for _, sc := range g.Scenarios {
			rep.Total++
			field, _ := validation.ParseField(sc.Field)
			out := validation.ValidateField(field, normalizeValue(sc.Value), now)
			if !matches(out, sc.Expect) {
				rep.Mismatches++
				fmt.Fprintf(w, "[MISMATCH] %s -> expected %s, got %s\n", sc.Description, sc.Expect, out)
				continue
			}
			if out.IsValid() {
				fmt.Fprintf(w, "[OK] %s -> %s\n", sc.Description, describeValid(field, sc.Value, now))
				continue
			}
			fmt.Fprintf(w, "[EXPECTED ERROR] %s -> Code: %s | Message: %q\n", sc.Description, out.Code(), out.Message())
		}
	}
	fmt.Fprintf(w, "\n=== %d scenarios, %d mismatches ===\n", rep.Total, rep.Mismatches)
	return rep
}

func matches(out validation.Outcome, expect string) bool {
	if expect == "" || expect == ExpectValid {
		return out.IsValid()
	}
	return !out.IsValid() && string(out.Code()) == expect
}

func describeValid(field validation.Field, v any, now time.Time) string {
	if field != validation.BirthDate {
		return "Valid"
	}
	s, _ := v.(string)
	d, err := validation.ParseDate(s)
	if err != nil {
		return "Valid"
	}
	return fmt.Sprintf("Valid (age %d)", validation.CalculateAge(d, now))
}

// normalizeValue turns YAML integers into float64, as JSON input would
// arrive.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	default:
		return v
	}
}
