package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/j-veylop/wafer-yield/internal/models"
	"github.com/j-veylop/wafer-yield/internal/report"
)

// TableConfig is one table entry of a report profile.
type TableConfig struct {
	Kind  string `yaml:"kind"`
	Name  string `yaml:"name"`
	Title string `yaml:"title,omitempty"`
}

// Profile lists the report tables to generate, in output order.
type Profile struct {
	Tables []TableConfig `yaml:"tables"`
}

const defaultCountTitle = "Count - Bin"

// DefaultProfile returns the six standard tables.
func DefaultProfile() *Profile {
	return &Profile{Tables: []TableConfig{
		{Kind: models.ReportBinCount.String(), Name: "df1-gen", Title: defaultCountTitle},
		{Kind: models.ReportBinPercent.String(), Name: "df1-1-gen", Title: defaultCountTitle},
		{Kind: models.ReportSubBinCount.String(), Name: "df2-gen", Title: defaultCountTitle},
		{Kind: models.ReportSubBinPercent.String(), Name: "df2-1-gen", Title: defaultCountTitle},
		{Kind: models.ReportBinStats.String(), Name: "df3-gen"},
		{Kind: models.ReportSubBinStats.String(), Name: "df3-1-gen"},
	}}
}

// LoadProfile reads a YAML profile. Unknown keys are rejected.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	if _, err := p.Specs(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return &p, nil
}

// Specs validates the profile and converts it to table specs.
func (p *Profile) Specs() ([]report.TableSpec, error) {
	if len(p.Tables) == 0 {
		return nil, errors.New("profile has no tables")
	}

	specs := make([]report.TableSpec, 0, len(p.Tables))
	seen := make(map[string]bool, len(p.Tables))
	for i, t := range p.Tables {
		kind, ok := models.ParseReportKind(t.Kind)
		if !ok {
			return nil, fmt.Errorf("table %d: unknown kind %q", i+1, t.Kind)
		}
		if t.Name == "" {
			return nil, fmt.Errorf("table %d: name is required", i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("table %d: duplicate name %q", i+1, t.Name)
		}
		seen[t.Name] = true

		title := t.Title
		if title == "" && kind.IsCount() {
			title = defaultCountTitle
		}
		specs = append(specs, report.TableSpec{Kind: kind, Name: t.Name, Title: title})
	}
	return specs, nil
}

// Save writes the profile as YAML.
func (p *Profile) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}
