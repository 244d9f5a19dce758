package results

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lehigh-university-libraries/photogroup/internal/grouping"
	"gopkg.in/yaml.v3"
)

// RunConfig describes the grouping run that produced a report.
type RunConfig struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Photos    int     `yaml:"photos" json:"photos"`
	Source    string  `yaml:"source,omitempty" json:"source,omitempty"`
	Timestamp string  `yaml:"timestamp" json:"timestamp"`
}

// Summary counts the groups in a report.
type Summary struct {
	Groups     int `yaml:"groups" json:"groups"`
	MultiPhoto int `yaml:"multiphoto" json:"multi_photo"`
	Singletons int `yaml:"singletons" json:"singletons"`
}

// GroupReport is the document printed by `photogroup group`.
type GroupReport struct {
	Config  RunConfig             `yaml:"config" json:"config"`
	Summary Summary               `yaml:"summary" json:"summary"`
	Groups  []grouping.PhotoGroup `yaml:"groups" json:"groups"`
}

// NewGroupReport summarises groups produced from photos photos.
func NewGroupReport(groups []grouping.PhotoGroup, photos int, threshold float64, source string, now time.Time) GroupReport {
	report := GroupReport{
		Config: RunConfig{
			Threshold: threshold,
			Photos:    photos,
			Source:    source,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
		Groups: groups,
	}
	for _, g := range groups {
		report.Summary.Groups++
		if len(g.Photos) > 1 {
			report.Summary.MultiPhoto++
		} else {
			report.Summary.Singletons++
		}
	}
	return report
}

// Write encodes v as "yaml" or "json".
func Write(w io.Writer, format string, v any) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: json, yaml)", format)
	}
}
