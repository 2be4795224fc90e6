package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

//go:embed seed/components.yaml
var seedYAML []byte

// LoadSeed parses the embedded reference components.
func LoadSeed() ([]schema.ComponentRecord, error) {
	var records []schema.ComponentRecord
	if err := yaml.Unmarshal(seedYAML, &records); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	for i := range records {
		if records[i].Source == "" {
			records[i].Source = schema.SourceSeed
		}
	}
	return records, nil
}
