package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fixture is a recorded completion used to replay model output in tests.
type Fixture struct {
	Name string `json:"name"`
	// Match lists substrings that must all appear in the prompt.
	Match     []string  `json:"match"`
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// Matches reports whether prompt contains every Match substring.
func (f *Fixture) Matches(prompt string) bool {
	for _, m := range f.Match {
		if !strings.Contains(prompt, m) {
			return false
		}
	}
	return true
}

func (f *Fixture) validate() error {
	if f.Name == "" {
		return fmt.Errorf("missing 'name' field")
	}
	if f.Model == "" {
		return fmt.Errorf("missing 'model' field")
	}
	if len(f.Match) == 0 {
		return fmt.Errorf("missing 'match' field")
	}
	if f.Response == "" {
		return fmt.Errorf("missing 'response' field")
	}
	return nil
}

// LoadFixture loads dir/<name>.json.
func LoadFixture(dir, name string) (*Fixture, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("fixture not found: %s", name)
		}
		return nil, fmt.Errorf("read fixture %s: %w", name, err)
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture %s (invalid JSON): %w", name, err)
	}
	if err := fixture.validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}

	return &fixture, nil
}

// SaveFixture writes fixture to dir/<name>.json via a temp file and rename.
func SaveFixture(dir, name string, fixture *Fixture) error {
	if err := fixture.validate(); err != nil {
		return fmt.Errorf("fixture %s: %w", name, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create fixtures directory: %w", err)
	}

	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	fixturePath := filepath.Join(dir, name+".json")
	tempPath := fixturePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp fixture %s: %w", name, err)
	}

	if err := os.Rename(tempPath, fixturePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename fixture %s: %w", name, err)
	}

	return nil
}

// FixtureGenerator replays fixtures: the first one matching the prompt
// answers it.
type FixtureGenerator struct {
	Fixtures []*Fixture
}

// LoadFixtureGenerator loads the named fixtures from dir.
func LoadFixtureGenerator(dir string, names ...string) (*FixtureGenerator, error) {
	gen := &FixtureGenerator{}
	for _, name := range names {
		f, err := LoadFixture(dir, name)
		if err != nil {
			return nil, err
		}
		gen.Fixtures = append(gen.Fixtures, f)
	}
	return gen, nil
}

// Generate implements TextGenerator.
func (g *FixtureGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, f := range g.Fixtures {
		if f.Matches(prompt) {
			return f.Response, nil
		}
	}
	return "", NewAPIError(0, "no fixture matches prompt")
}
