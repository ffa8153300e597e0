package pattern

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a JSON array of patterns from path.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", path, err)
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("pattern file %s contains no patterns", path)
	}
	// Reject files that would fail later, mid-batch.
	if _, err := Compile(patterns); err != nil {
		return nil, fmt.Errorf("pattern file %s: %w", path, err)
	}
	return patterns, nil
}

// Save writes patterns to path as an indented JSON array.
func Save(path string, patterns []string) error {
	if patterns == nil {
		patterns = []string{}
	}
	data, err := json.MarshalIndent(patterns, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
