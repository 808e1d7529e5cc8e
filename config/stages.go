package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StageConfig overrides the defaults of one named stage.
type StageConfig struct {
	Name          string   `yaml:"name" json:"name"`
	Instruction   string   `yaml:"instruction" json:"instruction"`
	Description   string   `yaml:"description" json:"description"`
	Tools         []string `yaml:"tools" json:"tools"`
	MaxIterations int      `yaml:"max_iterations" json:"max_iterations"`
	Fallback      string   `yaml:"fallback" json:"fallback"`
}

// StagesFile represents the structure of stages.yaml
type StagesFile struct {
	Stages []StageConfig `yaml:"stages" json:"stages"`
}

// LoadStages reads a stage file (YAML or JSON) and returns the overrides by
// stage name. An empty path or a missing file yields no overrides.
func LoadStages(path string) (map[string]StageConfig, error) {
	if path == "" {
		return map[string]StageConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]StageConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read stages config: %w", err)
	}

	var file StagesFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse stages.json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse stages.yaml: %w", err)
		}
	}

	stages := make(map[string]StageConfig, len(file.Stages))
	for _, s := range file.Stages {
		if s.Name == "" {
			continue
		}
		if _, dup := stages[s.Name]; dup {
			return nil, fmt.Errorf("stage %q configured twice", s.Name)
		}
		if s.MaxIterations < 0 {
			return nil, fmt.Errorf("stage %q: max_iterations cannot be negative", s.Name)
		}
		stages[s.Name] = s
	}

	return stages, nil
}
