package relic

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the .relic.yaml workspace manifest: the relations to
// load into the environment at startup, and an optional workspace snapshot
// to open.
type Config struct {
	// Relations maps relation names to data sources.
	Relations map[string]RelationSource `yaml:"relations,omitempty"`

	// Workspace is a snapshot file to open. The CLI opens it after loading
	// Relations, so its bindings win on name collisions; a --workspace flag
	// takes its place.
	Workspace string `yaml:"workspace,omitempty"`
}

// RelationSource describes where one relation's data comes from.
type RelationSource struct {
	// Path to the data file. The format is inferred from the extension
	// (.csv, .tsv, .json) unless Format overrides it.
	Path   string `yaml:"path"`
	Format string `yaml:"format,omitempty"`
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".relic.yaml", ".relic.yml", "relic.yaml", "relic.yml"}

// LoadConfig finds and loads the nearest .relic.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
