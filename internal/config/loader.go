package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr                string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir           string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	RetainVersions      int    `json:"retain_versions" yaml:"retain_versions" toml:"retain_versions"`
	DrainTimeoutSeconds int    `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds" toml:"drain_timeout_seconds"`
	OutputEncoding      string `json:"output_encoding" yaml:"output_encoding" toml:"output_encoding"`
	AuditDB             string `json:"audit_db" yaml:"audit_db" toml:"audit_db"`
	MaxBodyBytes        int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
