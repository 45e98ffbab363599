package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/neo/config.yml.
type GlobalConfig struct {
	WorkspacePath   string `yaml:"workspace_path,omitempty"`
	OpenAIAPIKey    string `yaml:"openai_api_key,omitempty"`
	OpenAIBaseURL   string `yaml:"openai_base_url,omitempty"`
	ClassifierModel string `yaml:"classifier_model,omitempty"`
	NominatimURL    string `yaml:"nominatim_url,omitempty"`
	Neo4jURI        string `yaml:"neo4j_uri,omitempty"`
	Neo4jUser       string `yaml:"neo4j_user,omitempty"`
	Neo4jPassword   string `yaml:"neo4j_password,omitempty"`
	Neo4jDatabase   string `yaml:"neo4j_database,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "neo"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/neo/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file and applies
// environment overrides. A missing file yields an empty config.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if cfg.WorkspacePath != "" {
		cfg.WorkspacePath = ExpandPath(cfg.WorkspacePath)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

func (c *GlobalConfig) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"OPENAI_API_KEY", &c.OpenAIAPIKey},
		{"OPENAI_BASE_URL", &c.OpenAIBaseURL},
		{"NEO4J_URI", &c.Neo4jURI},
		{"NEO4J_USER", &c.Neo4jUser},
		{"NEO4J_PASSWORD", &c.Neo4jPassword},
		{"NEO4J_DATABASE", &c.Neo4jDatabase},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// GetWorkspacePath returns the configured default workspace.
func GetWorkspacePath() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.WorkspacePath
}
