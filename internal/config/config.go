// Package config handles workspace configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotWorkspace is returned when no .neo directory is found.
var ErrNotWorkspace = errors.New("not in a neo workspace (no .neo directory found)")

// Thresholds holds the tunable constants of graph construction. Changing
// any of them changes which facilities are flagged.
type Thresholds struct {
	DescriptionCapabilityDiscount float64 `json:"description_capability_discount"`
	TextEquipmentDiscount         float64 `json:"text_equipment_discount"`
	MinReadiness                  float64 `json:"min_readiness"`
	SpecialtyConfidence           float64 `json:"specialty_confidence"`
	DesertConfidence              float64 `json:"desert_confidence"`
	DesertMinFacilities           int     `json:"desert_min_facilities"`
	ClassifierBatchSize           int     `json:"classifier_batch_size"`
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DescriptionCapabilityDiscount: 0.7,
		TextEquipmentDiscount:         0.8,
		MinReadiness:                  0.6,
		SpecialtyConfidence:           0.9,
		DesertConfidence:              0.5,
		DesertMinFacilities:           1,
		ClassifierBatchSize:           20,
	}
}

// Config represents workspace configuration stored in .neo/config.json.
type Config struct {
	DataPath      string     `json:"data_path"`                // Facility CSV
	Country       string     `json:"country"`                  // Embedded country table name
	IndicatorsDir string     `json:"indicators_dir,omitempty"` // DHS subnational CSV directory
	Geocode       bool       `json:"geocode,omitempty"`        // Query Nominatim during build
	Thresholds    Thresholds `json:"thresholds"`
}

// Default returns a config for a fresh workspace.
func Default() *Config {
	return &Config{Country: "ghana", Thresholds: DefaultThresholds()}
}

const (
	NeoDir        = ".neo"
	ConfigFile    = "config.json"
	EntitiesFile  = "entities.jsonl"
	GeocodeFile   = "geocode.jsonl"
	CacheDir      = "cache"
	VocabDBFile   = "vocab.db"
	SnapshotFile  = "graph.gob"
	MetaFile      = "graph_meta.json"
	ExportDBFile  = "graph.db"
	CytoscapeFile = "graph.cyjs"
)

// NeoPath returns the path to the .neo directory from a root path.
func NeoPath(root string) string {
	return filepath.Join(root, NeoDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, NeoDir, ConfigFile)
}

// EntitiesPath returns the path to entities.jsonl from a root path.
func EntitiesPath(root string) string {
	return filepath.Join(root, NeoDir, EntitiesFile)
}

// GeocodePath returns the path to the geocode cache from a root path.
func GeocodePath(root string) string {
	return filepath.Join(root, NeoDir, GeocodeFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, NeoDir, CacheDir)
}

// VocabCachePath returns the path to the classification cache database.
func VocabCachePath(root string) string {
	return filepath.Join(CachePath(root), VocabDBFile)
}

// SnapshotPath returns the path to the binary graph snapshot.
func SnapshotPath(root string) string {
	return filepath.Join(CachePath(root), SnapshotFile)
}

// MetaPath returns the path to the graph metadata summary.
func MetaPath(root string) string {
	return filepath.Join(CachePath(root), MetaFile)
}

// ExportDBPath returns the path to the SQLite graph export.
func ExportDBPath(root string) string {
	return filepath.Join(CachePath(root), ExportDBFile)
}

// CytoscapePath returns the path to the Cytoscape.js export.
func CytoscapePath(root string) string {
	return filepath.Join(CachePath(root), CytoscapeFile)
}

// IsWorkspace checks if the given path contains a .neo directory.
func IsWorkspace(root string) bool {
	info, err := os.Stat(NeoPath(root))
	return err == nil && info.IsDir()
}

// FindWorkspace walks up from the given path to find a workspace root.
func FindWorkspace(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsWorkspace(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotWorkspace
		}
		abs = parent
	}
}

// Init creates the .neo directory layout and writes cfg. An existing
// workspace is an error.
func Init(root string, cfg *Config) error {
	if IsWorkspace(root) {
		return fmt.Errorf("workspace already exists at %s", NeoPath(root))
	}
	if err := os.MkdirAll(CachePath(root), 0755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	return cfg.Save(root)
}

// Load reads configuration from the workspace at the given root. Missing
// thresholds fall back to their defaults.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to the workspace at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks that thresholds are in range.
func (c *Config) Validate() error {
	th := c.Thresholds
	for name, v := range map[string]float64{
		"description_capability_discount": th.DescriptionCapabilityDiscount,
		"text_equipment_discount":         th.TextEquipmentDiscount,
		"min_readiness":                   th.MinReadiness,
		"specialty_confidence":            th.SpecialtyConfidence,
		"desert_confidence":               th.DesertConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid %s: %v (must be within [0, 1])", name, v)
		}
	}
	if th.DesertMinFacilities < 1 {
		return fmt.Errorf("invalid desert_min_facilities: %d (must be at least 1)", th.DesertMinFacilities)
	}
	if th.ClassifierBatchSize < 1 {
		return fmt.Errorf("invalid classifier_batch_size: %d (must be at least 1)", th.ClassifierBatchSize)
	}
	return nil
}

// ResolveDataPath returns DataPath expanded and made absolute relative to
// the workspace root.
func (c *Config) ResolveDataPath(root string) string {
	return resolve(root, c.DataPath)
}

// ResolveIndicatorsDir returns IndicatorsDir expanded and made absolute
// relative to the workspace root.
func (c *Config) ResolveIndicatorsDir(root string) string {
	return resolve(root, c.IndicatorsDir)
}

func resolve(root, path string) string {
	if path == "" {
		return ""
	}
	path = ExpandPath(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
