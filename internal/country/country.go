// Package country holds the static per-country tables the graph is built
// against: region metadata, label normalization, adjacency and travel factors.
package country

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sharckhai/neo-command/internal/geo"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var tables embed.FS

// DefaultCountry is the country used when none is configured.
const DefaultCountry = "ghana"

// ErrUnknownCountry is returned when no table exists for a country name.
var ErrUnknownCountry = errors.New("unknown country")

// TravelFactor describes how hard it is to move around a region.
type TravelFactor struct {
	Classification string  `yaml:"classification" json:"classification"`
	Multiplier     float64 `yaml:"multiplier" json:"travel_multiplier"`
	RoadQuality    string  `yaml:"road_quality" json:"avg_road_quality"`
	Notes          string  `yaml:"notes" json:"notes,omitempty"`
}

// Region is one administrative region.
type Region struct {
	Key         string       `yaml:"-" json:"key"`
	DisplayName string       `yaml:"display_name" json:"display_name"`
	Population  int          `yaml:"population" json:"population"`
	Capital     string       `yaml:"capital" json:"capital"`
	Lat         float64      `yaml:"lat" json:"lat"`
	Lng         float64      `yaml:"lng" json:"lng"`
	Adjacent    []string     `yaml:"adjacent" json:"adjacent"`
	Travel      TravelFactor `yaml:"travel" json:"travel"`
}

// Centroid returns the region centroid.
func (r Region) Centroid() geo.Point {
	return geo.Point{Lat: r.Lat, Lng: r.Lng}
}

// Country is the full set of static tables for one country.
type Country struct {
	Name          string               `yaml:"name"`
	DisplayName   string               `yaml:"display_name"`
	Regions       map[string]*Region   `yaml:"regions"`
	RegionAliases map[string]string    `yaml:"region_aliases"`
	CityRegions   map[string]string    `yaml:"city_regions"`
	CityCoords    map[string][]float64 `yaml:"city_coords"`
	DHSLocations  map[string]string    `yaml:"dhs_locations"`

	// Indicators holds external health indicators keyed by region, then
	// by short indicator name. Populated by LoadIndicators.
	Indicators map[string]map[string]float64 `yaml:"-"`

	keys []string
}

// Load returns the embedded tables for the named country.
func Load(name string) (*Country, error) {
	if name == "" {
		name = DefaultCountry
	}
	data, err := tables.ReadFile("data/" + strings.ToLower(name) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCountry, name)
	}
	return Parse(data)
}

// Parse decodes a country table document.
func Parse(data []byte) (*Country, error) {
	var c Country
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing country table: %w", err)
	}
	if len(c.Regions) == 0 {
		return nil, fmt.Errorf("country table %q has no regions", c.Name)
	}
	for key, r := range c.Regions {
		r.Key = key
		c.keys = append(c.keys, key)
	}
	sort.Strings(c.keys)
	for key, r := range c.Regions {
		for _, adj := range r.Adjacent {
			if _, ok := c.Regions[adj]; !ok {
				return nil, fmt.Errorf("region %q lists unknown neighbour %q", key, adj)
			}
		}
	}
	c.Indicators = make(map[string]map[string]float64)
	return &c, nil
}

// RegionKeys returns all region keys in sorted order.
func (c *Country) RegionKeys() []string {
	return c.keys
}

// Region returns the region with the given key.
func (c *Country) Region(key string) (*Region, bool) {
	r, ok := c.Regions[key]
	return r, ok
}

// Adjacency returns the region adjacency map.
func (c *Country) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(c.Regions))
	for key, r := range c.Regions {
		adj[key] = r.Adjacent
	}
	return adj
}

func normKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeRegion resolves a raw region label to a region key, falling back
// to the city table. It returns "" when neither resolves.
func (c *Country) NormalizeRegion(rawRegion, city string) string {
	if rawRegion != "" {
		if key, ok := c.RegionAliases[normKey(rawRegion)]; ok && key != "" {
			return key
		}
	}
	if city != "" {
		if key, ok := c.CityRegions[normKey(city)]; ok {
			return key
		}
	}
	return ""
}

// CityPoint returns approximate coordinates for a city. Cities without their
// own entry resolve through the city table to their region centroid.
func (c *Country) CityPoint(city string) (geo.Point, bool) {
	k := normKey(city)
	if k == "" {
		return geo.Point{}, false
	}
	if p, ok := c.CityCoords[k]; ok && len(p) == 2 {
		return geo.Point{Lat: p[0], Lng: p[1]}, true
	}
	if key, ok := c.CityRegions[k]; ok {
		if r, ok := c.Regions[key]; ok {
			return r.Centroid(), true
		}
	}
	return geo.Point{}, false
}

// RegionFromPoint assigns the region whose centroid is nearest to p.
func (c *Country) RegionFromPoint(p geo.Point) string {
	best := ""
	bestDist := 0.0
	for _, key := range c.keys {
		d := p.Distance(c.Regions[key].Centroid())
		if best == "" || d < bestDist {
			best, bestDist = key, d
		}
	}
	return best
}

// TotalPopulation sums the population of all regions.
func (c *Country) TotalPopulation() int {
	total := 0
	for _, r := range c.Regions {
		total += r.Population
	}
	return total
}
