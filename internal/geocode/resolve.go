package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sharckhai/neo-command/internal/country"
	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/ingest"
	"github.com/sharckhai/neo-command/internal/logger"
	"github.com/sharckhai/neo-command/internal/storage"
)

// Tier names the source of a resolved point.
type Tier string

const (
	TierSource  Tier = "source"
	TierCache   Tier = "cache"
	TierAddress Tier = "address"
	TierName    Tier = "name"
	TierCity    Tier = "city"
	TierRegion  Tier = "region"
)

// FlagRegionFromCoords marks an entity whose region was assigned from its
// coordinates.
const FlagRegionFromCoords = "region_from_coords"

// CacheEntry is one line of the geocode cache.
type CacheEntry struct {
	PK   string  `json:"pk_unique_id"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Tier Tier    `json:"tier"`
}

// Resolver runs the tiered lookup for entities of one country.
type Resolver struct {
	searcher Searcher
	country  *country.Country
}

// NewResolver creates a resolver. A nil searcher skips the network tiers.
func NewResolver(s Searcher, c *country.Country) *Resolver {
	return &Resolver{searcher: s, country: c}
}

// Resolve returns a point for e. Collaborator errors fall through to the
// next tier; ok is false only when every tier fails.
func (r *Resolver) Resolve(ctx context.Context, e *ingest.Entity) (geo.Point, Tier, bool) {
	countryName := r.country.DisplayName
	if r.searcher != nil && e.City != "" {
		queries := []struct {
			tier  Tier
			parts []string
		}{
			{TierAddress, []string{e.AddressLine1, e.City, countryName}},
			{TierName, []string{e.Name, e.City, countryName}},
		}
		for _, q := range queries {
			if q.parts[0] == "" {
				continue
			}
			query := strings.Join(q.parts, ", ")
			p, err := r.searcher.Search(ctx, query)
			if err == nil {
				return p, q.tier, true
			}
			if ctx.Err() != nil {
				break
			}
			logger.Debug("geocode tier failed", "pk", e.PK, "tier", q.tier, "error", err)
		}
	}

	if p, ok := r.country.CityPoint(e.City); ok {
		return p, TierCity, true
	}
	if reg, ok := r.country.Region(e.Region); ok {
		return reg.Centroid(), TierRegion, true
	}
	return geo.Point{}, "", false
}

// Stats summarizes a batch run.
type Stats struct {
	Total      int          `json:"total"`
	Resolved   int          `json:"resolved"`
	ByTier     map[Tier]int `json:"by_tier"`
	Unresolved int          `json:"unresolved"`
	Reassigned int          `json:"regions_from_coords"`
	Duration   string       `json:"duration"`
}

// Batch fills coordinates for every facility entity lacking them, using
// and extending the JSONL cache at cachePath. Entities with no resolved
// region get the region nearest their point.
func (r *Resolver) Batch(ctx context.Context, entities []*ingest.Entity, cachePath string) (Stats, error) {
	start := time.Now()
	stats := Stats{ByTier: make(map[Tier]int)}

	entries, err := storage.ReadJSONL[CacheEntry](cachePath)
	if err != nil {
		return stats, fmt.Errorf("reading geocode cache: %w", err)
	}
	cache := make(map[string]CacheEntry, len(entries))
	for _, ce := range entries {
		cache[ce.PK] = ce
	}

	for _, e := range entities {
		if e.IsNGO() {
			continue
		}
		stats.Total++

		var p geo.Point
		var tier Tier
		switch ce, hit := cache[e.PK]; {
		case e.HasLocation():
			p, tier = geo.Point{Lat: *e.Lat, Lng: *e.Lng}, TierSource
		case hit:
			p, tier = geo.Point{Lat: ce.Lat, Lng: ce.Lng}, TierCache
		default:
			var ok bool
			p, tier, ok = r.Resolve(ctx, e)
			if !ok {
				stats.Unresolved++
				continue
			}
			if tier == TierAddress || tier == TierName {
				ce := CacheEntry{PK: e.PK, Lat: p.Lat, Lng: p.Lng, Tier: tier}
				cache[e.PK] = ce
				if err := storage.AppendJSONL(cachePath, ce); err != nil {
					return stats, fmt.Errorf("writing geocode cache: %w", err)
				}
			}
		}

		lat, lng := p.Lat, p.Lng
		e.Lat, e.Lng = &lat, &lng
		stats.Resolved++
		stats.ByTier[tier]++

		if e.Region == "" {
			if key := r.country.RegionFromPoint(p); key != "" {
				e.Region = key
				replaceFlag(e, ingest.FlagUnmappedRegion, FlagRegionFromCoords)
				stats.Reassigned++
			}
		}
	}

	stats.Duration = time.Since(start).Round(time.Millisecond).String()
	logger.Info("geocoding complete",
		"resolved", stats.Resolved,
		"total", stats.Total,
		"unresolved", stats.Unresolved,
		"regions_from_coords", stats.Reassigned,
	)
	return stats, nil
}

func replaceFlag(e *ingest.Entity, old, repl string) {
	out := e.QualityFlags[:0:0]
	for _, f := range e.QualityFlags {
		if f != old {
			out = append(out, f)
		}
	}
	e.QualityFlags = append(out, repl)
}
