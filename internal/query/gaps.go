package query

import (
	"sort"

	"github.com/sharckhai/neo-command/internal/desert"
	"github.com/sharckhai/neo-command/internal/geo"
	"github.com/sharckhai/neo-command/internal/graph"
	"github.com/sharckhai/neo-command/internal/inference"
)

// DefaultColdSpotRadiusKm is the default acceptable distance to a provider.
const DefaultColdSpotRadiusKm = 100.0

// Sort key for cold spots with no provider at all.
const unreachableKm = 99999.0

// ColdSpot is a region whose centroid is farther than the radius from any
// facility offering the service.
type ColdSpot struct {
	Region            string   `json:"region"`
	RegionName        string   `json:"region_name"`
	Population        int      `json:"population"`
	NearestFacilityKm *float64 `json:"nearest_facility_km"`
	NearestFacility   string   `json:"nearest_facility,omitempty"`
	NearestName       string   `json:"nearest_facility_name,omitempty"`
	OvershootKm       float64  `json:"overshoot_km"`
	Severity          float64  `json:"severity"`
}

// ColdSpotResult is the result of ColdSpots.
type ColdSpotResult struct {
	Capability     string     `json:"capability,omitempty"`
	Specialty      string     `json:"specialty,omitempty"`
	RadiusKm       float64    `json:"radius_km"`
	Providers      int        `json:"providers_with_location"`
	CoveredRegions int        `json:"covered_regions"`
	ColdSpots      []ColdSpot `json:"cold_spots"`
}

// ColdSpots finds, for every region centroid, the nearest located facility
// offering the capability or specialty. Regions beyond radiusKm are cold
// spots with severity = population in millions x (1 + overshoot / radius).
// With populationWeighted unset they are ordered by distance instead,
// regions with no provider first.
func (e *Engine) ColdSpots(capability, specialty string, radiusKm float64, populationWeighted bool) (*ColdSpotResult, error) {
	if capability == "" && specialty == "" {
		return nil, missing("capability or specialty")
	}
	if radiusKm <= 0 {
		radiusKm = DefaultColdSpotRadiusKm
	}

	type provider struct {
		id, name string
		p        geo.Point
	}
	var providers []provider
	for _, n := range e.g.Nodes(graph.NodeFacility) {
		fa := n.Facility
		if !fa.HasLocation() {
			continue
		}
		ok := false
		if capability != "" {
			_, ok = e.hasEdge(n.ID, graph.CapabilityID(capability), graph.HasCapability, 0)
		}
		if !ok && specialty != "" {
			_, ok = e.hasEdge(n.ID, graph.SpecialtyID(specialty), graph.HasSpecialty, 0)
		}
		if ok {
			providers = append(providers, provider{n.ID, fa.Name, geo.Point{Lat: *fa.Lat, Lng: *fa.Lng}})
		}
	}

	res := &ColdSpotResult{
		Capability: capability,
		Specialty:  specialty,
		RadiusKm:   radiusKm,
		Providers:  len(providers),
		ColdSpots:  []ColdSpot{},
	}
	for _, r := range e.g.Nodes(graph.NodeRegion) {
		ra := r.Region
		centroid := geo.Point{Lat: ra.Lat, Lng: ra.Lng}
		cs := ColdSpot{Region: graph.KeyOf(r.ID), RegionName: ra.Name, Population: ra.Population}

		best := -1.0
		for _, p := range providers {
			if d := centroid.Distance(p.p); best < 0 || d < best {
				best = d
				cs.NearestFacility, cs.NearestName = p.id, p.name
			}
		}
		if best >= 0 && best <= radiusKm {
			res.CoveredRegions++
			continue
		}
		overshoot := radiusKm
		if best >= 0 {
			d := geo.Round(best, 1)
			cs.NearestFacilityKm = &d
			overshoot = best - radiusKm
		}
		cs.OvershootKm = geo.Round(overshoot, 1)
		cs.Severity = geo.Round(float64(ra.Population)/1e6*(1+overshoot/radiusKm), 2)
		res.ColdSpots = append(res.ColdSpots, cs)
	}

	if populationWeighted {
		sort.SliceStable(res.ColdSpots, func(i, j int) bool { return res.ColdSpots[i].Severity > res.ColdSpots[j].Severity })
	} else {
		dist := func(c ColdSpot) float64 {
			if c.NearestFacilityKm == nil {
				return unreachableKm
			}
			return *c.NearestFacilityKm
		}
		sort.SliceStable(res.ColdSpots, func(i, j int) bool { return dist(res.ColdSpots[i]) > dist(res.ColdSpots[j]) })
	}
	return res, nil
}

// DesertsForSpecialty lists the regions that are deserts for a specialty,
// worst first.
func (e *Engine) DesertsForSpecialty(specialty string) ([]desert.Desert, error) {
	if specialty == "" {
		return nil, missing("specialty")
	}
	out := desert.List(e.g, specialty)
	if out == nil {
		out = []desert.Desert{}
	}
	return out, nil
}

// Upgrade is one facility that could support a capability.
type Upgrade struct {
	FacilityRef
	Readiness float64  `json:"readiness_score"`
	Existing  []string `json:"existing_equipment"`
	Missing   []string `json:"missing_equipment"`
}

// CouldSupport lists facilities with a COULD_SUPPORT edge to the capability
// at or above minReadiness, most ready first.
func (e *Engine) CouldSupport(capability string, minReadiness float64) ([]Upgrade, error) {
	if capability == "" {
		return nil, missing("capability")
	}
	out := []Upgrade{}
	for _, ed := range e.g.In(graph.CapabilityID(capability), graph.CouldSupport) {
		n, ok := e.g.Node(ed.From)
		if !ok || ed.Support == nil || ed.Support.Readiness < minReadiness-1e-9 {
			continue
		}
		out = append(out, Upgrade{
			FacilityRef: ref(n),
			Readiness:   ed.Support.Readiness,
			Existing:    ed.Support.Existing,
			Missing:     ed.Support.Missing,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Readiness > out[j].Readiness })
	return out, nil
}

// DefaultCouldSupportReadiness is the default CouldSupport filter.
const DefaultCouldSupportReadiness = inference.DefaultMinReadiness

// RegionSpecialty is one region's standing for a specialty.
type RegionSpecialty struct {
	Region        string        `json:"region"`
	RegionName    string        `json:"region_name"`
	Population    int           `json:"population"`
	FacilityCount int           `json:"facility_count"`
	Facilities    []FacilityRef `json:"facilities"`
	IsDesert      bool          `json:"is_desert"`
}

// RegionalComparison ranks every region by the number of facilities with
// the specialty at confidence 0.5 or more.
func (e *Engine) RegionalComparison(specialty string) ([]RegionSpecialty, error) {
	if specialty == "" {
		return nil, missing("specialty")
	}
	sid := graph.SpecialtyID(specialty)
	var out []RegionSpecialty
	for _, r := range e.g.Nodes(graph.NodeRegion) {
		rs := RegionSpecialty{
			Region:     graph.KeyOf(r.ID),
			RegionName: r.Region.Name,
			Population: r.Region.Population,
			Facilities: []FacilityRef{},
			IsDesert:   e.g.FindEdge(r.ID, sid, graph.DesertFor) != nil,
		}
		for _, f := range e.regionFacilities(rs.Region) {
			if _, ok := e.hasEdge(f.ID, sid, graph.HasSpecialty, DefaultMinConfidence); ok {
				rs.Facilities = append(rs.Facilities, ref(f))
			}
		}
		rs.FacilityCount = len(rs.Facilities)
		out = append(out, rs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FacilityCount > out[j].FacilityCount })
	return out, nil
}

// NGORegion summarizes NGO presence in one region.
type NGORegion struct {
	Region        string   `json:"region"`
	RegionName    string   `json:"region_name"`
	Population    int      `json:"population"`
	FacilityCount int      `json:"facility_count"`
	NGOCount      int      `json:"ngo_count"`
	NGOs          []string `json:"ngos,omitempty"`
	DesertCount   int      `json:"desert_count"`
}

// NGOGapsResult is the result of NGOGaps.
type NGOGapsResult struct {
	Uncovered []NGORegion `json:"regions_without_ngos"`
	Overlap   []NGORegion `json:"regions_with_multiple_ngos"`
	Regions   []NGORegion `json:"regions"`
}

// NGOGaps reports NGO presence per region. Regions without any NGO are
// ordered by desert count then population, the most in need first.
func (e *Engine) NGOGaps() *NGOGapsResult {
	res := &NGOGapsResult{Uncovered: []NGORegion{}, Overlap: []NGORegion{}}
	for _, r := range e.g.Nodes(graph.NodeRegion) {
		nr := NGORegion{
			Region:        graph.KeyOf(r.ID),
			RegionName:    r.Region.Name,
			Population:    r.Region.Population,
			FacilityCount: len(e.regionFacilities(graph.KeyOf(r.ID))),
			DesertCount:   len(e.g.Out(r.ID, graph.DesertFor)),
		}
		for _, ed := range e.g.In(r.ID, graph.OperatesIn) {
			nr.NGOs = append(nr.NGOs, e.displayName(ed.From))
		}
		nr.NGOCount = len(nr.NGOs)
		res.Regions = append(res.Regions, nr)
		switch {
		case nr.NGOCount == 0:
			res.Uncovered = append(res.Uncovered, nr)
		case nr.NGOCount > 1:
			res.Overlap = append(res.Overlap, nr)
		}
	}
	sort.SliceStable(res.Uncovered, func(i, j int) bool {
		a, b := res.Uncovered[i], res.Uncovered[j]
		if a.DesertCount != b.DesertCount {
			return a.DesertCount > b.DesertCount
		}
		return a.Population > b.Population
	})
	sort.SliceStable(res.Overlap, func(i, j int) bool { return res.Overlap[i].NGOCount > res.Overlap[j].NGOCount })
	return res
}

// Compliance is the equipment compliance of one capability.
type Compliance struct {
	Capability        string  `json:"capability"`
	Display           string  `json:"display_name"`
	Claiming          int     `json:"facilities_claiming"`
	FullyEquipped     int     `json:"fully_equipped"`
	CompliancePct     float64 `json:"compliance_pct"`
	AverageCompliance float64 `json:"average_compliance"`
}

// ComplianceResult is the result of EquipmentCompliance.
type ComplianceResult struct {
	Region       string       `json:"region,omitempty"`
	Capabilities []Compliance `json:"capabilities"`
}

// EquipmentCompliance reports, per capability with requirements, the share
// of claiming facilities that hold every required item. Least compliant
// capabilities come first.
func (e *Engine) EquipmentCompliance(capability, region string) (*ComplianceResult, error) {
	caps := e.reqs.Capabilities()
	if capability != "" {
		if _, ok := e.reqs.Get(capability); !ok {
			return nil, notFound("capability requirements for", capability)
		}
		caps = []string{capability}
	}
	region = e.normRegionFilter(region)

	res := &ComplianceResult{Region: region, Capabilities: []Compliance{}}
	for _, c := range caps {
		required := e.reqs.Required(c)
		comp := Compliance{Capability: c, Display: e.displayName(graph.CapabilityID(c))}
		sum := 0.0
		seen := make(map[string]bool)
		for _, ed := range e.g.In(graph.CapabilityID(c), graph.HasCapability) {
			if seen[ed.From] {
				continue
			}
			seen[ed.From] = true
			f := e.g.Facility(ed.From)
			if f == nil || !inRegion(f, region) {
				continue
			}
			cmp := e.compare(ed.From, required)
			comp.Claiming++
			sum += cmp.Compliance
			if len(cmp.MissingRequired) == 0 {
				comp.FullyEquipped++
			}
		}
		if comp.Claiming == 0 && capability == "" {
			continue
		}
		comp.CompliancePct = percent(comp.FullyEquipped, comp.Claiming)
		if comp.Claiming > 0 {
			comp.AverageCompliance = geo.Round(sum/float64(comp.Claiming), 3)
		}
		res.Capabilities = append(res.Capabilities, comp)
	}
	sort.SliceStable(res.Capabilities, func(i, j int) bool {
		return res.Capabilities[i].CompliancePct < res.Capabilities[j].CompliancePct
	})
	return res, nil
}
