// Package ingest loads raw facility rows and merges duplicates into
// canonical entities.
package ingest

import "strings"

// Quality flags recorded on entities during parsing.
const (
	FlagUnmappedRegion = "unmapped_region"
	flagMalformedList  = "malformed_list:"
	flagBadNumber      = "bad_number:"
)

// Entity is one facility or NGO after parsing. After deduplication it is
// the canonical record for its PK.
type Entity struct {
	PK               string   `json:"pk_unique_id"`
	Name             string   `json:"name"`
	SourceURLs       []string `json:"source_urls,omitempty"`
	OrganizationType string   `json:"organization_type,omitempty"`

	Specialties        []string `json:"specialties,omitempty"`
	Procedures         []string `json:"procedure,omitempty"`
	Equipment          []string `json:"equipment,omitempty"`
	Capabilities       []string `json:"capability,omitempty"`
	PhoneNumbers       []string `json:"phone_numbers,omitempty"`
	Websites           []string `json:"websites,omitempty"`
	AffiliationTypeIDs []string `json:"affiliation_type_ids,omitempty"`
	Countries          []string `json:"countries,omitempty"`

	Email            string   `json:"email,omitempty"`
	OfficialWebsite  string   `json:"official_website,omitempty"`
	YearEstablished  *int     `json:"year_established,omitempty"`
	AddressLine1     string   `json:"address_line1,omitempty"`
	City             string   `json:"address_city,omitempty"`
	RawRegion        string   `json:"address_state_or_region,omitempty"`
	AddressCountry   string   `json:"address_country,omitempty"`
	FacilityType     string   `json:"facility_type,omitempty"`
	OperatorType     string   `json:"operator_type,omitempty"`
	Description      string   `json:"description,omitempty"`
	Area             *float64 `json:"area,omitempty"`
	NumberDoctors    *int     `json:"number_doctors,omitempty"`
	Capacity         *int     `json:"capacity,omitempty"`
	MissionStatement string   `json:"mission_statement,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`

	// Region is the normalized region key, empty when unresolved.
	Region       string   `json:"region,omitempty"`
	SourceCount  int      `json:"source_count"`
	QualityFlags []string `json:"quality_flags,omitempty"`
}

// IsNGO reports whether the entity is an NGO rather than a facility.
func (e *Entity) IsNGO() bool {
	return strings.EqualFold(strings.TrimSpace(e.OrganizationType), "ngo")
}

// HasLocation reports whether coordinates are set.
func (e *Entity) HasLocation() bool {
	return e.Lat != nil && e.Lng != nil
}

func (e *Entity) flag(f string) {
	for _, existing := range e.QualityFlags {
		if existing == f {
			return
		}
	}
	e.QualityFlags = append(e.QualityFlags, f)
}

func (e *Entity) unflag(f string) {
	out := e.QualityFlags[:0]
	for _, existing := range e.QualityFlags {
		if existing != f {
			out = append(out, existing)
		}
	}
	e.QualityFlags = out
	if len(out) == 0 {
		e.QualityFlags = nil
	}
}
