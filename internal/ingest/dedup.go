package ingest

import (
	"sort"
	"strings"
)

// DuplicateGroup describes the source rows merged into one entity.
type DuplicateGroup struct {
	PK         string   `json:"pk_unique_id"`
	Name       string   `json:"name"`
	Rows       int      `json:"rows"`
	SourceURLs []string `json:"source_urls"`
}

// Deduplicate merges rows sharing a primary key. List fields are unioned
// case-insensitively in first-seen order; scalar fields keep the first set
// value, except that a resolved region always replaces an unresolved one.
// Output order follows the first occurrence of each key.
func Deduplicate(rows []*Entity) ([]*Entity, []DuplicateGroup) {
	byPK := make(map[string]*Entity, len(rows))
	counts := make(map[string]int, len(rows))
	var order []string

	for _, row := range rows {
		if row.PK == "" {
			continue
		}
		counts[row.PK]++
		existing, ok := byPK[row.PK]
		if !ok {
			cp := *row
			cp.QualityFlags = append([]string(nil), row.QualityFlags...)
			byPK[row.PK] = &cp
			order = append(order, row.PK)
			continue
		}
		merge(existing, row)
	}

	out := make([]*Entity, 0, len(order))
	var groups []DuplicateGroup
	for _, pk := range order {
		e := byPK[pk]
		e.SourceCount = len(e.SourceURLs)
		if e.SourceCount == 0 {
			e.SourceCount = 1
		}
		if e.Region != "" {
			e.unflag(FlagUnmappedRegion)
		}
		out = append(out, e)
		if counts[pk] > 1 {
			groups = append(groups, DuplicateGroup{
				PK:         pk,
				Name:       e.Name,
				Rows:       counts[pk],
				SourceURLs: e.SourceURLs,
			})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Rows > groups[j].Rows })
	return out, groups
}

func merge(dst, src *Entity) {
	dst.SourceURLs = unionFold(dst.SourceURLs, src.SourceURLs)
	dst.Specialties = unionFold(dst.Specialties, src.Specialties)
	dst.Procedures = unionFold(dst.Procedures, src.Procedures)
	dst.Equipment = unionFold(dst.Equipment, src.Equipment)
	dst.Capabilities = unionFold(dst.Capabilities, src.Capabilities)
	dst.PhoneNumbers = unionFold(dst.PhoneNumbers, src.PhoneNumbers)
	dst.Websites = unionFold(dst.Websites, src.Websites)
	dst.AffiliationTypeIDs = unionFold(dst.AffiliationTypeIDs, src.AffiliationTypeIDs)
	dst.Countries = unionFold(dst.Countries, src.Countries)

	if dst.Name == "Unknown" && src.Name != "Unknown" {
		dst.Name = src.Name
	}
	firstString(&dst.OrganizationType, src.OrganizationType)
	firstString(&dst.Email, src.Email)
	firstString(&dst.OfficialWebsite, src.OfficialWebsite)
	firstString(&dst.AddressLine1, src.AddressLine1)
	firstString(&dst.City, src.City)
	firstString(&dst.RawRegion, src.RawRegion)
	firstString(&dst.AddressCountry, src.AddressCountry)
	firstString(&dst.FacilityType, src.FacilityType)
	firstString(&dst.OperatorType, src.OperatorType)
	firstString(&dst.Description, src.Description)
	firstString(&dst.MissionStatement, src.MissionStatement)
	firstString(&dst.Region, src.Region)

	firstPtr(&dst.YearEstablished, src.YearEstablished)
	firstPtr(&dst.NumberDoctors, src.NumberDoctors)
	firstPtr(&dst.Capacity, src.Capacity)
	firstPtr(&dst.Area, src.Area)
	if dst.Lat == nil && src.Lat != nil {
		dst.Lat, dst.Lng = src.Lat, src.Lng
	}

	for _, f := range src.QualityFlags {
		dst.flag(f)
	}
}

func firstString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func firstPtr[T any](dst **T, v *T) {
	if *dst == nil {
		*dst = v
	}
}

// unionFold appends the items of b not already in a, comparing
// case-insensitively. The first spelling seen is kept.
func unionFold(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			k := strings.ToLower(item)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
