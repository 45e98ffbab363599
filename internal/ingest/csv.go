package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sharckhai/neo-command/internal/country"
)

// Column names of the facility CSV.
const (
	ColPK               = "pk_unique_id"
	ColName             = "name"
	ColSourceURL        = "source_url"
	ColOrganizationType = "organization_type"
	ColSpecialties      = "specialties"
	ColProcedure        = "procedure"
	ColEquipment        = "equipment"
	ColCapability       = "capability"
	ColPhoneNumbers     = "phone_numbers"
	ColWebsites         = "websites"
	ColAffiliations     = "affiliationTypeIds"
	ColCountries        = "countries"
	ColEmail            = "email"
	ColOfficialWebsite  = "officialWebsite"
	ColYearEstablished  = "yearEstablished"
	ColAddressLine1     = "address_line1"
	ColCity             = "address_city"
	ColRegion           = "address_stateOrRegion"
	ColAddressCountry   = "address_country"
	ColFacilityType     = "facilityTypeId"
	ColOperatorType     = "operatorTypeId"
	ColDescription      = "description"
	ColArea             = "area"
	ColNumberDoctors    = "numberDoctors"
	ColCapacity         = "capacity"
	ColMission          = "missionStatement"
	ColLatitude         = "latitude"
	ColLongitude        = "longitude"
)

// ErrMissingHeader is returned when the input has no header row or lacks
// the primary key column.
var ErrMissingHeader = errors.New("missing header")

// LoadStats summarizes a CSV load.
type LoadStats struct {
	Rows         int `json:"rows"`
	SkippedNoPK  int `json:"skipped_no_pk"`
	FlaggedRows  int `json:"flagged_rows"`
	UnmappedRows int `json:"unmapped_region_rows"`
}

// ReadCSVFile reads rows from a CSV file. See ReadCSV.
func ReadCSVFile(path string, c *country.Country) ([]*Entity, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, c)
}

// ReadCSV parses every data row into an Entity with its region normalized
// against c. Malformed values never fail the row; they are recorded as
// quality flags. Rows without a primary key are skipped and counted.
func ReadCSV(r io.Reader, c *country.Country) ([]*Entity, LoadStats, error) {
	var stats LoadStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, ErrMissingHeader
	}
	if err != nil {
		return nil, stats, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	if _, ok := cols[ColPK]; !ok {
		return nil, stats, fmt.Errorf("%w: no %s column", ErrMissingHeader, ColPK)
	}

	var out []*Entity
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, stats, fmt.Errorf("reading line %d: %w", line, err)
		}
		stats.Rows++

		get := func(col string) string {
			if i, ok := cols[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}

		e := parseRow(get, c)
		if e.PK == "" {
			stats.SkippedNoPK++
			continue
		}
		if len(e.QualityFlags) > 0 {
			stats.FlaggedRows++
		}
		if e.Region == "" {
			stats.UnmappedRows++
		}
		out = append(out, e)
	}
	return out, stats, nil
}

func parseRow(get func(string) string, c *country.Country) *Entity {
	e := &Entity{
		PK:               parseString(get(ColPK)),
		Name:             parseString(get(ColName)),
		OrganizationType: parseString(get(ColOrganizationType)),
		Email:            parseString(get(ColEmail)),
		OfficialWebsite:  parseString(get(ColOfficialWebsite)),
		AddressLine1:     parseString(get(ColAddressLine1)),
		City:             parseString(get(ColCity)),
		RawRegion:        parseString(get(ColRegion)),
		AddressCountry:   parseString(get(ColAddressCountry)),
		FacilityType:     parseString(get(ColFacilityType)),
		OperatorType:     parseString(get(ColOperatorType)),
		Description:      parseString(get(ColDescription)),
		MissionStatement: parseString(get(ColMission)),
		SourceCount:      1,
	}
	if e.Name == "" {
		e.Name = "Unknown"
	}
	if u := parseString(get(ColSourceURL)); u != "" {
		e.SourceURLs = []string{u}
	}

	lists := []struct {
		col string
		dst *[]string
	}{
		{ColSpecialties, &e.Specialties},
		{ColProcedure, &e.Procedures},
		{ColEquipment, &e.Equipment},
		{ColCapability, &e.Capabilities},
		{ColPhoneNumbers, &e.PhoneNumbers},
		{ColWebsites, &e.Websites},
		{ColAffiliations, &e.AffiliationTypeIDs},
		{ColCountries, &e.Countries},
	}
	for _, l := range lists {
		items, ok := parseList(get(l.col))
		if !ok {
			e.flag(flagMalformedList + l.col)
		}
		*l.dst = unionFold(nil, items)
	}

	ints := []struct {
		col string
		dst **int
	}{
		{ColYearEstablished, &e.YearEstablished},
		{ColNumberDoctors, &e.NumberDoctors},
		{ColCapacity, &e.Capacity},
	}
	for _, n := range ints {
		v, ok := parseInt(get(n.col))
		if !ok {
			e.flag(flagBadNumber + n.col)
		}
		*n.dst = v
	}

	floats := []struct {
		col string
		dst **float64
	}{
		{ColArea, &e.Area},
		{ColLatitude, &e.Lat},
		{ColLongitude, &e.Lng},
	}
	for _, n := range floats {
		v, ok := parseFloat(get(n.col))
		if !ok {
			e.flag(flagBadNumber + n.col)
		}
		*n.dst = v
	}
	if (e.Lat == nil) != (e.Lng == nil) {
		e.Lat, e.Lng = nil, nil
	}

	e.Region = c.NormalizeRegion(e.RawRegion, e.City)
	if e.Region == "" {
		e.flag(FlagUnmappedRegion)
	}
	return e
}
