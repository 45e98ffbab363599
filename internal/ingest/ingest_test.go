package ingest

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sharckhai/neo-command/internal/country"
)

func mustCountry(t *testing.T) *country.Country {
	t.Helper()
	c, err := country.Load("ghana")
	if err != nil {
		t.Fatalf("country.Load() error = %v", err)
	}
	return c
}

func TestParseList(t *testing.T) {
	tests := []struct {
		in     string
		want   []string
		wantOK bool
	}{
		{"", nil, true},
		{"null", nil, true},
		{"[]", nil, true},
		{`["MRI", " X-ray ", "", null]`, []string{"MRI", "X-ray"}, true},
		{`[1, 2]`, []string{"1", "2"}, true},
		{`["unterminated`, nil, false},
		{`{"a": 1}`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseList(tt.in)
			if ok != tt.wantOK || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseList(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		set    bool
		wantOK bool
	}{
		{"12", 12, true, true},
		{"12.0", 12, true, true},
		{"null", 0, false, true},
		{"", 0, false, true},
		{"twelve", 0, false, false},
		{"NaN", 0, false, false},
		{"Inf", 0, false, false},
		{"-inf", 0, false, false},
		{"1e30", 0, false, false},
		{"-1e30", 0, false, false},
	}
	for _, tt := range tests {
		got, ok := parseInt(tt.in)
		if ok != tt.wantOK || (got != nil) != tt.set || (got != nil && *got != tt.want) {
			t.Errorf("parseInt(%q) = %v, %v", tt.in, got, ok)
		}
	}
}

func TestParseFloat(t *testing.T) {
	for _, in := range []string{"NaN", "nan", "Inf", "+Inf", "-Infinity", "1e999"} {
		if got, ok := parseFloat(in); ok || got != nil {
			t.Errorf("parseFloat(%q) = %v, %v, want rejected", in, got, ok)
		}
	}
	got, ok := parseFloat(" 9.4 ")
	if !ok || got == nil || *got != 9.4 {
		t.Errorf("parseFloat(9.4) = %v, %v", got, ok)
	}
}

const sampleCSV = `pk_unique_id,name,source_url,organization_type,specialties,equipment,capability,procedure,address_city,address_stateOrRegion,capacity,latitude,longitude
f1,Tamale Teaching Hospital,https://a.example,facility,"[""Surgery""]","[""MRI""]","[]","[""Caesarean section""]",Tamale,Northern,300,9.4,-0.85
f1,Tamale Teaching Hospital,https://b.example,facility,"[""surgery"", ""Pediatrics""]","[""mri"", ""X-ray""]",null,[],Tamale,,abc,,
f2,Unmapped Clinic,,facility,not-json,[],[],[],Nowhere,Atlantis,12.0,,
n1,Helping Hands,https://c.example,ngo,[],[],[],[],Accra,,,,
,No Key Clinic,,facility,[],[],[],[],,,,,
`

func TestReadCSV(t *testing.T) {
	rows, stats, err := ReadCSV(strings.NewReader(sampleCSV), mustCountry(t))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if stats.Rows != 5 || stats.SkippedNoPK != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	first := rows[0]
	if first.Region != "northern" || first.Capacity == nil || *first.Capacity != 300 || !first.HasLocation() {
		t.Errorf("unexpected first row %+v", first)
	}

	second := rows[1]
	if second.Capacity != nil {
		t.Error("unparseable capacity should be unset")
	}
	if !hasFlag(second, "bad_number:capacity") {
		t.Errorf("flags = %v, want bad_number:capacity", second.QualityFlags)
	}
	if second.Region != "northern" {
		t.Errorf("city fallback should resolve region, got %q", second.Region)
	}

	clinic := rows[2]
	if clinic.Region != "" || !hasFlag(clinic, FlagUnmappedRegion) || !hasFlag(clinic, "malformed_list:specialties") {
		t.Errorf("unexpected clinic %+v", clinic)
	}
	if clinic.Capacity == nil || *clinic.Capacity != 12 {
		t.Errorf("float text capacity should parse, got %v", clinic.Capacity)
	}

	if !rows[3].IsNGO() || rows[3].Region != "greater_accra" {
		t.Errorf("unexpected NGO row %+v", rows[3])
	}
}

func TestReadCSVFlagsNonFiniteNumbers(t *testing.T) {
	in := `pk_unique_id,name,organization_type,address_stateOrRegion,capacity,latitude,longitude
f9,Odd Clinic,facility,Northern,1e30,NaN,Inf
`
	rows, _, err := ReadCSV(strings.NewReader(in), mustCountry(t))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	e := rows[0]
	if e.Capacity != nil || e.Lat != nil || e.Lng != nil {
		t.Errorf("non-finite numbers should be unset, got %+v", e)
	}
	for _, f := range []string{"bad_number:capacity", "bad_number:latitude", "bad_number:longitude"} {
		if !hasFlag(e, f) {
			t.Errorf("flags = %v, want %s", e.QualityFlags, f)
		}
	}
}

func TestReadCSVRequiresHeader(t *testing.T) {
	if _, _, err := ReadCSV(strings.NewReader(""), mustCountry(t)); err == nil {
		t.Error("expected error for empty input")
	}
	if _, _, err := ReadCSV(strings.NewReader("name,city\nx,y\n"), mustCountry(t)); err == nil {
		t.Error("expected error without pk column")
	}
}

func TestDeduplicateUnionLaw(t *testing.T) {
	rows := []*Entity{
		{PK: "a", Name: "Unknown", Equipment: []string{"MRI"}, SourceURLs: []string{"u1"}},
		{PK: "a", Name: "Clinic A", Equipment: []string{"mri", "X-ray"}, SourceURLs: []string{"u2"}},
	}
	out, groups := Deduplicate(rows)
	if len(out) != 1 {
		t.Fatalf("got %d entities, want 1", len(out))
	}
	if want := []string{"MRI", "X-ray"}; !reflect.DeepEqual(out[0].Equipment, want) {
		t.Errorf("Equipment = %v, want %v", out[0].Equipment, want)
	}
	if out[0].SourceCount != 2 {
		t.Errorf("SourceCount = %d, want 2", out[0].SourceCount)
	}
	if out[0].Name != "Clinic A" {
		t.Errorf("Name = %q", out[0].Name)
	}
	if len(groups) != 1 || groups[0].Rows != 2 {
		t.Errorf("groups = %+v", groups)
	}
}

func TestDeduplicatePrefersResolvedRegion(t *testing.T) {
	cap1, cap2 := 10, 20
	rows := []*Entity{
		{PK: "a", Name: "A", Capacity: &cap1, QualityFlags: []string{FlagUnmappedRegion}},
		{PK: "a", Name: "A", Capacity: &cap2, Region: "ashanti", City: "Kumasi"},
	}
	out, _ := Deduplicate(rows)
	e := out[0]
	if e.Region != "ashanti" || e.City != "Kumasi" {
		t.Errorf("region/city = %q/%q", e.Region, e.City)
	}
	if *e.Capacity != 10 {
		t.Errorf("Capacity = %d, want first seen 10", *e.Capacity)
	}
	if hasFlag(e, FlagUnmappedRegion) {
		t.Error("resolved region should clear unmapped_region")
	}
	if e.SourceCount != 1 {
		t.Errorf("SourceCount = %d, want minimum 1", e.SourceCount)
	}
}

func TestDeduplicateSameSourceCountsOnce(t *testing.T) {
	rows := []*Entity{
		{PK: "a", SourceURLs: []string{"https://x"}},
		{PK: "a", SourceURLs: []string{"https://x"}},
		{PK: "b"},
	}
	out, groups := Deduplicate(rows)
	if out[0].SourceCount != 1 || out[1].PK != "b" {
		t.Errorf("unexpected output %+v", out)
	}
	if len(groups) != 1 || groups[0].PK != "a" {
		t.Errorf("groups = %+v", groups)
	}
}

func hasFlag(e *Entity, f string) bool {
	for _, x := range e.QualityFlags {
		if x == f {
			return true
		}
	}
	return false
}
