package country

import (
	"os"
	"path/filepath"
	"testing"
)

func mustLoad(t *testing.T) *Country {
	t.Helper()
	c, err := Load(DefaultCountry)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c
}

func TestLoadGhana(t *testing.T) {
	c := mustLoad(t)
	if len(c.Regions) != 16 {
		t.Errorf("expected 16 regions, got %d", len(c.Regions))
	}
	r, ok := c.Region("northern")
	if !ok {
		t.Fatal("northern region missing")
	}
	if r.Capital != "Tamale" || r.Population != 2310939 {
		t.Errorf("unexpected northern metadata: %+v", r)
	}
	if r.Travel.Multiplier != 1.8 {
		t.Errorf("expected travel multiplier 1.8, got %v", r.Travel.Multiplier)
	}
	if r.Key != "northern" {
		t.Errorf("Key not populated: %q", r.Key)
	}
}

func TestLoadUnknownCountry(t *testing.T) {
	if _, err := Load("atlantis"); err == nil {
		t.Error("expected error for unknown country")
	}
}

func TestParseRejectsUnknownNeighbour(t *testing.T) {
	doc := []byte(`
name: x
regions:
  a: {display_name: A, population: 1, adjacent: [b]}
`)
	if _, err := Parse(doc); err == nil {
		t.Error("expected error for dangling adjacency")
	}
}

func TestNormalizeRegion(t *testing.T) {
	c := mustLoad(t)
	tests := []struct {
		raw, city, want string
	}{
		{"Greater Accra Region", "", "greater_accra"},
		{"  ASHANTI ", "", "ashanti"},
		{"Brong Ahafo", "", "bono"},
		{"Ghana", "Tamale", "northern"},
		{"", "Kumasi", "ashanti"},
		{"nowhere", "nowhere", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := c.NormalizeRegion(tt.raw, tt.city); got != tt.want {
			t.Errorf("NormalizeRegion(%q, %q) = %q, want %q", tt.raw, tt.city, got, tt.want)
		}
	}
}

func TestCityPoint(t *testing.T) {
	c := mustLoad(t)
	p, ok := c.CityPoint("Tamale")
	if !ok || p.Lat != 9.4008 {
		t.Errorf("CityPoint(Tamale) = %v, %v", p, ok)
	}
	// labone has no coordinates of its own but maps to greater_accra
	p, ok = c.CityPoint("labone")
	if !ok || p.Lat != 5.6037 {
		t.Errorf("CityPoint(labone) = %v, %v", p, ok)
	}
	if _, ok := c.CityPoint("atlantis"); ok {
		t.Error("unknown city should not resolve")
	}
}

func TestRegionFromPoint(t *testing.T) {
	c := mustLoad(t)
	tamale, _ := c.CityPoint("tamale")
	if got := c.RegionFromPoint(tamale); got != "northern" {
		t.Errorf("RegionFromPoint(tamale) = %q", got)
	}
}

func TestAdjacencyIsSymmetricEnough(t *testing.T) {
	c := mustLoad(t)
	adj := c.Adjacency()
	if len(adj["ashanti"]) != 7 {
		t.Errorf("ashanti should have 7 neighbours, got %d", len(adj["ashanti"]))
	}
}

func TestLoadIndicators(t *testing.T) {
	c := mustLoad(t)
	dir := t.TempDir()
	csvData := `ISO3,Location,SurveyYear,Indicator,Value
#country+code,#loc+name,#date+year,#indicator+name,#indicator+value
GHA,Northern (pre 2022),2014,Infant mortality rate,68
GHA,Northern (post 2022),2022,Infant mortality rate,45
GHA,"Northern, Upper West, Upper East",2022,Infant mortality rate,99
GHA,Greater Accra,2022,Infant mortality rate,not-a-number
GHA,Greater Accra,2022,Neonatal mortality rate,20
`
	if err := os.WriteFile(filepath.Join(dir, "child-mortality-rates_subnational_gha.csv"), []byte(csvData), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := c.LoadIndicators(dir)
	if err != nil {
		t.Fatalf("LoadIndicators() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 regions with indicators, got %d", n)
	}
	if got := c.Indicator("northern", "infant_mortality", 0); got != 45 {
		t.Errorf("expected latest infant mortality 45, got %v", got)
	}
	if got := c.Indicator("northern", SurveyYearKey, 0); got != 2022 {
		t.Errorf("expected survey year 2022, got %v", got)
	}
	if got := c.Indicator("greater_accra", "infant_mortality", 30); got != 30 {
		t.Errorf("unparseable value should fall back to default, got %v", got)
	}
	if got := c.Indicator("greater_accra", "neonatal_mortality", 0); got != 20 {
		t.Errorf("expected neonatal 20, got %v", got)
	}
}

func TestLoadIndicatorsMissingDir(t *testing.T) {
	c := mustLoad(t)
	n, err := c.LoadIndicators(filepath.Join(t.TempDir(), "absent"))
	if err != nil || n != 0 {
		t.Errorf("LoadIndicators(absent) = %d, %v", n, err)
	}
}
