package country

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DHS subnational datasets read by LoadIndicators.
var dhsFiles = []string{
	"child-mortality-rates_subnational_gha.csv",
	"immunization_subnational_gha.csv",
	"anemia_subnational_gha.csv",
	"health-insurance_subnational_gha.csv",
	"fertility-rates_subnational_gha.csv",
	"access-to-health-care_subnational_gha.csv",
}

// indicatorKeys maps DHS indicator labels to the short keys used in queries.
var indicatorKeys = map[string]string{
	"Under-5 mortality rate":                             "under5_mortality",
	"Infant mortality rate":                              "infant_mortality",
	"Neonatal mortality rate":                            "neonatal_mortality",
	"Fully vaccinated (8 basic antigens)":                "fully_vaccinated_pct",
	"DPT 3 vaccination received":                         "dpt3_pct",
	"Measles vaccination received":                       "measles_pct",
	"Children with any anemia":                           "child_anemia_pct",
	"Women with any anemia":                              "women_anemia_pct",
	"No health insurance [Women]":                        "no_insurance_women_pct",
	"No health insurance [Men]":                          "no_insurance_men_pct",
	"Total fertility rate 15-49":                         "total_fertility_rate",
	"Delivery by cesarean section":                       "cesarean_pct",
	"Place of delivery: Health facility":                 "facility_delivery_pct",
	"Antenatal care from a skilled provider":             "skilled_antenatal_pct",
	"Assistance during delivery from a skilled provider": "skilled_delivery_pct",
}

// SurveyYearKey records the most recent survey year seen for a region.
const SurveyYearKey = "survey_year"

type observation struct {
	year  int
	value float64
}

// LoadIndicators reads the DHS subnational CSVs found in dir into
// c.Indicators. Missing files are skipped. It returns the number of regions
// that received at least one indicator.
func (c *Country) LoadIndicators(dir string) (int, error) {
	best := make(map[[2]string]observation)
	for _, name := range dhsFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("opening %s: %w", name, err)
		}
		err = c.readDHS(f, best)
		f.Close()
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", name, err)
		}
	}

	for k, obs := range best {
		region, label := k[0], k[1]
		short, ok := indicatorKeys[label]
		if !ok {
			continue
		}
		m := c.Indicators[region]
		if m == nil {
			m = make(map[string]float64)
			c.Indicators[region] = m
		}
		m[short] = obs.value
		if float64(obs.year) > m[SurveyYearKey] {
			m[SurveyYearKey] = float64(obs.year)
		}
	}
	return len(c.Indicators), nil
}

// readDHS keeps the latest (year, value) per (region, indicator). Rows whose
// ISO3 column starts with '#' are HXL tag rows.
func (c *Country) readDHS(r io.Reader, best map[[2]string]observation) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.HasPrefix(get(rec, "ISO3"), "#") {
			continue
		}
		region := c.DHSLocations[normKey(get(rec, "Location"))]
		if region == "" {
			continue
		}
		year, err := strconv.Atoi(get(rec, "SurveyYear"))
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(get(rec, "Value"), 64)
		if err != nil {
			continue
		}
		key := [2]string{region, get(rec, "Indicator")}
		if prev, ok := best[key]; !ok || year > prev.year {
			best[key] = observation{year: year, value: value}
		}
	}
}

// Indicator returns a health indicator for a region, or def when absent.
func (c *Country) Indicator(region, key string, def float64) float64 {
	if m, ok := c.Indicators[region]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return def
}
