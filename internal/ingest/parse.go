package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func isNullish(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "null"
}

// parseList decodes a JSON-encoded list column. Null-ish values yield an
// empty list; anything undecodable yields an empty list and ok=false.
func parseList(v string) (items []string, ok bool) {
	v = strings.TrimSpace(v)
	if isNullish(v) || v == "[]" {
		return nil, true
	}
	var raw []any
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return nil, false
	}
	for _, item := range raw {
		if item == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(item))
		if s != "" {
			items = append(items, s)
		}
	}
	return items, true
}

// parseInt accepts integer or float text ("12.0" is 12). Values outside
// the int range are rejected rather than wrapped.
func parseInt(v string) (*int, bool) {
	if isNullish(v) {
		return nil, true
	}
	f, ok := finite(v)
	if !ok || f < math.MinInt || f >= math.MaxInt {
		return nil, false
	}
	n := int(f)
	return &n, true
}

func parseFloat(v string) (*float64, bool) {
	if isNullish(v) {
		return nil, true
	}
	f, ok := finite(v)
	if !ok {
		return nil, false
	}
	return &f, true
}

// finite parses v as a float, refusing NaN and the infinities that
// strconv otherwise accepts.
func finite(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseString(v string) string {
	if isNullish(v) {
		return ""
	}
	return strings.TrimSpace(v)
}
