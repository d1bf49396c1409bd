package handler

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"openmediamap/internal/submission/models"
)

var (
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// parseOptionalInt reads the leading integer of a form value, so "1925" and
// "1925abc" both yield 1925. Blank or non-numeric input yields nil.
func parseOptionalInt(raw string) *int {
	m := leadingInt.FindString(strings.TrimSpace(raw))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// parseOptionalFloat reads the leading decimal number of a form value.
// Blank, non-numeric and non-finite input yields nil.
func parseOptionalFloat(raw string) *float64 {
	m := leadingFloat.FindString(strings.TrimSpace(raw))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// parseCheckbox accepts the values browsers and scripts send for a ticked box.
func parseCheckbox(raw string) bool {
	switch raw {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}

type formValues interface {
	FormValue(key string) string
}

func draftFromForm(f formValues) models.Draft {
	return models.Draft{
		Caption:      f.FormValue("caption"),
		Source:       f.FormValue("source"),
		Photographer: f.FormValue("photographer"),
		Year:         parseOptionalInt(f.FormValue("year")),
		Month:        parseOptionalInt(f.FormValue("month")),
		Day:          parseOptionalInt(f.FormValue("day")),
		Estimated:    parseCheckbox(f.FormValue("estimated")),
		Lat:          parseOptionalFloat(f.FormValue("lat")),
		Lng:          parseOptionalFloat(f.FormValue("lng")),
		Notes:        f.FormValue("notes"),
	}
}
