package models

import (
	"fmt"
	"strconv"
	"time"

	dErrors "openmediamap/pkg/domain-errors"
)

const (
	MinYear = 0
	MaxYear = 3000
)

// FlexibleDate is a partially known calendar date: year only, year and month,
// or a full date, optionally marked as an estimate.
//
// Day is only range-checked against 1..31; month lengths are not enforced.
type FlexibleDate struct {
	Year      *int `json:"year"`
	Month     *int `json:"month"`
	Day       *int `json:"day"`
	Estimated bool `json:"estimated"`
}

// Validate enforces field ranges and the year > month > day dependency.
func (d FlexibleDate) Validate() error {
	if d.Year != nil && (*d.Year < MinYear || *d.Year > MaxYear) {
		return dErrors.New(dErrors.CodeInvariantViolation, "Invalid year")
	}
	if d.Month != nil && (*d.Month < 1 || *d.Month > 12) {
		return dErrors.New(dErrors.CodeInvariantViolation, "Invalid month")
	}
	if d.Day != nil && (*d.Day < 1 || *d.Day > 31) {
		return dErrors.New(dErrors.CodeInvariantViolation, "Invalid day")
	}
	if d.Month != nil && d.Year == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "month requires year")
	}
	if d.Day != nil && d.Month == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "day requires month")
	}
	return nil
}

// Format renders the date for display, e.g. "c. June 1925" or "Unknown".
func (d FlexibleDate) Format() string {
	if d.Year == nil {
		return "Unknown"
	}

	var out string
	switch {
	case d.Month == nil:
		out = strconv.Itoa(*d.Year)
	case d.Day == nil:
		out = fmt.Sprintf("%s %d", monthName(*d.Month), *d.Year)
	default:
		out = fmt.Sprintf("%s %d, %d", monthName(*d.Month), *d.Day, *d.Year)
	}

	if d.Estimated {
		return "c. " + out
	}
	return out
}

func (d FlexibleDate) String() string {
	return d.Format()
}

func monthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return time.Month(month).String()
}
