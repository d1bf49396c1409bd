package models

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "openmediamap/pkg/domain-errors"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}

	_, err := ParseStatus("archived")
	assert.Error(t, err)
	st, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, st)
}

func TestFlexibleDateFormat(t *testing.T) {
	tests := []struct {
		name string
		date FlexibleDate
		want string
	}{
		{"year only estimated", FlexibleDate{Year: intPtr(1925), Estimated: true}, "c. 1925"},
		{"year only exact", FlexibleDate{Year: intPtr(1925)}, "1925"},
		{"year and month estimated", FlexibleDate{Year: intPtr(1925), Month: intPtr(6), Estimated: true}, "c. June 1925"},
		{"year and month exact", FlexibleDate{Year: intPtr(1925), Month: intPtr(6)}, "June 1925"},
		{"full date", FlexibleDate{Year: intPtr(1904), Month: intPtr(2), Day: intPtr(7)}, "February 7, 1904"},
		{"full date estimated", FlexibleDate{Year: intPtr(1904), Month: intPtr(2), Day: intPtr(7), Estimated: true}, "c. February 7, 1904"},
		{"no year", FlexibleDate{}, "Unknown"},
		{"no year ignores estimate", FlexibleDate{Estimated: true}, "Unknown"},
		{"year zero is a year", FlexibleDate{Year: intPtr(0)}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.date.Format())
		})
	}
}

func TestFlexibleDateValidate(t *testing.T) {
	tests := []struct {
		name    string
		date    FlexibleDate
		wantErr string
	}{
		{"empty is valid", FlexibleDate{}, ""},
		{"year bounds low", FlexibleDate{Year: intPtr(0)}, ""},
		{"year bounds high", FlexibleDate{Year: intPtr(3000)}, ""},
		{"year too high", FlexibleDate{Year: intPtr(3001)}, "Invalid year"},
		{"negative year", FlexibleDate{Year: intPtr(-1)}, "Invalid year"},
		{"month zero", FlexibleDate{Year: intPtr(1900), Month: intPtr(0)}, "Invalid month"},
		{"month thirteen", FlexibleDate{Year: intPtr(1900), Month: intPtr(13)}, "Invalid month"},
		{"day thirty two", FlexibleDate{Year: intPtr(1900), Month: intPtr(1), Day: intPtr(32)}, "Invalid day"},
		{"february thirty one is accepted", FlexibleDate{Year: intPtr(1900), Month: intPtr(2), Day: intPtr(31)}, ""},
		{"month without year", FlexibleDate{Month: intPtr(5)}, "month requires year"},
		{"day without month", FlexibleDate{Year: intPtr(1900), Day: intPtr(5)}, "day requires month"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.date.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng *float64
		want     bool
	}{
		{"latitude above range", floatPtr(91), floatPtr(0), false},
		{"longitude above range", floatPtr(0), floatPtr(181), false},
		{"latitude below range", floatPtr(-91), floatPtr(0), false},
		{"valid point", floatPtr(39.5), floatPtr(-76.7), true},
		{"range edges", floatPtr(-90), floatPtr(180), true},
		{"missing latitude", nil, floatPtr(10), false},
		{"missing longitude", floatPtr(10), nil, false},
		{"not a number", floatPtr(math.NaN()), floatPtr(0), false},
		{"infinite", floatPtr(0), floatPtr(math.Inf(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, ok := NormalizeLocation(tt.lat, tt.lng)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				require.NotNil(t, loc)
				assert.Equal(t, *tt.lat, loc.Lat)
				assert.Equal(t, *tt.lng, loc.Lng)
			} else {
				assert.Nil(t, loc)
			}
		})
	}
}

func TestNewSubmission(t *testing.T) {
	t.Run("normalises a full draft into a pending record", func(t *testing.T) {
		sub, err := NewSubmission(Draft{
			Caption:      "  Harbor at dusk ",
			Source:       "City Archive",
			Photographer: "   ",
			Year:         intPtr(1904),
			Lat:          floatPtr(39.29),
			Lng:          floatPtr(-76.61),
			Notes:        strings.Repeat("n", MaxNotesLen+10),
		}, "archivist")
		require.NoError(t, err)

		assert.Equal(t, "Harbor at dusk", sub.Caption)
		assert.Equal(t, StatusPending, sub.Status)
		assert.False(t, sub.Deleted)
		assert.True(t, sub.HasLocation)
		assert.Nil(t, sub.Photographer)
		require.NotNil(t, sub.Notes)
		assert.Len(t, *sub.Notes, MaxNotesLen)
		assert.Equal(t, "archivist", sub.OwnerID)
		assert.True(t, sub.IsPending())
		assert.False(t, sub.IsPublic())
	})

	t.Run("caption and source are required", func(t *testing.T) {
		_, err := NewSubmission(Draft{Caption: " ", Source: "City Archive"}, "u")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewSubmission(Draft{Caption: "Caption", Source: ""}, "u")
		require.Error(t, err)
	})

	t.Run("invalid coordinates are dropped, not rejected", func(t *testing.T) {
		sub, err := NewSubmission(Draft{Caption: "c", Source: "s", Lat: floatPtr(91), Lng: floatPtr(0)}, "u")
		require.NoError(t, err)
		assert.False(t, sub.HasLocation)
		assert.Nil(t, sub.Location)
	})

	t.Run("invalid date is rejected", func(t *testing.T) {
		_, err := NewSubmission(Draft{Caption: "c", Source: "s", Year: intPtr(1900), Month: intPtr(14)}, "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid month")
	})
}

func TestSoftDeleteRules(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := &Submission{ID: 1, Caption: "c", Source: "s", Status: StatusApproved}

	require.NoError(t, sub.CanSoftDelete())
	sub.ApplySoftDelete("  ", now)

	assert.True(t, sub.Deleted)
	assert.Equal(t, StatusApproved, sub.Status)
	require.NotNil(t, sub.DeleteReason)
	assert.Equal(t, DefaultDeleteReason, *sub.DeleteReason)
	assert.Equal(t, now, *sub.DeletedAt)

	assert.Error(t, sub.CanSoftDelete())
	assert.Error(t, sub.CanTransition(StatusPending, StatusApproved))
}

func TestNormalizeDeleteReason(t *testing.T) {
	assert.Equal(t, DefaultDeleteReason, NormalizeDeleteReason(""))
	assert.Equal(t, "duplicate entry", NormalizeDeleteReason(" duplicate entry "))
	assert.Len(t, NormalizeDeleteReason(strings.Repeat("r", 900)), MaxDeleteReasonLen)
}
