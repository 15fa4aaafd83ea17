package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertArgs_NullsOptionalFields(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("WAT", 3600))
	args := insertArgs(subscription.Record{
		ID:     "abc",
		Method: subscription.MethodEmail,
		Email:  "a@example.com",
		TS:     ts,
	})

	require.Len(t, args, 11)
	assert.Equal(t, "abc", args[0])
	assert.Equal(t, sql.NullString{}, args[2])
	assert.Equal(t, sql.NullString{}, args[5])
	assert.Equal(t, sql.NullFloat64{}, args[8])
	assert.Equal(t, sql.NullFloat64{}, args[9])
	assert.Equal(t, ts.UTC(), args[10])
}

func TestInsertArgs_KeepsCoordinates(t *testing.T) {
	lat, lon := 6.5244, 3.3792
	args := insertArgs(subscription.Record{
		ID:      "abc",
		Method:  subscription.MethodBoth,
		Phone:   "+234",
		Email:   "a@example.com",
		City:    "Lagos",
		Country: "Nigeria",
		Lat:     &lat,
		Lon:     &lon,
	})

	assert.Equal(t, sql.NullString{String: "+234", Valid: true}, args[2])
	assert.Equal(t, sql.NullString{String: "Lagos", Valid: true}, args[6])
	assert.Equal(t, sql.NullFloat64{Float64: lat, Valid: true}, args[8])
	assert.Equal(t, sql.NullFloat64{Float64: lon, Valid: true}, args[9])
}

func TestFloatPtr(t *testing.T) {
	assert.Nil(t, floatPtr(sql.NullFloat64{}))
	got := floatPtr(sql.NullFloat64{Float64: 1.5, Valid: true})
	require.NotNil(t, got)
	assert.InDelta(t, 1.5, *got, 0)
}
