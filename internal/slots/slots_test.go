package slots

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return ts
}

func TestGenerateCoversWorkingHours(t *testing.T) {
	now := mustTime(t, "2026-03-02 08:00")
	got := Generate(now, DefaultLookaheadDays, DefaultDayStartHour, DefaultDayEndHour, DefaultSlotHours)

	// 7 days x 4 brackets inside 09:00-18:00 (the trailing 17-19 bracket does
	// not fit and must be excluded).
	require.Len(t, got, 28)
	assert.Equal(t, Slot{Date: mustTime(t, "2026-03-02 00:00"), StartHour: 9, EndHour: 11}, got[0])
	assert.Equal(t, 15, got[3].StartHour)
	assert.Equal(t, 17, got[3].EndHour)
	assert.Equal(t, mustTime(t, "2026-03-08 00:00"), got[len(got)-1].Date)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Start().After(got[i-1].Start()), "slots must be chronological")
	}
}

func TestGenerateRejectsBadWindow(t *testing.T) {
	now := mustTime(t, "2026-03-02 08:00")
	assert.Nil(t, Generate(now, 0, 9, 18, 2))
	assert.Nil(t, Generate(now, 7, 18, 9, 2))
	assert.Nil(t, Generate(now, 7, 9, 18, 0))
}

func TestAvailableDropsPastAndBooked(t *testing.T) {
	now := mustTime(t, "2026-03-02 10:30")
	all := Generate(now, 2, 9, 18, 2)

	booked := map[string]struct{}{
		Key(mustTime(t, "2026-03-02 00:00"), 13, 15): {},
	}
	got := Available(all, booked, now)

	for _, s := range got {
		assert.True(t, s.Start().After(now), "slot %s already started", s.Label())
		_, taken := booked[s.Key()]
		assert.False(t, taken, "slot %s is booked", s.Label())
	}
	// Day one: 09-11 started, 13-15 booked, leaving 11-13 and 15-17.
	require.Len(t, got, 6)
	assert.Equal(t, 11, got[0].StartHour)
	assert.Equal(t, 15, got[1].StartHour)
}

func TestAvailablePreservesOrder(t *testing.T) {
	now := mustTime(t, "2026-03-02 06:00")
	all := Generate(now, 3, 9, 18, 2)
	got := Available(all, nil, now)
	require.Equal(t, all, got)
}

func TestSlotLabel(t *testing.T) {
	s := Slot{Date: mustTime(t, "2026-01-02 00:00"), StartHour: 9, EndHour: 11}
	assert.Equal(t, "02.01.2026 09:00-11:00", s.Label())
	assert.Equal(t, "2026-01-02:09-11", s.Key())
}

func TestDistanceKm(t *testing.T) {
	// One degree of longitude along the equator.
	got := DistanceKm(Coord{Lat: 0, Lon: 1}, Coord{Lat: 0, Lon: 2})
	assert.InDelta(t, 111.19, got, 0.1)
}

func TestQuoteByDistance(t *testing.T) {
	origin := Coord{Lat: 41.2995, Lon: 69.2401}
	dest := Coord{Lat: 41.3355, Lon: 69.2401}

	km := DistanceKm(origin, dest)
	require.InDelta(t, 4.0, km, 0.05)

	fee, estimated := DefaultFees.Quote(origin, dest)
	assert.True(t, estimated)
	assert.Equal(t, DefaultFees.Base+int64(math.Round(km*float64(DefaultFees.PerKm))), fee)
	assert.InDelta(t, 7000, fee, 25)
}

func TestQuoteFallsBackWithoutCoords(t *testing.T) {
	origin := Coord{Lat: 41.2995, Lon: 69.2401}

	fee, estimated := DefaultFees.Quote(origin, Coord{})
	assert.False(t, estimated)
	assert.Equal(t, DefaultFees.Default, fee)

	fee, estimated = DefaultFees.Quote(Coord{Lat: math.NaN()}, origin)
	assert.False(t, estimated)
	assert.Equal(t, DefaultFees.Default, fee)
}
