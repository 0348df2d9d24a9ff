// Package slots generates delivery time slots and prices delivery by
// distance. Slot generation is a pure function of the clock; availability is
// derived from live order data by the caller and passed in as a booked set.
package slots

import (
	"fmt"
	"math"
	"time"
)

// Defaults mirror the business schedule: a rolling week of two-hour brackets
// across working hours.
const (
	DefaultLookaheadDays = 7
	DefaultDayStartHour  = 9
	DefaultDayEndHour    = 18
	DefaultSlotHours     = 2
)

// Slot is a delivery window on a concrete date. The date is normalized to
// midnight in the slot's location; hours are local wall-clock hours.
type Slot struct {
	Date      time.Time
	StartHour int
	EndHour   int
}

// Start returns the opening instant of the window.
func (s Slot) Start() time.Time {
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), s.StartHour, 0, 0, 0, s.Date.Location())
}

// End returns the closing instant of the window.
func (s Slot) End() time.Time {
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), s.EndHour, 0, 0, 0, s.Date.Location())
}

// Key is the canonical identifier used for booked-set membership. It is
// derived from the structured fields and never parsed back.
func (s Slot) Key() string {
	return fmt.Sprintf("%s:%02d-%02d", s.Date.Format("2006-01-02"), s.StartHour, s.EndHour)
}

// Label renders the slot for display, e.g. "02.01.2006 09:00-11:00".
func (s Slot) Label() string {
	return fmt.Sprintf("%s %02d:00-%02d:00", s.Date.Format("02.01.2006"), s.StartHour, s.EndHour)
}

// Key builds a booked-set key from stored order columns without constructing
// a full Slot.
func Key(date time.Time, startHour, endHour int) string {
	return Slot{Date: date, StartHour: startHour, EndHour: endHour}.Key()
}

// Generate enumerates back-to-back delivery windows for lookaheadDays days
// starting today, filling [dayStart, dayEnd) in slotHours brackets. The result
// is chronological and deterministic for a given now.
func Generate(now time.Time, lookaheadDays, dayStart, dayEnd, slotHours int) []Slot {
	if lookaheadDays <= 0 || slotHours <= 0 || dayEnd <= dayStart {
		return nil
	}
	var out []Slot
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for day := 0; day < lookaheadDays; day++ {
		date := base.AddDate(0, 0, day)
		for h := dayStart; h+slotHours <= dayEnd; h += slotHours {
			out = append(out, Slot{Date: date, StartHour: h, EndHour: h + slotHours})
		}
	}
	return out
}

// Available filters candidates down to slots that have not started yet and are
// not present in the booked set. Order is preserved.
func Available(candidates []Slot, booked map[string]struct{}, now time.Time) []Slot {
	out := make([]Slot, 0, len(candidates))
	for _, s := range candidates {
		if !s.Start().After(now) {
			continue
		}
		if _, taken := booked[s.Key()]; taken {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Coord is a WGS84 point.
type Coord struct {
	Lat float64
	Lon float64
}

// Valid reports whether the coordinate is usable for distance math. The zero
// point is treated as unset.
func (c Coord) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	if c.Lat == 0 && c.Lon == 0 {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(a, b Coord) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FeeSchedule prices delivery in minor currency units.
type FeeSchedule struct {
	Base    int64
	PerKm   int64
	Default int64
}

// DefaultFees matches the business pricing: 5000 base, 500 per km, 10000 when
// the distance cannot be computed.
var DefaultFees = FeeSchedule{Base: 5000, PerKm: 500, Default: 10000}

// Quote computes base + per-km fee for the given origin and destination.
// Missing or invalid coordinates fall back to the default fee; fee estimation
// never blocks checkout.
func (f FeeSchedule) Quote(origin, dest Coord) (fee int64, estimated bool) {
	if !origin.Valid() || !dest.Valid() {
		return f.Default, false
	}
	km := DistanceKm(origin, dest)
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return f.Default, false
	}
	return f.Base + int64(math.Round(km*float64(f.PerKm))), true
}
