package et

import (
	"errors"
	"math"
	"time"
)

// ErrNoSunEvent is returned for polar day/night, when the sun never crosses
// the horizon on the given date.
var ErrNoSunEvent = errors.New("no sunrise/sunset on this date at this latitude")

// SunTimes returns sunrise and sunset (UTC) for the given date, derived from
// the same solar geometry the ET equations use plus the equation of time.
// Accuracy is a few minutes, which is plenty for scheduling offsets.
func (c *Calculator) SunTimes(date time.Time) (sunrise, sunset time.Time, err error) {
	doy := date.YearDay()
	_, decl, _ := c.solarGeometry(doy)

	x := -math.Tan(c.latRad) * math.Tan(decl)
	if x > 1 || x < -1 {
		return time.Time{}, time.Time{}, ErrNoSunEvent
	}
	ws := math.Acos(x) // sunset hour angle, radians

	// Equation of time in minutes (Spencer-style approximation).
	b := 2 * math.Pi * float64(doy-81) / 364
	eot := 9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b)

	// Solar noon in minutes UTC.
	noon := 720 - 4*c.Longitude - eot
	half := 4 * ws * 180 / math.Pi // half day length in minutes

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	sunrise = midnight.Add(time.Duration((noon - half) * float64(time.Minute)))
	sunset = midnight.Add(time.Duration((noon + half) * float64(time.Minute)))
	return sunrise, sunset, nil
}
