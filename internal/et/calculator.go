// Package et implements reference evapotranspiration (FAO-56 Penman-Monteith
// with a Hargreaves-Samani fallback) and the per-zone water balance tracker.
package et

import (
	"math"
	"time"
)

const (
	solarConstant   = 0.0820   // MJ/m²/min
	stefanBoltzmann = 4.903e-9 // MJ/K⁴/m²/day
	latentHeatVap   = 2.45     // MJ/kg
	grassAlbedo     = 0.23
)

// Calculator computes reference ET for a fixed location.
type Calculator struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees, east positive
	Elevation float64 // meters above sea level

	latRad float64
}

func NewCalculator(latitude, longitude, elevation float64) *Calculator {
	return &Calculator{
		Latitude:  latitude,
		Longitude: longitude,
		Elevation: elevation,
		latRad:    latitude * math.Pi / 180,
	}
}

// solarGeometry returns the inverse relative earth-sun distance, solar
// declination and sunset hour angle for a day of year.
func (c *Calculator) solarGeometry(dayOfYear int) (dr, declination, ws float64) {
	dr = 1 + 0.033*math.Cos(2*math.Pi*float64(dayOfYear)/365)
	declination = 0.409 * math.Sin(2*math.Pi*float64(dayOfYear)/365-1.39)
	x := -math.Tan(c.latRad) * math.Tan(declination)
	// Clamp for polar day/night; SunTimes reports those separately.
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	ws = math.Acos(x)
	return dr, declination, ws
}

// extraterrestrialRadiation returns Ra in MJ/m²/day plus the sunset hour angle.
func (c *Calculator) extraterrestrialRadiation(dayOfYear int) (ra, ws float64) {
	dr, decl, ws := c.solarGeometry(dayOfYear)
	ra = (24 * 60 / math.Pi) * solarConstant * dr *
		(ws*math.Sin(c.latRad)*math.Sin(decl) + math.Cos(c.latRad)*math.Cos(decl)*math.Sin(ws))
	return ra, ws
}

// CalculateET0 computes daily reference evapotranspiration in mm/day using
// the FAO-56 Penman-Monteith equation. solarRadiation (MJ/m²/day) and
// sunshineHours are optional; pass a negative value for "not measured".
// Preference order: measured radiation, Angstrom estimate from sunshine
// hours, then 60% of clear-sky radiation.
func (c *Calculator) CalculateET0(
	date time.Time,
	tempMinC, tempMaxC float64,
	humidityMin, humidityMax float64,
	windSpeedMS float64,
	solarRadiation, sunshineHours float64,
) float64 {
	tempMean := (tempMinC + tempMaxC) / 2

	// Atmospheric pressure (kPa) from elevation, then psychrometric constant.
	pressure := 101.3 * math.Pow((293-0.0065*c.Elevation)/293, 5.26)
	gamma := 0.665e-3 * pressure

	esMin := saturationVaporPressure(tempMinC)
	esMax := saturationVaporPressure(tempMaxC)
	es := (esMin + esMax) / 2
	ea := (esMin*humidityMax/100 + esMax*humidityMin/100) / 2
	vpd := es - ea

	delta := vaporPressureSlope(tempMean)

	ra, ws := c.extraterrestrialRadiation(date.YearDay())
	rso := (0.75 + 2e-5*c.Elevation) * ra

	var rs float64
	switch {
	case solarRadiation >= 0:
		rs = solarRadiation
	case sunshineHours >= 0:
		// Angstrom formula from actual vs. possible sunshine hours.
		daylight := 24 * ws / math.Pi
		if daylight > 0 {
			rs = (0.25 + 0.5*sunshineHours/daylight) * ra
		} else {
			rs = 0.25 * ra
		}
	default:
		rs = 0.6 * rso // assume partly cloudy
	}

	rns := (1 - grassAlbedo) * rs

	var rnl float64
	if rso > 0 {
		tMinK := tempMinC + 273.16
		tMaxK := tempMaxC + 273.16
		rnl = stefanBoltzmann * ((math.Pow(tMaxK, 4) + math.Pow(tMinK, 4)) / 2) *
			(0.34 - 0.14*math.Sqrt(ea)) *
			(1.35*rs/rso - 0.35)
	}

	rn := rns - rnl
	g := 0.0 // soil heat flux negligible at daily scale

	numerator := 0.408*delta*(rn-g) + gamma*(900/(tempMean+273))*windSpeedMS*vpd
	denominator := delta + gamma*(1+0.34*windSpeedMS)

	return math.Max(0, numerator/denominator)
}

// CalculateET0Simple computes ET0 in mm/day with the Hargreaves-Samani
// equation, usable when only temperature data is available.
func (c *Calculator) CalculateET0Simple(date time.Time, tempMeanC, tempMinC, tempMaxC float64) float64 {
	ra, _ := c.extraterrestrialRadiation(date.YearDay())
	et0 := 0.0023 * (tempMeanC + 17.8) * math.Sqrt(math.Max(0, tempMaxC-tempMinC)) * ra / latentHeatVap
	return math.Max(0, et0)
}

// CalculateETc scales reference ET by a crop coefficient.
func (c *Calculator) CalculateETc(et0, cropCoefficient float64) float64 {
	return et0 * cropCoefficient
}

func saturationVaporPressure(tempC float64) float64 {
	return 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
}

func vaporPressureSlope(tempC float64) float64 {
	return 4098 * saturationVaporPressure(tempC) / math.Pow(tempC+237.3, 2)
}

// Unit conversions. Exact linear factors; callers rely on these being
// bit-reproducible.

func MMToInches(mm float64) float64     { return mm * 0.0393701 }
func InchesToMM(inches float64) float64 { return inches * 25.4 }

func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func MphToMS(mph float64) float64 { return mph * 0.44704 }
