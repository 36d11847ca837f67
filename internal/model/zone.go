package model

// ZoneConfig is the static, admin-set description of one irrigation zone.
// The derived coefficients (Kc, infiltration rate, runoff factor, ...) all
// come from the lookup tables keyed by the categorical fields.
type ZoneConfig struct {
	ZoneID      string  `json:"zone_id" yaml:"zone_id"`
	Name        string  `json:"name" yaml:"name"`
	Vegetation  string  `json:"vegetation" yaml:"vegetation"`
	SoilType    string  `json:"soil_type" yaml:"soil_type"`
	Slope       string  `json:"slope" yaml:"slope"`
	SunExposure string  `json:"sun_exposure" yaml:"sun_exposure"`
	NozzleType  string  `json:"nozzle_type" yaml:"nozzle_type"`
	RootDepth   float64 `json:"root_depth" yaml:"root_depth"`   // inches
	AreaSqFt    float64 `json:"area_sqft" yaml:"area_sqft"`     // square feet
	Efficiency  float64 `json:"efficiency" yaml:"efficiency"`   // irrigation efficiency, 0-1
	Enabled     bool    `json:"enabled" yaml:"enabled"`
}

// Normalize fills the documented defaults for missing categorical fields and
// derives root depth from the vegetation type when unset.
func (z *ZoneConfig) Normalize() {
	if z.Vegetation == "" {
		z.Vegetation = "cool_season_grass"
	}
	if z.SoilType == "" {
		z.SoilType = "loam"
	}
	if z.Slope == "" {
		z.Slope = "flat"
	}
	if z.SunExposure == "" {
		z.SunExposure = "full_sun"
	}
	if z.NozzleType == "" {
		z.NozzleType = "fixed_spray"
	}
	if z.RootDepth <= 0 {
		z.RootDepth = z.vegetation().RootDepth
	}
	if z.Efficiency <= 0 {
		z.Efficiency = 0.80
	}
	if z.AreaSqFt <= 0 {
		z.AreaSqFt = 1000
	}
}

func (z *ZoneConfig) vegetation() VegetationInfo {
	if v, ok := VegetationTypes[z.Vegetation]; ok {
		return v
	}
	return VegetationTypes["cool_season_grass"]
}

// Soil returns the soil table entry for this zone, defaulting to loam.
func (z *ZoneConfig) Soil() SoilInfo {
	if s, ok := SoilTypes[z.SoilType]; ok {
		return s
	}
	return SoilTypes["loam"]
}

// CropCoefficient is the Kc multiplier for this zone's vegetation.
func (z *ZoneConfig) CropCoefficient() float64 { return z.vegetation().Kc }

// InfiltrationRate is the soil's intake rate in inches per hour.
func (z *ZoneConfig) InfiltrationRate() float64 { return z.Soil().InfiltrationRate }

// WaterHoldingCapacity is inches of water per inch of soil depth.
func (z *ZoneConfig) WaterHoldingCapacity() float64 { return z.Soil().WaterHoldingCapacity }

// RunoffFactor shortens cycles on slopes.
func (z *ZoneConfig) RunoffFactor() float64 {
	if f, ok := SlopeRunoffFactors[z.Slope]; ok {
		return f
	}
	return 1.0
}

// ETFactor scales ET by sun exposure.
func (z *ZoneConfig) ETFactor() float64 {
	if f, ok := SunExposureETFactors[z.SunExposure]; ok {
		return f
	}
	return 1.0
}

// PrecipRate is the nozzle application rate in inches per hour.
func (z *ZoneConfig) PrecipRate() float64 {
	if r, ok := NozzlePrecipRates[z.NozzleType]; ok {
		return r
	}
	return 1.5
}

// NeedsCycleSoak reports whether the nozzle outpaces the soil intake rate.
func (z *ZoneConfig) NeedsCycleSoak() bool { return z.PrecipRate() > z.InfiltrationRate() }
