package model

// Lookup tables keyed by the categorical zone fields. Unknown keys fall back
// to the documented defaults (loam / cool_season_grass / flat / full_sun /
// fixed_spray).

// VegetationInfo describes a vegetation type.
type VegetationInfo struct {
	Name      string
	Kc        float64 // crop coefficient
	RootDepth float64 // typical root depth, inches
}

var VegetationTypes = map[string]VegetationInfo{
	"cool_season_grass": {"Cool Season Grass (Fescue, Bluegrass)", 0.80, 6},
	"warm_season_grass": {"Warm Season Grass (Bermuda, St. Augustine)", 0.65, 8},
	"mixed_grass":       {"Mixed Grass", 0.72, 7},
	"shrubs":            {"Shrubs", 0.50, 18},
	"perennials":        {"Perennial Flowers", 0.60, 12},
	"annuals":           {"Annual Flowers", 0.70, 8},
	"trees":             {"Trees", 0.45, 36},
	"vegetables":        {"Vegetable Garden", 0.85, 12},
	"native_plants":     {"Native/Drought Tolerant", 0.35, 18},
	"groundcover":       {"Ground Cover", 0.55, 6},
	"new_sod":           {"New Sod (< 2 months)", 1.0, 2},
	"new_seed":          {"New Seed (< 3 months)", 1.1, 1},
}

// SoilInfo describes a soil type.
type SoilInfo struct {
	Name                 string
	InfiltrationRate     float64 // inches per hour
	WaterHoldingCapacity float64 // inches of water per inch of soil
	FieldCapacity        float64 // % volumetric moisture
	WiltingPoint         float64 // % volumetric moisture
}

var SoilTypes = map[string]SoilInfo{
	"clay":       {"Clay", 0.10, 0.20, 45, 25},
	"clay_loam":  {"Clay Loam", 0.20, 0.18, 40, 20},
	"loam":       {"Loam", 0.35, 0.17, 35, 15},
	"sandy_loam": {"Sandy Loam", 0.50, 0.12, 28, 10},
	"loamy_sand": {"Loamy Sand", 0.80, 0.10, 20, 7},
	"sand":       {"Sand", 1.20, 0.08, 15, 5},
}

var SlopeRunoffFactors = map[string]float64{
	"flat":       1.0,  // 0-3%
	"slight":     0.90, // 3-6%
	"moderate":   0.80, // 6-9%
	"steep":      0.70, // 9-12%
	"very_steep": 0.60, // >12%
}

var SunExposureETFactors = map[string]float64{
	"full_sun":      1.0,  // 6+ hours
	"partial_sun":   0.80, // 4-6 hours
	"partial_shade": 0.65, // 2-4 hours
	"full_shade":    0.50, // <2 hours
}

// NozzlePrecipRates maps nozzle types to precipitation rates (inches/hour).
var NozzlePrecipRates = map[string]float64{
	"fixed_spray":   1.5,
	"rotary_nozzle": 0.5,
	"rotor":         0.4,
	"drip":          0.2,
	"impact":        0.5,
	"bubbler":       1.0,
}

// SeasonalFactors is the Northern-hemisphere monthly adjustment curve.
var SeasonalFactors = [13]float64{
	0, // unused; months are 1-based
	0.40, 0.45, 0.60, 0.75, 0.90, 1.00,
	1.05, 1.00, 0.85, 0.65, 0.50, 0.35,
}

// VegetationPriorityWeights biases zone priority scoring: new plantings and
// vegetables get watered first, established trees and natives last.
var VegetationPriorityWeights = map[string]float64{
	"new_seed":          15,
	"new_sod":           12,
	"vegetables":        10,
	"annuals":           8,
	"cool_season_grass": 5,
	"warm_season_grass": 5,
	"perennials":        4,
	"shrubs":            3,
	"native_plants":     2,
	"trees":             2,
}

// Model thresholds.
const (
	MoistureThresholdDry = 30.0 // % moisture, below this definitely water
	MoistureThresholdWet = 70.0 // % moisture, above this skip watering

	RainThresholdLight    = 0.1  // inches
	RainThresholdModerate = 0.25 // inches
	RainThresholdHeavy    = 0.5  // inches

	WindThresholdHigh     = 15.0 // mph
	WindThresholdVeryHigh = 25.0 // mph
	WindThresholdDanger   = 30.0 // mph

	TempThresholdFreeze = 32.0 // °F
	TempThresholdHot    = 95.0 // °F
)

// Scheduling defaults.
const (
	DefaultMaxDailyRuntime = 180 // minutes
	DefaultStartTime       = "05:00"
	DefaultEndTime         = "09:00"

	RunHistoryCap      = 30
	DecisionHistoryCap = 60
)
