// Package optimizer turns per-zone water needs into runnable durations,
// cycle/soak splits, priorities and a schedule that fits the daily budget.
package optimizer

import (
	"sort"
	"time"

	"github.com/verdegrid/irrigationd/internal/model"
)

// Optimizer plans watering for a fixed set of zones.
type Optimizer struct {
	zones           map[string]model.ZoneConfig
	maxDailyRuntime int // minutes
	windowMinutes   int // watering window length
}

// New builds an optimizer. maxDailyRuntime and windowMinutes fall back to
// 180 and 240 when non-positive.
func New(zones map[string]model.ZoneConfig, maxDailyRuntime, windowMinutes int) *Optimizer {
	if maxDailyRuntime <= 0 {
		maxDailyRuntime = model.DefaultMaxDailyRuntime
	}
	if windowMinutes <= 0 {
		windowMinutes = 240
	}
	return &Optimizer{
		zones:           zones,
		maxDailyRuntime: maxDailyRuntime,
		windowMinutes:   windowMinutes,
	}
}

// BaseDuration converts inches of water into minutes of runtime for the
// zone's nozzle, grossing up for irrigation efficiency. Positive needs
// always yield at least one minute.
func BaseDuration(zone model.ZoneConfig, waterNeededInches float64) int {
	if waterNeededInches <= 0 {
		return 0
	}
	actual := waterNeededInches / zone.Efficiency
	minutes := int(actual / zone.PrecipRate() * 60)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// CycleSoak splits a duration into cycle/soak pairs when the nozzle outpaces
// the soil intake rate. Cycles are clamped to 3..15 minutes after the slope
// adjustment; soak is at least 10 minutes and omitted after the last cycle.
func CycleSoak(zone model.ZoneConfig, totalDuration int) []model.CyclePair {
	if totalDuration <= 0 {
		return nil
	}
	if !zone.NeedsCycleSoak() {
		return []model.CyclePair{{Cycle: totalDuration, Soak: 0}}
	}

	maxCycle := int(zone.InfiltrationRate() / zone.PrecipRate() * 0.8 * 60)
	maxCycle = int(float64(maxCycle) * zone.RunoffFactor())
	if maxCycle < 3 {
		maxCycle = 3
	} else if maxCycle > 15 {
		maxCycle = 15
	}
	soak := maxCycle
	if soak < 10 {
		soak = 10
	}

	var cycles []model.CyclePair
	remaining := totalDuration
	for remaining > 0 {
		d := remaining
		if d > maxCycle {
			d = maxCycle
		}
		s := soak
		if remaining <= d {
			s = 0
		}
		cycles = append(cycles, model.CyclePair{Cycle: d, Soak: s})
		remaining -= d
	}
	return cycles
}

// SeasonalFactor is the monthly adjustment for the given time.
func SeasonalFactor(t time.Time) float64 {
	return model.SeasonalFactors[int(t.Month())]
}

// WaterNeed estimates inches needed from ET, rain and the moisture deficit,
// capped at half the root zone's holding capacity.
func WaterNeed(zone model.ZoneConfig, etInches, precipInches, moistureDeficitPct float64) float64 {
	etc := etInches * zone.CropCoefficient() * zone.ETFactor()
	net := etc - precipInches*0.75

	switch {
	case moistureDeficitPct < 30:
		net *= 0.5
	case moistureDeficitPct > 70:
		net *= 1.3
	}

	rootFactor := zone.RootDepth / 6.0
	maxApplication := zone.RootDepth * zone.WaterHoldingCapacity() * 0.5

	net *= rootFactor
	if net > maxApplication {
		net = maxApplication
	}
	if net < 0 {
		return 0
	}
	return net
}

// PrioritizeZones ranks zones by need: urgency dominates, then the deficit,
// the vegetation weight and a falling-trend bonus. Priority 1 is highest;
// score ties break on zone ID so ranking is deterministic.
func (o *Optimizer) PrioritizeZones(analyses map[string]model.ZoneAnalysis) map[string]int {
	type scored struct {
		zoneID string
		score  float64
	}
	var list []scored

	for zoneID, analysis := range analyses {
		zone, ok := o.zones[zoneID]
		if !ok {
			continue
		}

		score := analysis.Urgency * 40
		score += analysis.WaterDeficitPct * 0.3

		if w, ok := model.VegetationPriorityWeights[zone.Vegetation]; ok {
			score += w
		} else {
			score += 5
		}

		switch analysis.Trend {
		case "falling_fast":
			score += 10
		case "falling":
			score += 5
		}

		list = append(list, scored{zoneID, score})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].zoneID < list[j].zoneID
	})

	priorities := make(map[string]int, len(list))
	for i, s := range list {
		priorities[s.zoneID] = i + 1
	}
	return priorities
}

// OptimizeSchedule fits recommended runs into the available window. Zones
// are admitted in priority order (ties to higher confidence); the last zone
// may be truncated to the remainder if at least 5 minutes are left, and
// nothing is backfilled behind a zone that did not fit. Soak time does not
// count against the runtime budget.
func (o *Optimizer) OptimizeSchedule(recs []model.WateringRecommendation, availableWindowMinutes int) []model.ScheduleEntry {
	if availableWindowMinutes <= 0 {
		availableWindowMinutes = o.windowMinutes
	}
	available := availableWindowMinutes
	if o.maxDailyRuntime < available {
		available = o.maxDailyRuntime
	}

	var toWater []model.WateringRecommendation
	for _, r := range recs {
		if r.ShouldWater && r.DurationMinutes > 0 {
			toWater = append(toWater, r)
		}
	}
	sort.SliceStable(toWater, func(i, j int) bool {
		if toWater[i].Priority != toWater[j].Priority {
			return toWater[i].Priority < toWater[j].Priority
		}
		return toWater[i].Confidence > toWater[j].Confidence
	})

	var schedule []model.ScheduleEntry
	total := 0

	for _, rec := range toWater {
		zone, ok := o.zones[rec.ZoneID]
		if !ok || !zone.Enabled {
			continue
		}

		duration := rec.DurationMinutes
		if total+duration > available {
			remaining := available - total
			if remaining < 5 {
				continue
			}
			duration = remaining
		}

		water := rec.WaterAmountInches
		if rec.DurationMinutes > 0 {
			water = rec.WaterAmountInches * float64(duration) / float64(rec.DurationMinutes)
		}

		schedule = append(schedule, model.ScheduleEntry{
			ZoneID:            rec.ZoneID,
			ZoneName:          rec.ZoneName,
			DurationMinutes:   duration,
			WaterAmountInches: water,
			Priority:          rec.Priority,
			Confidence:        rec.Confidence,
			Cycles:            CycleSoak(zone, duration),
			Factors:           rec.Factors,
		})
		total += duration
	}
	return schedule
}

// Zone returns the config for a zone ID.
func (o *Optimizer) Zone(zoneID string) (model.ZoneConfig, bool) {
	z, ok := o.zones[zoneID]
	return z, ok
}

// MaxDailyRuntime is the configured cap in minutes.
func (o *Optimizer) MaxDailyRuntime() int { return o.maxDailyRuntime }
