// Package scheduler decides WHEN the engine's recommendations run: it tracks
// watering days, start/finish times (fixed or sun-relative), rain delays and
// manual skips, and drives the zone controller at execution time.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdegrid/irrigationd/internal/actuator"
	"github.com/verdegrid/irrigationd/internal/decision"
	"github.com/verdegrid/irrigationd/internal/et"
	"github.com/verdegrid/irrigationd/internal/model"
	"github.com/verdegrid/irrigationd/internal/model/messages"
	"github.com/verdegrid/irrigationd/pkg/timerq"
)

const (
	ModeStartAt  = "start_at"
	ModeFinishBy = "finish_by"

	SunEventSunrise = "sunrise"
	SunEventSunset  = "sunset"

	// defaultRecalc is how often the schedule is recomputed between runs so
	// the published plan tracks changing conditions.
	defaultRecalc = 6 * time.Hour

	// fallbackStart is used when the configured time cannot be resolved
	// (bad time string, or no sun event at polar latitudes).
	fallbackStartHour = 5

	// estimated runtime assumed for finish_by before the first calculation.
	defaultRuntimeEstimate = 60

	runHistoryCap      = 30
	decisionHistoryCap = 60
)

// Config is the scheduler's timing configuration.
type Config struct {
	WateringDays     []time.Weekday `yaml:"watering_days"`
	Mode             string         `yaml:"mode"`       // start_at | finish_by
	Time             string         `yaml:"time"`       // "HH:MM", used when SunEvent is empty
	SunEvent         string         `yaml:"sun_event"`  // sunrise | sunset | ""
	SunOffsetMinutes int            `yaml:"sun_offset"` // minutes relative to the sun event
	CycleSoakEnabled bool           `yaml:"cycle_soak_enabled"`
	RecalcInterval   time.Duration  `yaml:"recalc_interval"`
}

func (c *Config) normalize() {
	if len(c.WateringDays) == 0 {
		c.WateringDays = []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	}
	if c.Mode != ModeFinishBy {
		c.Mode = ModeStartAt
	}
	if c.RecalcInterval <= 0 {
		c.RecalcInterval = defaultRecalc
	}
}

// Recorder receives completed decisions and runs for persistence. A nil
// Recorder is allowed.
type Recorder interface {
	RecordDecision(model.DecisionRecord)
	RecordRun(model.RunRecord)
}

// Decision is the execution-time verdict for one scheduled run.
type Decision struct {
	Timestamp    time.Time `json:"timestamp"`
	ShouldWater  bool      `json:"should_water"`
	ZonesToWater int       `json:"zones_to_water"`
	TotalZones   int       `json:"total_zones"`
	Confidence   float64   `json:"confidence"`
	SkipReasons  []string  `json:"skip_reasons,omitempty"`
	Reason       string    `json:"reason"`
}

// Scheduler owns the run timing state machine. All exported methods are safe
// for concurrent use.
type Scheduler struct {
	cfg        Config
	model      *decision.Model
	controller actuator.Controller
	calculator *et.Calculator
	timers     *timerq.Queue
	recorder   Recorder
	publish    func(messages.DecisionEvent) // nil disables event publishing

	mu              sync.Mutex
	schedule        model.Schedule
	nextRun         *time.Time
	lastRun         *time.Time
	isRunning       bool
	skipNext        bool
	rainDelayUntil  *time.Time
	dailyDecision   *Decision
	runHistory      []model.RunRecord
	decisionHistory []model.DecisionRecord
	cancelRun       timerq.Cancel
	cancelRecalc    timerq.Cancel

	now func() time.Time // test hook
}

func New(
	cfg Config,
	m *decision.Model,
	controller actuator.Controller,
	calc *et.Calculator,
	timers *timerq.Queue,
	recorder Recorder,
	publish func(messages.DecisionEvent),
) *Scheduler {
	cfg.normalize()
	return &Scheduler{
		cfg:        cfg,
		model:      m,
		controller: controller,
		calculator: calc,
		timers:     timers,
		recorder:   recorder,
		publish:    publish,
		now:        time.Now,
	}
}

// Start computes the initial schedule, arms the run timer, and begins
// periodic recalculation.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("Starting irrigation scheduler (mode=%s days=%v)", s.cfg.Mode, s.cfg.WateringDays)
	s.CalculateSchedule()
	s.scheduleNextRun(ctx)

	s.mu.Lock()
	s.cancelRecalc = s.timers.RunEvery(s.cfg.RecalcInterval, func() {
		s.CalculateSchedule()
		s.scheduleNextRun(ctx)
	})
	s.mu.Unlock()
}

// Stop cancels timers and stops any running zones.
func (s *Scheduler) Stop(ctx context.Context) {
	log.Printf("Stopping irrigation scheduler")
	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	if s.cancelRecalc != nil {
		s.cancelRecalc()
		s.cancelRecalc = nil
	}
	running := s.isRunning
	s.isRunning = false
	s.mu.Unlock()

	if running {
		if err := s.controller.StopAll(ctx); err != nil {
			log.Printf("Error stopping zones on shutdown: %v", err)
		}
	}
}

// parseClock parses "HH:MM", falling back to the default start hour.
func parseClock(v string) (hour, minute int) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return fallbackStartHour, 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return fallbackStartHour, 0
	}
	return h, m
}

// scheduledTime resolves the configured start (or finish) moment on a given
// date. Sun-relative times fall back to 05:00 local when the sun never
// crosses the horizon.
func (s *Scheduler) scheduledTime(date time.Time) time.Time {
	year, month, day := date.Date()
	loc := date.Location()

	if s.cfg.SunEvent != "" {
		sunrise, sunset, err := s.calculator.SunTimes(date)
		if err == nil {
			base := sunrise
			if s.cfg.SunEvent == SunEventSunset {
				base = sunset
			}
			return base.In(loc).Add(time.Duration(s.cfg.SunOffsetMinutes) * time.Minute)
		}
		log.Printf("Sun event unavailable for %s: %v, falling back to %02d:00", date.Format("2006-01-02"), err, fallbackStartHour)
		return time.Date(year, month, day, fallbackStartHour, 0, 0, 0, loc)
	}

	hour, minute := parseClock(s.cfg.Time)
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func (s *Scheduler) isWateringDay(d time.Weekday) bool {
	for _, wd := range s.cfg.WateringDays {
		if wd == d {
			return true
		}
	}
	return false
}

// nextRunTime scans up to 8 days ahead for the next valid start moment. An
// active rain delay overrides the calendar. Caller holds s.mu.
func (s *Scheduler) nextRunTime() *time.Time {
	now := s.now()

	if s.rainDelayUntil != nil && now.Before(*s.rainDelayUntil) {
		t := *s.rainDelayUntil
		return &t
	}

	runtime := s.schedule.TotalRuntime
	if runtime <= 0 {
		runtime = defaultRuntimeEstimate
	}

	for daysAhead := 0; daysAhead < 8; daysAhead++ {
		day := now.AddDate(0, 0, daysAhead)
		if !s.isWateringDay(day.Weekday()) {
			continue
		}
		scheduled := s.scheduledTime(day)
		if s.cfg.Mode == ModeFinishBy {
			scheduled = scheduled.Add(-time.Duration(runtime) * time.Minute)
		}
		if scheduled.After(now) {
			return &scheduled
		}
	}
	return nil
}

// CalculateSchedule rebuilds the plan from the engine's optimized schedule
// and recomputes the next run time.
func (s *Scheduler) CalculateSchedule() model.Schedule {
	entries := s.model.OptimizedSchedule()

	total := 0
	toWater := 0
	for _, e := range entries {
		total += e.DurationMinutes
		if e.DurationMinutes > 0 {
			toWater++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedule = model.Schedule{
		CalculatedAt: s.now(),
		Zones:        entries,
		TotalRuntime: total,
		ZonesToWater: toWater,
	}
	s.nextRun = s.nextRunTime()
	s.schedule.NextRun = s.nextRun

	next := "none"
	if s.nextRun != nil {
		next = s.nextRun.Format(time.RFC3339)
	}
	log.Printf("Schedule calculated: %d zones, %d minutes total, next run: %s", toWater, total, next)
	return s.schedule
}

// scheduleNextRun (re)arms the run timer for the current next-run time.
func (s *Scheduler) scheduleNextRun(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	if s.nextRun == nil {
		s.nextRun = s.nextRunTime()
		s.schedule.NextRun = s.nextRun
	}
	if s.nextRun == nil {
		log.Printf("No upcoming watering day within the next week")
		return
	}
	at := *s.nextRun
	s.cancelRun = s.timers.RunAt(at, func() {
		if _, err := s.ExecuteSchedule(ctx); err != nil {
			log.Printf("Scheduled run failed: %v", err)
		}
	})
	log.Printf("Next run scheduled for %s", at.Format(time.RFC3339))
}

// makeDailyDecision recomputes every zone right before watering and
// aggregates the verdict.
func (s *Scheduler) makeDailyDecision() Decision {
	recs := s.model.AllRecommendations()

	zonesToWater := 0
	totalConfidence := 0.0
	var skipReasons []string

	ids := make([]string, 0, len(recs))
	for id := range recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec := recs[id]
		if rec.ShouldWater && rec.DurationMinutes > 0 {
			zonesToWater++
		}
		if rec.SkipReason != "" {
			skipReasons = append(skipReasons, fmt.Sprintf("%s: %s", rec.ZoneName, rec.SkipReason))
		}
		totalConfidence += rec.Confidence
	}

	avgConfidence := 0.0
	if len(recs) > 0 {
		avgConfidence = totalConfidence / float64(len(recs))
	}

	shouldWater := zonesToWater > 0
	return Decision{
		Timestamp:    s.now(),
		ShouldWater:  shouldWater,
		ZonesToWater: zonesToWater,
		TotalZones:   len(recs),
		Confidence:   avgConfidence,
		SkipReasons:  skipReasons,
		Reason:       s.decisionReason(shouldWater, zonesToWater, skipReasons),
	}
}

// decisionReason builds the human-readable summary attached to the decision.
func (s *Scheduler) decisionReason(shouldWater bool, zonesToWater int, skipReasons []string) string {
	if shouldWater {
		return fmt.Sprintf("%d zone(s) need water based on current conditions", zonesToWater)
	}

	var reasons []string
	status := s.model.Status()
	cond := strings.ToLower(status.Weather.Condition)
	if strings.Contains(cond, "rain") || strings.Contains(cond, "pour") {
		reasons = append(reasons, "Currently raining")
	}
	if status.Weather.PrecipNext24h > 0.5 {
		reasons = append(reasons, "Rain expected")
	}
	if status.Rain.Tripped {
		reasons = append(reasons, "Rain sensor triggered")
	}
	if len(skipReasons) > 3 {
		skipReasons = skipReasons[:3]
	}
	reasons = append(reasons, skipReasons...)

	if len(reasons) == 0 {
		return "Soil moisture levels adequate"
	}
	return strings.Join(reasons, "; ")
}

// recordDecision appends to the decision history and forwards to the
// recorder and event bus. Caller holds s.mu.
func (s *Scheduler) recordDecision(decisionType, reason string, zonesToWater int, confidence float64) {
	rec := model.DecisionRecord{
		ID:           uuid.NewString(),
		Date:         s.now().Format("2006-01-02"),
		Timestamp:    s.now(),
		Type:         decisionType,
		Reason:       reason,
		ZonesToWater: zonesToWater,
		Confidence:   confidence,
	}
	s.decisionHistory = append(s.decisionHistory, rec)
	if len(s.decisionHistory) > decisionHistoryCap {
		s.decisionHistory = s.decisionHistory[len(s.decisionHistory)-decisionHistoryCap:]
	}
	if s.recorder != nil {
		s.recorder.RecordDecision(rec)
	}
	if s.publish != nil {
		s.publish(messages.DecisionEvent{
			DecisionID:   rec.ID,
			Type:         decisionType,
			Reason:       reason,
			ZonesToWater: zonesToWater,
			Confidence:   confidence,
			Timestamp:    rec.Timestamp,
		})
	}
	log.Printf("Recorded decision: %s - %s", decisionType, reason)
}

// ExecuteSchedule runs the current plan. A fresh decision is made at
// execution time even on scheduled days, so conditions are evaluated right
// before the valves open. Returns whether watering started.
func (s *Scheduler) ExecuteSchedule(ctx context.Context) (bool, error) {
	log.Printf("Executing irrigation schedule")

	// The next run is always rearmed, whatever the outcome.
	defer func() {
		s.mu.Lock()
		s.nextRun = nil
		s.mu.Unlock()
		s.scheduleNextRun(ctx)
	}()

	s.mu.Lock()
	if s.skipNext {
		s.skipNext = false
		log.Printf("Skipping scheduled run (manual skip)")
		s.recordDecision("skipped", "Manual skip requested", 0, 0)
		s.mu.Unlock()
		return false, nil
	}
	if s.rainDelayUntil != nil && s.now().Before(*s.rainDelayUntil) {
		log.Printf("Skipping scheduled run (rain delay)")
		s.recordDecision("skipped", "Rain delay active", 0, 0)
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	dec := s.makeDailyDecision()

	s.mu.Lock()
	s.dailyDecision = &dec
	s.mu.Unlock()

	if !dec.ShouldWater {
		log.Printf("Decided NOT to water today: %s", dec.Reason)
		s.mu.Lock()
		s.recordDecision("ai_skipped", dec.Reason, 0, dec.Confidence)
		s.mu.Unlock()
		return false, nil
	}

	log.Printf("Watering approved: %d zones, confidence %.0f%%", dec.ZonesToWater, dec.Confidence*100)
	s.mu.Lock()
	s.recordDecision("watering", dec.Reason, dec.ZonesToWater, dec.Confidence)
	s.mu.Unlock()

	// Recalculate with the fresh recommendations before running.
	schedule := s.CalculateSchedule()
	if len(schedule.Zones) == 0 {
		log.Printf("No zones to water after recalculation")
		return false, nil
	}

	runs := s.buildRuns(schedule.Zones)
	if len(runs) == 0 {
		log.Printf("No runnable zones in schedule")
		return false, nil
	}

	s.mu.Lock()
	s.isRunning = true
	started := s.now()
	s.lastRun = &started
	s.mu.Unlock()

	err := s.controller.RunZones(ctx, runs)

	totalSeconds := 0
	for _, r := range runs {
		totalSeconds += int(r.Duration.Seconds())
	}
	record := model.RunRecord{
		ID:            uuid.NewString(),
		Timestamp:     started,
		Zones:         len(runs),
		TotalDuration: totalSeconds / 60,
		Success:       err == nil,
	}

	s.mu.Lock()
	s.isRunning = false
	s.runHistory = append(s.runHistory, record)
	if len(s.runHistory) > runHistoryCap {
		s.runHistory = s.runHistory[len(s.runHistory)-runHistoryCap:]
	}
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordRun(record)
	}
	if err != nil {
		return false, fmt.Errorf("run zones: %w", err)
	}

	// Book the applied water into each zone's balance.
	for _, e := range schedule.Zones {
		if !e.Skipped && e.DurationMinutes > 0 {
			s.model.RecordIrrigation(e.ZoneID, e.WaterAmountInches)
		}
	}
	return true, nil
}

// buildRuns flattens schedule entries into controller runs, expanding
// cycle/soak into separate valve activations when enabled.
func (s *Scheduler) buildRuns(entries []model.ScheduleEntry) []actuator.ZoneRun {
	var runs []actuator.ZoneRun
	for _, e := range entries {
		if e.Skipped || e.DurationMinutes <= 0 {
			continue
		}
		if s.cfg.CycleSoakEnabled && len(e.Cycles) > 0 {
			for _, c := range e.Cycles {
				runs = append(runs, actuator.ZoneRun{
					ZoneID:   e.ZoneID,
					Duration: time.Duration(c.Cycle) * time.Minute,
				})
			}
		} else {
			runs = append(runs, actuator.ZoneRun{
				ZoneID:   e.ZoneID,
				Duration: time.Duration(e.DurationMinutes) * time.Minute,
			})
		}
	}
	return runs
}

// RunZoneNow starts one zone immediately. Zero minutes means use the
// engine's recommended duration, falling back to 10 minutes.
func (s *Scheduler) RunZoneNow(ctx context.Context, zoneID string, minutes int) error {
	if minutes <= 0 {
		minutes = s.model.RecommendedDuration(zoneID)
		if minutes <= 0 {
			minutes = 10
		}
	}
	log.Printf("Running zone %s for %d minutes", zoneID, minutes)
	return s.controller.RunZone(ctx, zoneID, time.Duration(minutes)*time.Minute)
}

// StopZone stops a single zone.
func (s *Scheduler) StopZone(ctx context.Context, zoneID string) error {
	log.Printf("Stopping zone %s", zoneID)
	return s.controller.StopZone(ctx, zoneID)
}

// StopAll stops every running zone.
func (s *Scheduler) StopAll(ctx context.Context) error {
	log.Printf("Stopping all zones")
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
	return s.controller.StopAll(ctx)
}

// SkipNext skips the next scheduled run, or a single zone when zoneID is
// non-empty.
func (s *Scheduler) SkipNext(zoneID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if zoneID == "" {
		s.skipNext = true
		log.Printf("Skipping next scheduled run")
		return
	}
	for i := range s.schedule.Zones {
		if s.schedule.Zones[i].ZoneID == zoneID {
			s.schedule.Zones[i].Skipped = true
			log.Printf("Skipping zone %s for next run", zoneID)
		}
	}
}

// SetRainDelay suspends scheduling for the given number of hours and
// forwards the delay to the controller.
func (s *Scheduler) SetRainDelay(ctx context.Context, hours int) error {
	until := s.now().Add(time.Duration(hours) * time.Hour)
	s.mu.Lock()
	s.rainDelayUntil = &until
	s.nextRun = nil
	s.mu.Unlock()
	log.Printf("Rain delay set until %s", until.Format(time.RFC3339))

	if err := s.controller.SetRainDelay(ctx, time.Duration(hours)*time.Hour); err != nil {
		log.Printf("Controller rain delay failed: %v", err)
	}
	s.scheduleNextRun(ctx)
	return nil
}

// CancelRainDelay clears an active rain delay and reschedules.
func (s *Scheduler) CancelRainDelay(ctx context.Context) error {
	s.mu.Lock()
	s.rainDelayUntil = nil
	s.nextRun = nil
	s.mu.Unlock()
	log.Printf("Rain delay cancelled")

	if err := s.controller.CancelRainDelay(ctx); err != nil {
		log.Printf("Controller rain delay cancel failed: %v", err)
	}
	s.scheduleNextRun(ctx)
	return nil
}

// Info is the full scheduler state for the status surface.
type Info struct {
	Schedule       model.Schedule `json:"schedule"`
	NextRun        *time.Time     `json:"next_run"`
	LastRun        *time.Time     `json:"last_run"`
	IsRunning      bool           `json:"is_running"`
	SkipNext       bool           `json:"skip_next"`
	RainDelayUntil *time.Time     `json:"rain_delay_until"`
	WateringDays   []time.Weekday `json:"watering_days"`
	Mode           string         `json:"schedule_mode"`
	Time           string         `json:"schedule_time,omitempty"`
	SunEvent       string         `json:"schedule_sun_event,omitempty"`
	SunOffset      int            `json:"sun_offset"`
	DailyDecision  *Decision      `json:"daily_decision,omitempty"`
}

// ScheduleInfo snapshots the scheduler state.
func (s *Scheduler) ScheduleInfo() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Schedule:       s.schedule,
		NextRun:        s.nextRun,
		LastRun:        s.lastRun,
		IsRunning:      s.isRunning,
		SkipNext:       s.skipNext,
		RainDelayUntil: s.rainDelayUntil,
		WateringDays:   append([]time.Weekday(nil), s.cfg.WateringDays...),
		Mode:           s.cfg.Mode,
		Time:           s.cfg.Time,
		SunEvent:       s.cfg.SunEvent,
		SunOffset:      s.cfg.SunOffsetMinutes,
		DailyDecision:  s.dailyDecision,
	}
}

// RunHistory returns the recent run records, oldest first.
func (s *Scheduler) RunHistory() []model.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.RunRecord(nil), s.runHistory...)
}

// DecisionHistory returns the recent decision records, oldest first.
func (s *Scheduler) DecisionHistory() []model.DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DecisionRecord(nil), s.decisionHistory...)
}

// IsRunning reports whether a run is in progress.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// NextRun returns the next scheduled run time, nil when none is planned.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextRun == nil {
		return nil
	}
	t := *s.nextRun
	return &t
}
