package scheduler

import "time"

// UpcomingRun is one planned start in the forecast calendar.
type UpcomingRun struct {
	StartAt        time.Time `json:"start_at"`
	Weekday        string    `json:"weekday"`
	RuntimeMinutes int       `json:"runtime_minutes"`
	RainDelayed    bool      `json:"rain_delayed"`
}

// UpcomingRuns projects the schedule over the coming days. Runs falling
// inside an active rain delay are included but flagged, matching what the
// engine will do when they come due.
func (s *Scheduler) UpcomingRuns(days int) []UpcomingRun {
	if days <= 0 {
		days = 7
	}

	s.mu.Lock()
	runtime := s.schedule.TotalRuntime
	delayUntil := s.rainDelayUntil
	s.mu.Unlock()
	if runtime <= 0 {
		runtime = defaultRuntimeEstimate
	}

	now := s.now()
	var runs []UpcomingRun
	for daysAhead := 0; daysAhead <= days; daysAhead++ {
		day := now.AddDate(0, 0, daysAhead)
		if !s.isWateringDay(day.Weekday()) {
			continue
		}
		start := s.scheduledTime(day)
		if s.cfg.Mode == ModeFinishBy {
			start = start.Add(-time.Duration(runtime) * time.Minute)
		}
		if !start.After(now) {
			continue
		}
		runs = append(runs, UpcomingRun{
			StartAt:        start,
			Weekday:        start.Weekday().String(),
			RuntimeMinutes: runtime,
			RainDelayed:    delayUntil != nil && start.Before(*delayUntil),
		})
	}
	return runs
}
