package kiosk

import (
	"time"

	"github.com/chaos-ops/display-server-go/internal/model"
)

// Phase is the wall-clock-derived sub-state of a display that has a plan
// assigned. It is a pure function of the clock and the plan date; no poll
// is needed for a display to move from countdown to running to ended.
type Phase string

const (
	PhaseCountdown Phase = "countdown"
	PhaseRunning   Phase = "running"
	PhaseEnded     Phase = "ended"
)

// StartOfDay returns midnight at the start of t's day, in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ComputePhase decides what a display with an assigned plan shows at a
// given instant. The running window is the plan's full calendar day.
func ComputePhase(now time.Time, planDate time.Time) Phase {
	start := StartOfDay(planDate)
	end := start.AddDate(0, 0, 1)

	switch {
	case now.Before(start):
		return PhaseCountdown
	case now.Before(end):
		return PhaseRunning
	default:
		return PhaseEnded
	}
}

// Countdown is the remaining time until the plan's day starts, broken down
// for the countdown screen.
type Countdown struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// CountdownUntil computes the time remaining until midnight at the start
// of the plan's date. Negative remainders clamp to zero.
func CountdownUntil(now time.Time, planDate time.Time) Countdown {
	remaining := StartOfDay(planDate).Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	totalSeconds := int(remaining / time.Second)
	return Countdown{
		Days:    totalSeconds / 86400,
		Hours:   (totalSeconds % 86400) / 3600,
		Minutes: (totalSeconds % 3600) / 60,
		Seconds: totalSeconds % 60,
	}
}

// CurrentActivityIndex finds the schedule item whose effective window
// contains now. An item's window runs from its delay-shifted start to the
// next item's delay-shifted start. Returns -1 before the first item
// starts. When two items share an effective start the earlier item in
// list order wins.
func CurrentActivityIndex(items []model.ScheduleItem, now time.Time) int {
	best := -1
	for i, item := range items {
		start := item.EffectiveStart()
		if start.After(now) {
			continue
		}
		if best == -1 || start.After(items[best].EffectiveStart()) {
			best = i
		}
	}
	return best
}
