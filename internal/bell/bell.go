// Package bell holds the schedule evaluation logic: resolving the next
// upcoming event and matching events due in the current minute. Both are
// pure functions of the schedule and the local time.
package bell

import (
	"strconv"

	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/model"
)

// Next resolves the earliest strictly-future event within a 7-day lookahead,
// annotated with its weekday name, or nil if the window holds none. Today's
// events at or before the current minute are skipped; event lists are
// already time-ordered from ingestion.
func Next(sched model.Schedule, now clock.LocalTime) *model.NextBell {
	if len(sched) == 0 {
		return nil
	}
	nowMins := now.MinuteOfDay()
	for offset := 0; offset < 7; offset++ {
		day := (now.Weekday + offset) % 7
		for _, ev := range sched[day] {
			if offset == 0 && eventMinutes(ev) <= nowMins {
				continue
			}
			return &model.NextBell{Event: ev, DayName: model.DayNames[day]}
		}
	}
	return nil
}

// Due returns today's events whose time equals the current minute exactly,
// in schedule order. The caller actuates them sequentially.
func Due(sched model.Schedule, now clock.LocalTime) []model.BellEvent {
	hhmm := now.HHMM()
	var due []model.BellEvent
	for _, ev := range sched[now.Weekday] {
		if ev.Time == hhmm {
			due = append(due, ev)
		}
	}
	return due
}

// eventMinutes converts a validated "HH:MM" into minute-of-day.
func eventMinutes(ev model.BellEvent) int {
	h, _ := strconv.Atoi(ev.Time[:2])
	m, _ := strconv.Atoi(ev.Time[3:])
	return h*60 + m
}
