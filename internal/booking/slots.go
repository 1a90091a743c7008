package booking

import (
	"fmt"
	"time"
)

// AdvancePolicy is the minimum lead time required between now and a
// bookable slot's start.
type AdvancePolicy string

const (
	Advance5Min    AdvancePolicy = "5min"
	Advance1Hour   AdvancePolicy = "1h"
	Advance2Hours  AdvancePolicy = "2h"
	Advance4Hours  AdvancePolicy = "4h"
	AdvanceNextDay AdvancePolicy = "next_day"
)

// Deadline returns the earliest bookable instant under the policy.
// Unknown values fall back to two hours.
func (p AdvancePolicy) Deadline(now time.Time, loc *time.Location) time.Time {
	switch p {
	case Advance5Min:
		return now.Add(5 * time.Minute)
	case Advance1Hour:
		return now.Add(1 * time.Hour)
	case Advance4Hours:
		return now.Add(4 * time.Hour)
	case AdvanceNextDay:
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	case Advance2Hours:
		return now.Add(2 * time.Hour)
	default:
		return now.Add(2 * time.Hour)
	}
}

// WorkingHours is the daily bookable window, as "HH:MM" times of day.
type WorkingHours struct {
	Start string
	End   string
}

// dayBounds resolves the working-hours window of a date into instants
// in loc.
func dayBounds(date string, hours WorkingHours, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hours.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse working hours start: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hours.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse working hours end: %w", err)
	}
	return start, end, nil
}

// GenerateSlots produces the bookable candidate slots for a date:
// duration-minute steps through the working hours, keeping only slots
// strictly in the future that meet the minimum-advance deadline. A
// slot exactly at the deadline is bookable.
func GenerateSlots(date string, duration int, hours WorkingHours, loc *time.Location, policy AdvancePolicy, now time.Time) ([]string, error) {
	start, end, err := dayBounds(date, hours, loc)
	if err != nil {
		return nil, err
	}

	deadline := policy.Deadline(now, loc)
	step := time.Duration(duration) * time.Minute

	var slots []string
	for t := start; t.Before(end); t = t.Add(step) {
		if t.After(now) && !t.Before(deadline) {
			slots = append(slots, t.In(loc).Format("15:04"))
		}
	}
	return slots, nil
}

// GenerateAllSlots produces every in-hours slot of a date with no
// past or advance filtering. Used by the admin preview, which tags
// each slot with a status instead of hiding it.
func GenerateAllSlots(date string, duration int, hours WorkingHours, loc *time.Location) ([]string, error) {
	start, end, err := dayBounds(date, hours, loc)
	if err != nil {
		return nil, err
	}

	step := time.Duration(duration) * time.Minute

	var slots []string
	for t := start; t.Before(end); t = t.Add(step) {
		slots = append(slots, t.In(loc).Format("15:04"))
	}
	return slots, nil
}

// MeetsMinimumAdvance reports whether any slot on the date could still
// satisfy the advance policy. The check runs against the end of the
// day, not its start, so a partially elapsed day stays bookable.
func MeetsMinimumAdvance(date string, policy AdvancePolicy, loc *time.Location, now time.Time) bool {
	endOfDay, err := time.ParseInLocation("2006-01-02 15:04:05", date+" 23:59:59", loc)
	if err != nil {
		return false
	}
	return !endOfDay.Before(policy.Deadline(now, loc))
}
