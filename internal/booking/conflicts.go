package booking

import (
	"time"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/ics"
)

// FindConflicts returns the candidate slots on a date that overlap any
// remote event. Slot order is preserved; each slot is reported at most
// once. The result is a pure function of the two interval sets.
func FindConflicts(date string, slots []string, duration int, events []ics.Event, loc *time.Location) []string {
	if len(events) == 0 || len(slots) == 0 {
		return nil
	}

	var conflicts []string
	for _, slot := range slots {
		start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+slot, loc)
		if err != nil {
			continue
		}
		end := start.Add(time.Duration(duration) * time.Minute)

		for _, ev := range events {
			if overlaps(start, end, ev.Start, ev.End) {
				conflicts = append(conflicts, slot)
				break
			}
		}
	}
	return conflicts
}

// overlaps tests half-open interval overlap: two intervals that only
// touch at a boundary do not overlap.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
