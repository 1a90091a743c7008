package ics

import (
	"fmt"
	"strings"
	"time"
)

// zoneTransition is one UTC-offset change inside the probed window.
type zoneTransition struct {
	at         time.Time // first instant under the new offset
	offsetFrom int
	offsetTo   int
	name       string
}

// VTimezone renders a VTIMEZONE component for loc, describing the
// offset rules observed over the year following now. Zones without a
// daylight-saving transition in that window get a single STANDARD
// block.
func VTimezone(loc *time.Location, now time.Time) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	line("BEGIN:VTIMEZONE")
	line("TZID:" + loc.String())

	transitions := findTransitions(loc, now, now.AddDate(1, 0, 1))
	if len(transitions) == 0 {
		name, offset := now.In(loc).Zone()
		line("BEGIN:STANDARD")
		line("DTSTART:19700101T000000")
		line("TZOFFSETFROM:" + formatOffset(offset))
		line("TZOFFSETTO:" + formatOffset(offset))
		if name != "" {
			line("TZNAME:" + name)
		}
		line("END:STANDARD")
	} else {
		var std, dst *zoneTransition
		for i := range transitions {
			t := &transitions[i]
			if t.offsetTo < t.offsetFrom {
				std = t
			} else {
				dst = t
			}
		}

		if std != nil {
			line("BEGIN:STANDARD")
			line("DTSTART:" + std.at.In(loc).Format("20060102T150405"))
			line("TZOFFSETFROM:" + formatOffset(std.offsetFrom))
			line("TZOFFSETTO:" + formatOffset(std.offsetTo))
			if std.name != "" {
				line("TZNAME:" + std.name)
			}
			line("END:STANDARD")
		}
		if dst != nil {
			line("BEGIN:DAYLIGHT")
			line("DTSTART:" + dst.at.In(loc).Format("20060102T150405"))
			line("TZOFFSETFROM:" + formatOffset(dst.offsetFrom))
			line("TZOFFSETTO:" + formatOffset(dst.offsetTo))
			if dst.name != "" {
				line("TZNAME:" + dst.name)
			}
			line("END:DAYLIGHT")
		}
	}

	line("END:VTIMEZONE")
	return b.String()
}

// findTransitions probes loc day by day between from and to and
// bisects each offset change down to the minute. The standard library
// does not expose the zone transition table, so the window is sampled.
func findTransitions(loc *time.Location, from, to time.Time) []zoneTransition {
	var transitions []zoneTransition

	prev := from
	_, prevOffset := prev.In(loc).Zone()
	for t := from.AddDate(0, 0, 1); !t.After(to); t = t.AddDate(0, 0, 1) {
		_, offset := t.In(loc).Zone()
		if offset != prevOffset {
			at := bisectTransition(loc, prev, t, prevOffset)
			name, offsetTo := at.In(loc).Zone()
			transitions = append(transitions, zoneTransition{
				at:         at,
				offsetFrom: prevOffset,
				offsetTo:   offsetTo,
				name:       name,
			})
			prevOffset = offset
		}
		prev = t
	}
	return transitions
}

// bisectTransition narrows an offset change between lo (old offset)
// and hi (new offset) to the first minute under the new offset.
func bisectTransition(loc *time.Location, lo, hi time.Time, oldOffset int) time.Time {
	for hi.Sub(lo) > time.Minute {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Minute)
		if mid.Equal(lo) || mid.Equal(hi) {
			break
		}
		if _, offset := mid.In(loc).Zone(); offset == oldOffset {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d%02d", sign, seconds/3600, (seconds%3600)/60)
}
