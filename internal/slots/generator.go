// Package slots derives discrete bookable slots from operating windows and
// orchestrates their batch creation.
package slots

import (
	"fmt"

	"slotbook/internal/model"
)

// Interval is one candidate slot as clock strings on some day.
type Interval struct {
	Start string `json:"start"` // "10:00"
	End   string `json:"end"`   // "10:30"
}

// Generate emits the ordered candidate slots for one day's operating windows.
// For each window [open, close) the cursor starts at open and advances by
// step; a slot is emitted only while cursor+duration fits inside the window.
// Slots are never truncated to fit, and windows are processed independently
// so no slot spans two disjoint windows. A window shorter than the duration
// yields zero slots, not an error.
//
// duration and step are minutes and must be positive; the caller validates.
func Generate(windows []model.OperatingWindow, durationMin, stepMin int) []Interval {
	var out []Interval
	for _, w := range windows {
		open, err := model.ParseClock(w.OpenTime)
		if err != nil {
			continue
		}
		close, err := model.ParseClock(w.CloseTime)
		if err != nil {
			continue
		}
		out = append(out, generateRange(open, close, durationMin, stepMin)...)
	}
	return out
}

// GenerateWithin restricts generation to explicit sub-ranges of the day. Each
// range must be fully contained in some operating window, otherwise the whole
// call fails with ErrOutOfOperatingHours. Generation then runs per sub-range
// with the same cursor loop.
func GenerateWithin(windows []model.OperatingWindow, ranges []Interval, durationMin, stepMin int) ([]Interval, error) {
	var out []Interval
	for _, r := range ranges {
		start, err := model.ParseClock(r.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: start %q", model.ErrInvalidTimeRange, r.Start)
		}
		end, err := model.ParseClock(r.End)
		if err != nil {
			return nil, fmt.Errorf("%w: end %q", model.ErrInvalidTimeRange, r.End)
		}
		if start >= end {
			return nil, fmt.Errorf("%w: %s >= %s", model.ErrInvalidTimeRange, r.Start, r.End)
		}

		contained := false
		for _, w := range windows {
			if w.Contains(r.Start, r.End) {
				contained = true
				break
			}
		}
		if !contained {
			return nil, fmt.Errorf("%w: %s-%s", model.ErrOutOfOperatingHours, r.Start, r.End)
		}

		out = append(out, generateRange(start, end, durationMin, stepMin)...)
	}
	return out, nil
}

func generateRange(open, close, durationMin, stepMin int) []Interval {
	var out []Interval
	for cursor := open; cursor+durationMin <= close; cursor += stepMin {
		out = append(out, Interval{
			Start: model.FormatClock(cursor),
			End:   model.FormatClock(cursor + durationMin),
		})
	}
	return out
}
