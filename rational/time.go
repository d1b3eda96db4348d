// SPDX-License-Identifier: GPL-3.0-or-later

// Package rational implements exact rational time and time ranges for the
// tlplay playback engine: a frame count plus a rational frame rate, so
// equality and arithmetic never drift the way floating-point seconds do.
package rational

import "fmt"

// Rate is a rational frames-per-second value. Den == 0 is the invalid
// sentinel described in spec.md §3 ("Rate 0 marks an invalid sentinel").
type Rate struct {
	Num int32
	Den int32
}

// NewRate builds a Rate, normalising a zero or negative denominator to the
// invalid sentinel.
func NewRate(num, den int32) Rate {
	if den <= 0 {
		return Rate{}
	}
	return Rate{Num: num, Den: den}
}

// Valid reports whether r can be used in arithmetic: its denominator is
// positive, so a negative denominator is as invalid as the zero sentinel.
func (r Rate) Valid() bool { return r.Den > 0 }

// Float returns the rate as frames per second.
func (r Rate) Float() float64 {
	if !r.Valid() {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rate) String() string {
	if !r.Valid() {
		return "invalid"
	}
	if r.Den == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Time is a rational time value: Value counted in Rate units. Two Times
// are equal iff both Value and Rate compare equal (spec.md §3).
type Time struct {
	Value float64
	Rate  Rate
}

// Zero returns time 0 at the given rate.
func Zero(rate Rate) Time { return Time{Value: 0, Rate: rate} }

// IsInvalid reports whether t carries the invalid-rate sentinel.
func (t Time) IsInvalid() bool { return !t.Rate.Valid() }

// Seconds converts t to floating-point seconds.
func (t Time) Seconds() float64 {
	if !t.Rate.Valid() {
		return 0
	}
	return t.Value / t.Rate.Float()
}

// Equal implements the exact equality spec.md §3 requires: both fields
// must match, not just the represented instant.
func (t Time) Equal(o Time) bool {
	return t.Value == o.Value && t.Rate == o.Rate
}

// Rescaled returns t re-expressed at newRate, rounding to the nearest
// representable value at that rate.
func (t Time) Rescaled(newRate Rate) Time {
	if t.Rate == newRate || !newRate.Valid() {
		return Time{Value: t.Value, Rate: newRate}
	}
	if !t.Rate.Valid() {
		return Time{Rate: newRate}
	}
	seconds := t.Seconds()
	return Time{Value: seconds * newRate.Float(), Rate: newRate}
}

// Add adds d to t. If the operands share a rate the result keeps it
// exactly (spec.md §3, "arithmetic preserves rate when operands share
// it"); otherwise d is rescaled to t's rate first.
func (t Time) Add(d Time) Time {
	if t.Rate == d.Rate {
		return Time{Value: t.Value + d.Value, Rate: t.Rate}
	}
	return Time{Value: t.Value + d.Rescaled(t.Rate).Value, Rate: t.Rate}
}

// Sub subtracts d from t, with the same rate-preservation rule as Add.
func (t Time) Sub(d Time) Time {
	if t.Rate == d.Rate {
		return Time{Value: t.Value - d.Value, Rate: t.Rate}
	}
	return Time{Value: t.Value - d.Rescaled(t.Rate).Value, Rate: t.Rate}
}

// Compare returns -1, 0 or 1 comparing t and o by represented instant
// (seconds), regardless of differing rates.
func (t Time) Compare(o Time) int {
	ts, os := t.Seconds(), o.Seconds()
	switch {
	case ts < os:
		return -1
	case ts > os:
		return 1
	default:
		return 0
	}
}

func (t Time) Before(o Time) bool { return t.Compare(o) < 0 }
func (t Time) After(o Time) bool  { return t.Compare(o) > 0 }

// RoundToFrame rounds t.Value to the nearest whole frame at its own rate.
func (t Time) RoundToFrame() Time {
	v := t.Value
	if v >= 0 {
		v = float64(int64(v + 0.5))
	} else {
		v = -float64(int64(-v + 0.5))
	}
	return Time{Value: v, Rate: t.Rate}
}

// Range is a time range. Internally stored as [Start, Start+Duration), the
// exclusive "start+duration" form spec.md §3 names; ToInclusive/FromInclusive
// convert to and from the closed inclusive pair form.
type Range struct {
	Start    Time
	Duration Time
}

// NewRange builds a half-open range [start, start+duration).
func NewRange(start, duration Time) Range {
	return Range{Start: start, Duration: duration}
}

// RangeFromStartEnd builds the exclusive range [start, end).
func RangeFromStartEnd(start, end Time) Range {
	return Range{Start: start, Duration: end.Sub(start)}
}

// End returns the exclusive end, start+duration.
func (r Range) End() Time { return r.Start.Add(r.Duration) }

// ToInclusive returns the equivalent closed range [start, end], i.e. the
// end is one frame earlier than the exclusive End().
func (r Range) ToInclusive() Range {
	oneFrame := Time{Value: 1, Rate: r.Start.Rate}
	return Range{Start: r.Start, Duration: r.Duration.Sub(oneFrame)}
}

// FromInclusive treats r as a closed [start, end] pair and returns the
// equivalent exclusive [start, end+1frame) range.
func (r Range) FromInclusive() Range {
	oneFrame := Time{Value: 1, Rate: r.Start.Rate}
	return Range{Start: r.Start, Duration: r.Duration.Add(oneFrame)}
}

// Contains reports whether t lies in [Start, End()).
func (r Range) Contains(t Time) bool {
	return !t.Before(r.Start) && t.Before(r.End())
}

// Clamp restricts t to lie within [Start, End()).
func (r Range) Clamp(t Time) Time {
	if t.Before(r.Start) {
		return r.Start
	}
	end := r.End()
	if !t.Before(end) {
		oneFrame := Time{Value: 1, Rate: r.Start.Rate}
		return end.Sub(oneFrame)
	}
	return t
}

// Intersect returns the overlap of r and o, and whether one exists.
func (r Range) Intersect(o Range) (Range, bool) {
	start := r.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := r.End()
	oEnd := o.End()
	if oEnd.Before(end) {
		end = oEnd
	}
	if !start.Before(end) {
		return Range{}, false
	}
	return RangeFromStartEnd(start, end), true
}

// Timecode is a broadcast (non-drop-frame) HH:MM:SS:FF timecode.
type Timecode struct {
	Hours, Minutes, Seconds, Frames int
}

// TimeToTimecode converts t to a broadcast timecode at the nearest whole
// frame rate (e.g. 23.976 rounds to 24 for frame counting purposes).
func TimeToTimecode(t Time) Timecode {
	fps := int(t.Rate.Float() + 0.5)
	if fps <= 0 {
		fps = 1
	}
	frame := int64(t.RoundToFrame().Value)
	if frame < 0 {
		frame = 0
	}
	totalSeconds := frame / int64(fps)
	f := int(frame % int64(fps))
	s := int(totalSeconds % 60)
	m := int((totalSeconds / 60) % 60)
	h := int(totalSeconds / 3600)
	return Timecode{Hours: h, Minutes: m, Seconds: s, Frames: f}
}

// TimecodeToTime is the inverse of TimeToTimecode for a given rate; it
// satisfies the round-trip law in spec.md §8 for every valid broadcast
// timecode (0 <= Frames < round(rate), 0 <= Minutes,Seconds < 60).
func TimecodeToTime(tc Timecode, rate Rate) Time {
	fps := int(rate.Float() + 0.5)
	if fps <= 0 {
		fps = 1
	}
	frame := int64(tc.Frames) +
		int64(fps)*(int64(tc.Seconds)+60*(int64(tc.Minutes)+60*int64(tc.Hours)))
	return Time{Value: float64(frame), Rate: rate}
}

func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}
