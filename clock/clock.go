// SPDX-License-Identifier: GPL-3.0-or-later

// Package clock implements the two time sources Player selects between
// at construction (spec.md §4.H): a WallClock driven by a steady OS
// clock, and an AudioClock driven by frames actually consumed by the
// audio device, immune to UI-thread stalls. Direction is represented as
// a sign: after SetDirection(false) a clock negates its elapsed time and
// lets rational arithmetic subtract it from the anchor.
package clock

import (
	"sync/atomic"
	"time"

	"github.com/intuitionamiga/tlplay/rational"
)

// Clock is the abstract time source the Player's tick loop reads.
type Clock interface {
	// Now returns the current rational time.
	Now() rational.Time
	// Reset anchors the clock's zero point at t; a running clock keeps
	// running from t and a stopped one stays frozen at t.
	Reset(t rational.Time)
	// SetDirection flips whether Now advances forward or backward.
	SetDirection(forward bool)
	// Stop freezes the clock at its current value.
	Stop()
	// Start resumes advancing from the frozen value.
	Start()
}

// WallClock derives time from a steady, monotonic OS clock. Seeking
// resets the zero point; stopping freezes it.
type WallClock struct {
	rate rational.Rate

	mu       atomicTimeAnchor
	running  atomic.Bool
	forward  atomic.Bool
}

type atomicTimeAnchor struct {
	wallStart atomic.Value // time.Time
	anchor    atomic.Value // rational.Time
}

// NewWallClock returns a stopped WallClock anchored at zero, at rate.
func NewWallClock(rate rational.Rate) *WallClock {
	c := &WallClock{rate: rate}
	c.forward.Store(true)
	c.mu.wallStart.Store(time.Now())
	c.mu.anchor.Store(rational.Zero(rate))
	return c
}

func (c *WallClock) Now() rational.Time {
	anchor := c.mu.anchor.Load().(rational.Time)
	if !c.running.Load() {
		return anchor
	}
	wallStart := c.mu.wallStart.Load().(time.Time)
	elapsed := time.Since(wallStart).Seconds()
	if !c.forward.Load() {
		elapsed = -elapsed
	}
	delta := rational.Time{Value: elapsed * c.rate.Float(), Rate: c.rate}
	return anchor.Add(delta)
}

func (c *WallClock) Reset(t rational.Time) {
	c.mu.anchor.Store(t.Rescaled(c.rate))
	c.mu.wallStart.Store(time.Now())
}

func (c *WallClock) SetDirection(forward bool) {
	// Collapse the elapsed delta into the anchor before flipping so the
	// direction change takes effect from "now", not from the last Reset.
	c.mu.anchor.Store(c.Now())
	c.mu.wallStart.Store(time.Now())
	c.forward.Store(forward)
}

func (c *WallClock) Stop() {
	c.mu.anchor.Store(c.Now())
	c.running.Store(false)
}

func (c *WallClock) Start() {
	c.mu.wallStart.Store(time.Now())
	c.running.Store(true)
}

// AudioClock derives time from samples actually consumed by the audio
// device: startTime + framesConsumed/sampleRate. A mute period does not
// reset it — only the device thread advancing framesConsumed moves it
// forward, and click-suppressed silence still advances that counter.
type AudioClock struct {
	rate       rational.Rate
	sampleRate int64

	startTime      atomic.Value // rational.Time
	framesConsumed atomic.Int64
	forward        atomic.Bool
	running        atomic.Bool
}

// NewAudioClock returns a stopped AudioClock at rate, driven by a device
// running at sampleRate frames per second.
func NewAudioClock(rate rational.Rate, sampleRate int) *AudioClock {
	c := &AudioClock{rate: rate, sampleRate: int64(sampleRate)}
	c.forward.Store(true)
	c.startTime.Store(rational.Zero(rate))
	return c
}

func (c *AudioClock) Now() rational.Time {
	start := c.startTime.Load().(rational.Time)
	if !c.running.Load() || c.sampleRate == 0 {
		return start
	}
	frames := c.framesConsumed.Load()
	seconds := float64(frames) / float64(c.sampleRate)
	if !c.forward.Load() {
		seconds = -seconds
	}
	delta := rational.Time{Value: seconds * c.rate.Float(), Rate: c.rate}
	return start.Add(delta)
}

// Reset anchors the clock at t and zeroes the consumed-frame counter,
// the audio equivalent of dropping the mixer's buffered PCM on seek.
func (c *AudioClock) Reset(t rational.Time) {
	c.startTime.Store(t.Rescaled(c.rate))
	c.framesConsumed.Store(0)
}

func (c *AudioClock) SetDirection(forward bool) {
	c.startTime.Store(c.Now())
	c.framesConsumed.Store(0)
	c.forward.Store(forward)
}

// AdvanceFrames is called by the audio device thread after each mix()
// call with the number of frames it consumed (muted or not). Frames
// reported while the clock is stopped are ignored.
func (c *AudioClock) AdvanceFrames(n int64) {
	if !c.running.Load() {
		return
	}
	c.framesConsumed.Add(n)
}

func (c *AudioClock) Stop() {
	c.startTime.Store(c.Now())
	c.framesConsumed.Store(0)
	c.running.Store(false)
}

func (c *AudioClock) Start() {
	c.running.Store(true)
}
