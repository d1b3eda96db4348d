// SPDX-License-Identifier: GPL-3.0-or-later

package player

import (
	"github.com/intuitionamiga/tlplay/compositor"
	"github.com/intuitionamiga/tlplay/rational"
)

// PlaybackState is one of the three states the orchestrator's state
// machine can be in (spec.md §4.I.a).
type PlaybackState int

const (
	Stop PlaybackState = iota
	Forward
	Reverse
)

// LoopMode selects how crossing the in/out boundary is handled
// (spec.md §4.I.d).
type LoopMode int

const (
	Once LoopMode = iota
	Loop
	PingPong
)

// TimeActionKind enumerates the discrete jump commands spec.md §4.I names.
type TimeActionKind int

const (
	FrameNext TimeActionKind = iota
	FramePrev
	FrameNextX10
	FramePrevX10
	ActionStart
	ActionEnd
)

// Config bounds the tick loop and request concurrency (spec.md §4.I.b, §5).
type Config struct {
	TickInterval      int64 // nanoseconds; target ≤ 5ms
	VideoRequestCount int
	AudioRequestCount int
	SeekFrameTimeout  int64 // nanoseconds; default 100ms

	// AudioSampleRate/AudioChannels describe the format the audio device
	// and mixer must produce (spec.md §4.G).
	AudioSampleRate int
	AudioChannels   int
}

// DefaultConfig matches spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:      5_000_000,   // 5ms
		VideoRequestCount: 16,
		AudioRequestCount: 16,
		SeekFrameTimeout:  100_000_000, // 100ms
		AudioSampleRate:   48000,
		AudioChannels:     2,
	}
}

// CacheInfo is the published snapshot of cache health: bytes in use and
// the count of failed reads. It does not report which ranges are cached.
type CacheInfo struct {
	BytesInUse int64
	Errors     int64
}

func equalCacheInfo(a, b CacheInfo) bool { return a == b }

// CompareOptions mirrors the fields of compositor.Options the Player
// exposes as individually settable observables.
type CompareOptions = compositor.Options

func equalRationalTime(a, b rational.Time) bool { return a.Equal(b) }
func equalRationalRange(a, b rational.Range) bool {
	return a.Start.Equal(b.Start) && a.Duration.Equal(b.Duration)
}

func equalBoolSlice(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
