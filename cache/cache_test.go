// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"testing"

	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/tlio"
)

func frame(bytes int) tlio.VideoData {
	return tlio.VideoData{Layers: []tlio.ImageLayer{{Image: &tlio.Image{Data: make([]byte, bytes)}}}}
}

func TestByteTotalNeverExceedsBudget(t *testing.T) {
	rate := rational.NewRate(24, 1)
	c := New(Config{ReadAheadSeconds: 4, ReadBehindSeconds: 0.5, MaxBytes: 1000})
	window := rational.NewRange(rational.Zero(rate), rational.Time{Value: 100, Rate: rate})
	cur := rational.Zero(rate)

	for i := 0; i < 50; i++ {
		tm := rational.Time{Value: float64(i), Rate: rate}
		c.PutVideo(tm, frame(100), cur, window)
		if c.ByteTotal() > 1000 {
			t.Fatalf("byte total %d exceeds budget after inserting frame %d", c.ByteTotal(), i)
		}
	}
}

func TestEvictionPrefersOutsideWindowFirst(t *testing.T) {
	rate := rational.NewRate(24, 1)
	c := New(Config{MaxBytes: 250})
	cur := rational.Time{Value: 10, Rate: rate}
	window := rational.NewRange(rational.Time{Value: 5, Rate: rate}, rational.Time{Value: 10, Rate: rate}) // [5, 15)

	// Insert one entry outside the window (time=2) and one inside (time=10).
	c.PutVideo(rational.Time{Value: 2, Rate: rate}, frame(100), cur, window)
	c.PutVideo(rational.Time{Value: 10, Rate: rate}, frame(100), cur, window)
	// Third insert forces eviction; the outside-window entry (t=2) must go
	// even though it is not the furthest by raw distance necessarily.
	c.PutVideo(rational.Time{Value: 11, Rate: rate}, frame(100), cur, window)

	if c.ContainsVideo(rational.Time{Value: 2, Rate: rate}) {
		t.Fatal("expected the outside-window entry to be evicted first")
	}
	if !c.ContainsVideo(rational.Time{Value: 10, Rate: rate}) || !c.ContainsVideo(rational.Time{Value: 11, Rate: rate}) {
		t.Fatal("expected in-window entries to survive")
	}
}

func TestEvictionForwardPrefersOlderFrames(t *testing.T) {
	rate := rational.NewRate(24, 1)
	c := New(Config{MaxBytes: 250})
	c.SetDirection(Forward)
	cur := rational.Time{Value: 10, Rate: rate}
	window := rational.NewRange(rational.Zero(rate), rational.Time{Value: 100, Rate: rate})

	c.PutVideo(rational.Time{Value: 5, Rate: rate}, frame(100), cur, window)  // older, should go first
	c.PutVideo(rational.Time{Value: 15, Rate: rate}, frame(100), cur, window) // newer, should survive
	c.PutVideo(rational.Time{Value: 16, Rate: rate}, frame(100), cur, window) // forces eviction

	if c.ContainsVideo(rational.Time{Value: 5, Rate: rate}) {
		t.Fatal("expected forward playback to evict the older frame first")
	}
}

func TestEvictionDistanceOutranksByteCost(t *testing.T) {
	rate := rational.NewRate(24, 1)
	c := New(Config{MaxBytes: 220})
	cur := rational.Time{Value: 0, Rate: rate}
	window := rational.NewRange(rational.Time{Value: -100, Rate: rate}, rational.Time{Value: 200, Rate: rate})
	c.SetDirection(Forward)

	// Two entries behind current, both eligible for forward eviction: -10
	// is nearer and cheaper, -20 is farther and dearer.
	c.PutVideo(rational.Time{Value: -10, Rate: rate}, frame(10), cur, window)
	c.PutVideo(rational.Time{Value: -20, Rate: rate}, frame(50), cur, window)
	// -20 is farther, so it is evicted first despite its larger byte cost:
	// distance outranks the byte-cost tie-break, which only applies at
	// equal distance.
	c.PutVideo(rational.Time{Value: 0, Rate: rate}, frame(170), cur, window)

	if c.ContainsVideo(rational.Time{Value: -20, Rate: rate}) {
		t.Fatal("expected the farther frame to be evicted before the tie-break would apply")
	}
}

func TestRemoveOutsideVideo(t *testing.T) {
	rate := rational.NewRate(24, 1)
	c := New(DefaultConfig())
	cur := rational.Zero(rate)
	window := rational.NewRange(rational.Zero(rate), rational.Time{Value: 10, Rate: rate})
	c.PutVideo(rational.Time{Value: 2, Rate: rate}, frame(10), cur, window)
	c.PutVideo(rational.Time{Value: 50, Rate: rate}, frame(10), cur, window)

	c.RemoveOutsideVideo(window)
	if c.ContainsVideo(rational.Time{Value: 50, Rate: rate}) {
		t.Fatal("expected the out-of-window entry to be removed")
	}
	if !c.ContainsVideo(rational.Time{Value: 2, Rate: rate}) {
		t.Fatal("expected the in-window entry to survive")
	}
}

func TestClearEmptiesCache(t *testing.T) {
	rate := rational.NewRate(24, 1)
	c := New(DefaultConfig())
	cur := rational.Zero(rate)
	window := rational.NewRange(rational.Zero(rate), rational.Time{Value: 10, Rate: rate})
	c.PutVideo(rational.Time{Value: 2, Rate: rate}, frame(10), cur, window)
	c.Clear()
	if c.ByteTotal() != 0 {
		t.Fatalf("expected byte total 0 after Clear, got %d", c.ByteTotal())
	}
	if c.ContainsVideo(rational.Time{Value: 2, Rate: rate}) {
		t.Fatal("expected Clear to drop all entries")
	}
}
