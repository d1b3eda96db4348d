// SPDX-License-Identifier: GPL-3.0-or-later

package timeline

import (
	"testing"

	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
)

func singleClipTimeline(t *testing.T) *Timeline {
	t.Helper()
	rate := rational.NewRate(24, 1)
	tl := New(rate, rational.Zero(rate))
	vt := tl.AddTrack(TrackVideo)
	media := MediaRef{
		Path:        mpath.Parse("/shots/sh010/render.%04d.exr"),
		SourceRange: rational.NewRange(rational.Zero(rate), rational.Time{Value: 120, Rate: rate}),
	}
	tl.AddItem(vt, Item{Kind: ItemClip, Duration: rational.Time{Value: 120, Rate: rate}, Media: media})
	return tl
}

func TestVideoAtWithinClip(t *testing.T) {
	tl := singleClipTimeline(t)
	rate := tl.Rate
	hits := tl.VideoAt(rational.Time{Value: 48, Rate: rate})
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	if hits[0].ClipTime.Value != 48 {
		t.Fatalf("expected local time 48, got %v", hits[0].ClipTime)
	}
}

func TestVideoAtOutOfRangeIsEmpty(t *testing.T) {
	tl := singleClipTimeline(t)
	rate := tl.Rate
	hits := tl.VideoAt(rational.Time{Value: 1000, Rate: rate})
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestAudioInOverlap(t *testing.T) {
	rate := rational.NewRate(24, 1)
	tl := New(rate, rational.Zero(rate))
	at := tl.AddTrack(TrackAudio)
	media := MediaRef{
		Path:        mpath.Parse("/shots/sh010/audio.wav"),
		SourceRange: rational.NewRange(rational.Zero(rate), rational.Time{Value: 240, Rate: rate}),
	}
	tl.AddItem(at, Item{Kind: ItemClip, Duration: rational.Time{Value: 240, Rate: rate}, Media: media})

	r := rational.NewRange(rational.Time{Value: 100, Rate: rate}, rational.Time{Value: 20, Rate: rate})
	hits := tl.AudioIn(r)
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d", len(hits))
	}
	if hits[0].ClipRange.Start.Value != 100 || hits[0].ClipRange.End().Value != 120 {
		t.Fatalf("unexpected clip range: %+v", hits[0].ClipRange)
	}
}

func TestDurationIsLongestTrack(t *testing.T) {
	tl := singleClipTimeline(t)
	if got, want := tl.Duration().Value, 120.0; got != want {
		t.Fatalf("Duration() = %v, want %v", got, want)
	}
}

func TestVideoAtGapIsEmpty(t *testing.T) {
	rate := rational.NewRate(24, 1)
	tl := New(rate, rational.Zero(rate))
	vt := tl.AddTrack(TrackVideo)
	tl.AddItem(vt, Item{Kind: ItemGap, Duration: rational.Time{Value: 24, Rate: rate}})
	hits := tl.VideoAt(rational.Time{Value: 5, Rate: rate})
	if len(hits) != 0 {
		t.Fatalf("expected no hits over a gap, got %d", len(hits))
	}
}
