// SPDX-License-Identifier: GPL-3.0-or-later

package player

import (
	"context"
	"testing"
	"time"

	"github.com/intuitionamiga/tlplay/cache"
	"github.com/intuitionamiga/tlplay/clock"
	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/timeline"
	"github.com/intuitionamiga/tlplay/tlio"
)

// fakeReader resolves every request synchronously, so a single tick()
// call is enough to observe its result land in the cache.
type fakeReader struct{}

func (f *fakeReader) Info(ctx context.Context) *tlio.Future[tlio.Info] {
	fut := tlio.NewFuture[tlio.Info]()
	fut.Resolve(tlio.Info{}, nil)
	return fut
}

func (f *fakeReader) ReadVideo(ctx context.Context, t rational.Time, layer int) *tlio.Future[tlio.VideoData] {
	fut := tlio.NewFuture[tlio.VideoData]()
	fut.Resolve(tlio.VideoData{
		Time:   t,
		Layers: []tlio.ImageLayer{{Image: &tlio.Image{Width: 4, Height: 4, Data: make([]byte, 64)}}},
	}, nil)
	return fut
}

func (f *fakeReader) ReadAudio(ctx context.Context, r rational.Range) *tlio.Future[tlio.AudioData] {
	fut := tlio.NewFuture[tlio.AudioData]()
	fut.Resolve(tlio.AudioData{
		SampleRate: 48000,
		Channels:   1,
		Layers:     [][]float32{make([]float32, 480)},
	}, nil)
	return fut
}

func (f *fakeReader) Cancel() {}

func singleClipPlayer(t *testing.T) (*Player, *timeline.Timeline) {
	t.Helper()
	rate := rational.NewRate(24, 1)
	tl := timeline.New(rate, rational.Zero(rate))
	vt := tl.AddTrack(timeline.TrackVideo)
	media := timeline.MediaRef{
		Path:        mpath.Parse("/shots/sh010/render.0001.exr"),
		SourceRange: rational.NewRange(rational.Zero(rate), rational.Time{Value: 240, Rate: rate}),
	}
	tl.AddItem(vt, timeline.Item{Kind: timeline.ItemClip, Duration: rational.Time{Value: 240, Rate: rate}, Media: media})

	registry := ioregistry.New()
	registry.RegisterRead(".exr", func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		return &fakeReader{}, nil
	})

	cacheCfg := cache.Config{ReadAheadSeconds: 1, ReadBehindSeconds: 0, MaxBytes: 1 << 20}
	clk := clock.NewWallClock(rate)
	p := New(tl, registry, cacheCfg, clk, DefaultConfig())
	return p, tl
}

func TestSeekPublishesCurrentTimeWhenStopped(t *testing.T) {
	p, tl := singleClipPlayer(t)
	target := rational.Time{Value: 48, Rate: tl.Rate}

	p.Seek(target)

	if got := p.CurrentTime.Get(); !got.Equal(target) {
		t.Fatalf("CurrentTime = %v, want %v", got, target)
	}
}

func TestTickFetchesFrameIntoCache(t *testing.T) {
	p, tl := singleClipPlayer(t)
	p.SetPlayback(Forward)

	p.tick()

	cur := p.CurrentTime.Get()
	if _, ok := p.cache.GetVideo(cur); !ok {
		t.Fatalf("expected frame at %v to be cached after a tick", cur)
	}
	if p.cache.ByteTotal() == 0 {
		t.Fatal("expected a non-zero cache byte total after a tick")
	}
	if got := p.CurrentVideo.Get(); !got.Time.Equal(cur) {
		t.Fatalf("expected CurrentVideo published at %v, got %v", cur, got.Time)
	}
	_ = tl
}

// TestTickFetchesAudioIntoCache exercises the audio half of the tick
// loop: an audio track's clip should land in the cache under the second
// it covers, fetched through the same bounded-concurrency pipeline as
// video but keyed by integer second rather than exact time.
func TestTickFetchesAudioIntoCache(t *testing.T) {
	rate := rational.NewRate(24, 1)
	tl := timeline.New(rate, rational.Zero(rate))
	vt := tl.AddTrack(timeline.TrackVideo)
	at := tl.AddTrack(timeline.TrackAudio)
	videoMedia := timeline.MediaRef{
		Path:        mpath.Parse("/shots/sh010/render.0001.exr"),
		SourceRange: rational.NewRange(rational.Zero(rate), rational.Time{Value: 240, Rate: rate}),
	}
	audioMedia := timeline.MediaRef{
		Path:        mpath.Parse("/shots/sh010/render.wav"),
		SourceRange: rational.NewRange(rational.Zero(rate), rational.Time{Value: 240, Rate: rate}),
	}
	tl.AddItem(vt, timeline.Item{Kind: timeline.ItemClip, Duration: rational.Time{Value: 240, Rate: rate}, Media: videoMedia})
	tl.AddItem(at, timeline.Item{Kind: timeline.ItemClip, Duration: rational.Time{Value: 240, Rate: rate}, Media: audioMedia})

	registry := ioregistry.New()
	registry.RegisterRead(".exr", func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) { return &fakeReader{}, nil })
	registry.RegisterRead(".wav", func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) { return &fakeReader{}, nil })

	cacheCfg := cache.Config{ReadAheadSeconds: 1, ReadBehindSeconds: 0, MaxBytes: 1 << 20}
	clk := clock.NewWallClock(rate)
	p := New(tl, registry, cacheCfg, clk, DefaultConfig())
	p.SetPlayback(Forward)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !p.cache.ContainsAudio(0) {
		p.tick()
		time.Sleep(time.Millisecond)
	}
	if !p.cache.ContainsAudio(0) {
		t.Fatal("expected second 0 of audio to be cached after ticking")
	}
}

func TestSeekClearsPendingAndCache(t *testing.T) {
	p, _ := singleClipPlayer(t)
	p.SetPlayback(Forward)
	p.tick()

	if p.cache.ByteTotal() == 0 {
		t.Fatal("expected the cache to hold data before seeking")
	}

	p.Seek(rational.Time{Value: 100, Rate: p.tl.Rate})

	if p.cache.ByteTotal() != 0 {
		t.Fatal("expected Seek to clear the cache")
	}
	p.pendingMu.Lock()
	n := len(p.pending)
	p.pendingMu.Unlock()
	if n != 0 {
		t.Fatalf("expected no pending requests to survive a seek, got %d", n)
	}
}

func TestApplyLoopPolicyOnceStopsAtOutPoint(t *testing.T) {
	p, tl := singleClipPlayer(t)
	rate := tl.Rate
	inOut := rational.RangeFromStartEnd(rational.Zero(rate), rational.Time{Value: 24, Rate: rate})
	p.InOutRange.Publish(inOut)
	p.Loop.Publish(Once)
	p.SetPlayback(Forward)

	got := p.applyLoopPolicy(rational.Time{Value: 24, Rate: rate}, Forward)

	if want := inOut.ToInclusive().End(); !got.Equal(want) {
		t.Fatalf("expected clamp to inclusive end %v, got %v", want, got)
	}
	if p.Playback.Get() != Stop {
		t.Fatal("expected Once loop mode to stop playback at the out point")
	}
}

func TestApplyLoopPolicyLoopWrapsToInPoint(t *testing.T) {
	p, tl := singleClipPlayer(t)
	rate := tl.Rate
	inOut := rational.RangeFromStartEnd(rational.Zero(rate), rational.Time{Value: 24, Rate: rate})
	p.InOutRange.Publish(inOut)
	p.Loop.Publish(Loop)
	p.SetPlayback(Forward)

	got := p.applyLoopPolicy(rational.Time{Value: 24, Rate: rate}, Forward)

	if !got.Equal(inOut.Start) {
		t.Fatalf("expected wrap to in point %v, got %v", inOut.Start, got)
	}
	if p.Playback.Get() != Forward {
		t.Fatal("expected Loop mode to keep playing forward")
	}
}

func TestApplyLoopPolicyPingPongFlipsDirection(t *testing.T) {
	p, tl := singleClipPlayer(t)
	rate := tl.Rate
	inOut := rational.RangeFromStartEnd(rational.Zero(rate), rational.Time{Value: 24, Rate: rate})
	p.InOutRange.Publish(inOut)
	p.Loop.Publish(PingPong)
	p.SetPlayback(Forward)

	p.applyLoopPolicy(rational.Time{Value: 24, Rate: rate}, Forward)

	if p.Playback.Get() != Reverse {
		t.Fatalf("expected PingPong to flip to Reverse at the out point, got %v", p.Playback.Get())
	}

	got := p.applyLoopPolicy(rational.Time{Value: -1, Rate: rate}, Reverse)
	if !got.Equal(inOut.Start) {
		t.Fatalf("expected clamp to in point %v, got %v", inOut.Start, got)
	}
	if p.Playback.Get() != Forward {
		t.Fatal("expected PingPong to flip back to Forward at the in point")
	}
}

func TestTimeActionClampsToInOutRange(t *testing.T) {
	p, tl := singleClipPlayer(t)
	rate := tl.Rate
	inOut := rational.RangeFromStartEnd(rational.Zero(rate), rational.Time{Value: 10, Rate: rate})
	p.InOutRange.Publish(inOut)
	p.Seek(rational.Time{Value: 9, Rate: rate})

	p.TimeAction(FrameNextX10)

	if want := inOut.ToInclusive().End(); !p.CurrentTime.Get().Equal(want) {
		t.Fatalf("expected FrameNextX10 to clamp at %v, got %v", want, p.CurrentTime.Get())
	}
}
