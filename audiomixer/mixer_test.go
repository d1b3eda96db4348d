// SPDX-License-Identifier: GPL-3.0-or-later

package audiomixer

import "testing"

type fakeSource struct {
	seconds map[int64][][]float32
	rate    int
	ch      int
}

func (f *fakeSource) AudioSecond(second int64) ([][]float32, int, int, bool) {
	layers, ok := f.seconds[second]
	if !ok {
		return nil, 0, 0, false
	}
	return layers, f.ch, f.rate, true
}

func constantLayer(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMixSumsLayers(t *testing.T) {
	src := &fakeSource{
		seconds: map[int64][][]float32{
			0: {constantLayer(48000, 0.25), constantLayer(48000, 0.25)},
		},
		rate: 48000,
		ch:   1,
	}
	m := New(Config{SampleRate: 48000, Channels: 1}, src)
	out := make([]float32, 100)
	m.Mix(out, 100)
	if out[0] < 0.49 || out[0] > 0.51 {
		t.Fatalf("expected summed layers ~0.5, got %v", out[0])
	}
}

func TestMixUnderrunOnMissingSecond(t *testing.T) {
	src := &fakeSource{seconds: map[int64][][]float32{}, rate: 48000, ch: 1}
	m := New(Config{SampleRate: 48000, Channels: 1}, src)
	out := make([]float32, 100)
	m.Mix(out, 100)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected silence at %d, got %v", i, v)
		}
	}
	if m.Underruns() != 100 {
		t.Fatalf("expected 100 underrun frames, got %d", m.Underruns())
	}
}

func TestMixChannelMuteZeroesChannel(t *testing.T) {
	src := &fakeSource{
		seconds: map[int64][][]float32{0: {constantLayer(48000*2, 1.0)}},
		rate:    48000,
		ch:      2,
	}
	m := New(Config{SampleRate: 48000, Channels: 2}, src)
	m.SetChannelMute([]bool{false, true})
	out := make([]float32, 200)
	m.Mix(out, 100)
	for f := 0; f < 100; f++ {
		if out[f*2+1] != 0 {
			t.Fatalf("expected channel 1 muted at frame %d, got %v", f, out[f*2+1])
		}
	}
}

func TestMixVolumeScales(t *testing.T) {
	src := &fakeSource{
		seconds: map[int64][][]float32{0: {constantLayer(48000, 1.0)}},
		rate:    48000,
		ch:      1,
	}
	m := New(Config{SampleRate: 48000, Channels: 1}, src)
	m.SetVolume(0.5)
	out := make([]float32, 100)
	m.Mix(out, 100)
	if out[50] < 0.45 || out[50] > 0.55 {
		t.Fatalf("expected volume-scaled sample ~0.5, got %v", out[50])
	}
}

func TestSeekResetsResamplerPhase(t *testing.T) {
	src := &fakeSource{rate: 48000, ch: 1, seconds: map[int64][][]float32{}}
	m := New(Config{SampleRate: 44100, Channels: 1}, src)
	m.resamplers[0] = NewResampler(48000, 44100)
	m.resamplers[0].phase = 123.0
	m.Seek(5)
	if m.resamplers[0].phase != 0 {
		t.Fatalf("expected Seek to reset resampler phase, got %v", m.resamplers[0].phase)
	}
	if m.startAnchor != 5 || m.framesConsumed != 0 {
		t.Fatalf("expected anchor reset to 5 with framesConsumed 0, got anchor=%d frames=%d", m.startAnchor, m.framesConsumed)
	}
}
