// SPDX-License-Identifier: GPL-3.0-or-later

// Package audiomixer implements the Player's pull-mode audio mixer
// (spec.md §4.G): the device thread calls Mix on its own cadence, the
// mixer fetches cached PCM, resamples per layer with phase preserved
// across calls, sums layers, applies mute/volume, and reports underruns
// when the needed second isn't cached yet.
package audiomixer

import (
	"sync"
)

// ClickSuppressionMax bounds the mute fade duration (spec.md §4.G: "must
// be bounded by 20 ms"); the concrete choice below is implementation-defined.
const ClickSuppressionMax = 20 * 1_000_000 // nanoseconds, documented for callers using time.Duration(ClickSuppressionMax)

// clickSuppressionMillis is the chosen fade length: 10 ms, comfortably
// inside the ≤20ms bound spec.md §9 leaves implementation-defined.
const clickSuppressionMillis = 10

// SecondSource supplies one second of decoded PCM for a given layer
// index and integer second, or ok=false if it isn't cached yet (this is
// Player's Cache, kept decoupled here so the mixer has no dependency on
// cache's concrete type).
type SecondSource interface {
	AudioSecond(second int64) (layers [][]float32, channels int, sampleRate int, ok bool)
}

// Resampler converts one layer's PCM from its native sample rate to the
// device's, preserving phase across calls. A fresh Resampler per layer
// is reset whenever the mixer seeks.
type Resampler struct {
	srcRate, dstRate int
	phase            float64 // fractional source-sample position carried across calls
}

// NewResampler returns a Resampler converting srcRate to dstRate.
func NewResampler(srcRate, dstRate int) *Resampler {
	return &Resampler{srcRate: srcRate, dstRate: dstRate}
}

// Reset clears carried phase, e.g. after a seek.
func (r *Resampler) Reset() { r.phase = 0 }

// Resample produces exactly frameCount destination samples (linear
// interpolation) from src, a single-channel or interleaved buffer at
// srcRate, advancing r.phase for the next call.
func (r *Resampler) Resample(src []float32, channels int, frameCount int, out []float32) {
	if r.srcRate <= 0 || r.dstRate <= 0 || channels <= 0 {
		for i := range out {
			out[i] = 0
		}
		return
	}
	ratio := float64(r.srcRate) / float64(r.dstRate)
	srcFrames := len(src) / channels
	pos := r.phase
	for f := 0; f < frameCount; f++ {
		i0 := int(pos)
		frac := pos - float64(i0)
		for ch := 0; ch < channels; ch++ {
			var s0, s1 float32
			if i0 < srcFrames {
				s0 = src[i0*channels+ch]
			}
			if i0+1 < srcFrames {
				s1 = src[(i0+1)*channels+ch]
			} else {
				s1 = s0
			}
			out[f*channels+ch] = s0 + float32(frac)*(s1-s0)
		}
		pos += ratio
	}
	r.phase = pos - float64(srcFrames)
	if r.phase < 0 {
		r.phase = 0
	}
}

// Config describes the device format the mixer must produce.
type Config struct {
	SampleRate int
	Channels   int
}

// Mixer holds its own small mutex guarding mute/volume/offset state;
// Mix itself is called from the audio device thread (spec.md §5) and
// owns the per-layer resampler state exclusively.
type Mixer struct {
	mu sync.Mutex

	cfg    Config
	source SecondSource

	startAnchor    int64 // timeline second the mixer is currently anchored to
	framesConsumed int64
	audioOffset    float64 // seconds, applied before resolving the current second

	volume      float64
	channelMute []bool
	muted       bool

	muteRamp      float64 // 0 = silent, 1 = full volume; ramps over clickSuppressionMillis
	muteRampDir   int     // +1 fading in, -1 fading out, 0 steady

	resamplers map[int]*Resampler // keyed by layer index

	underruns int64
}

// New returns a Mixer producing cfg's format, reading seconds from source.
func New(cfg Config, source SecondSource) *Mixer {
	return &Mixer{
		cfg:        cfg,
		source:     source,
		volume:     1.0,
		muteRamp:   1.0,
		resamplers: map[int]*Resampler{},
	}
}

// SetVolume sets the scalar linear volume (not dB), per spec.md §4.G.
func (m *Mixer) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

// SetMute toggles the master mute, engaging the click-suppression ramp
// rather than switching instantaneously.
func (m *Mixer) SetMute(mute bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mute == m.muted {
		return
	}
	m.muted = mute
	if mute {
		m.muteRampDir = -1
	} else {
		m.muteRampDir = 1
	}
}

// SetChannelMute sets the per-channel mute mask.
func (m *Mixer) SetChannelMute(mask []bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelMute = append([]bool(nil), mask...)
}

// SetAudioOffset sets a constant seconds offset applied before resolving
// the current second to read from the cache.
func (m *Mixer) SetAudioOffset(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioOffset = seconds
}

// Underruns reports the cumulative count of uncached-second frames that
// were emitted as silence.
func (m *Mixer) Underruns() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.underruns
}

// Seek re-anchors the mixer at startSecond and resets every per-layer
// resampler's phase, matching the Player dropping buffered PCM on seek
// (spec.md §4.I.c).
func (m *Mixer) Seek(startSecond int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startAnchor = startSecond
	m.framesConsumed = 0
	for _, r := range m.resamplers {
		r.Reset()
	}
}

// Mix fills out (interleaved, Config.Channels wide) with frameCount
// frames of mixed, resampled, volume/mute-applied audio, reproducing the
// five steps of spec.md §4.G in order.
func (m *Mixer) Mix(out []float32, frameCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range out {
		out[i] = 0
	}
	if m.cfg.SampleRate <= 0 || m.cfg.Channels <= 0 {
		return
	}

	second := m.currentSecondLocked()
	layers, srcChannels, srcRate, ok := m.sourceOr(second)
	if !ok {
		m.underruns += int64(frameCount)
		m.framesConsumed += int64(frameCount)
		return
	}

	mixed := make([]float32, frameCount*m.cfg.Channels)
	scratch := make([]float32, frameCount*m.cfg.Channels)
	for idx, layer := range layers {
		r, exists := m.resamplers[idx]
		if !exists {
			r = NewResampler(srcRate, m.cfg.SampleRate)
			m.resamplers[idx] = r
		}
		if srcChannels != m.cfg.Channels {
			r.srcRate, r.dstRate = srcRate, m.cfg.SampleRate
		}
		r.Resample(layer, srcChannels, frameCount, scratch)
		for i := range mixed {
			mixed[i] += scratch[i]
		}
	}

	m.applyMuteAndVolumeLocked(mixed, frameCount)
	copy(out, mixed)
	m.framesConsumed += int64(frameCount)
}

func (m *Mixer) sourceOr(second int64) ([][]float32, int, int, bool) {
	if m.source == nil {
		return nil, 0, 0, false
	}
	return m.source.AudioSecond(second)
}

func (m *Mixer) currentSecondLocked() int64 {
	elapsed := float64(m.framesConsumed) / float64(m.cfg.SampleRate)
	return m.startAnchor + int64(elapsed+m.audioOffset)
}

// applyMuteAndVolumeLocked applies channel mute and scalar volume,
// moving the mute ramp one step per frame so a full mute/unmute
// transition is spread over clickSuppressionMillis of audio (possibly
// across several calls) and never clicks (spec.md §4.G, ≤20ms bound).
func (m *Mixer) applyMuteAndVolumeLocked(mixed []float32, frameCount int) {
	rampFrames := m.cfg.SampleRate * clickSuppressionMillis / 1000
	if rampFrames <= 0 {
		rampFrames = 1
	}
	step := 1.0 / float64(rampFrames)

	for f := 0; f < frameCount; f++ {
		if m.muteRampDir != 0 {
			m.muteRamp += float64(m.muteRampDir) * step
			if m.muteRamp <= 0 {
				m.muteRamp = 0
				m.muteRampDir = 0
			} else if m.muteRamp >= 1 {
				m.muteRamp = 1
				m.muteRampDir = 0
			}
		}
		gain := m.volume * m.muteRamp
		for ch := 0; ch < m.cfg.Channels; ch++ {
			i := f*m.cfg.Channels + ch
			if ch < len(m.channelMute) && m.channelMute[ch] {
				mixed[i] = 0
				continue
			}
			v := mixed[i] * float32(gain)
			switch {
			case v > 1:
				v = 1
			case v < -1:
				v = -1
			}
			mixed[i] = v
		}
	}
}
