// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !headless

// Package audiomixer: oto/v3 device backend. Adapted from the teacher's
// OtoPlayer (audio_backend_oto.go): an io.Reader-shaped pull callback
// handed to oto.NewPlayer, an atomic.Pointer for the lock-free hot path,
// and a mutex reserved for setup/control only.
package audiomixer

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

// Device drives a Mixer from the OS audio callback via oto/v3.
type Device struct {
	ctx    *oto.Context
	player *oto.Player

	mixer     atomic.Pointer[Mixer] // lock-free hot path, mirrors the teacher's chip pointer
	sampleBuf []float32

	frameCallback atomic.Pointer[func(int64)]

	mu      sync.Mutex
	started bool
}

// NewDevice opens an oto context at sampleRate/channels and returns a
// Device ready to have SetMixer called on it.
func NewDevice(sampleRate, channels int) (*Device, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &Device{ctx: ctx}, nil
}

// SetFrameCallback installs a hook invoked from the device thread after
// every Read with the number of frames it consumed (muted or not), so a
// clock.AudioClock can advance without this package importing clock
// directly (spec.md §4.H's AudioClock is driven by frames actually
// consumed by the device).
func (d *Device) SetFrameCallback(cb func(int64)) {
	d.frameCallback.Store(&cb)
}

// SetMixer installs the Mixer the device callback pulls from.
func (d *Device) SetMixer(m *Mixer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mixer.Store(m)
	d.player = d.ctx.NewPlayer(d)
	d.sampleBuf = make([]float32, 4096)
}

// Read implements io.Reader for oto's pull-mode player: it is the device
// thread calling Mixer.Mix (spec.md §4.G "the device thread calls mix").
func (d *Device) Read(p []byte) (int, error) {
	m := d.mixer.Load()
	if m == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	channels := m.cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	frameCount := len(p) / 4 / channels
	numSamples := frameCount * channels
	if numSamples == 0 {
		return 0, nil
	}

	if len(d.sampleBuf) < numSamples {
		d.sampleBuf = make([]float32, numSamples)
	}
	samples := d.sampleBuf[:numSamples]
	m.Mix(samples, frameCount)

	n := copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:numSamples*4])
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	if cb := d.frameCallback.Load(); cb != nil {
		(*cb)(int64(frameCount))
	}
	return len(p), nil
}

func (d *Device) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started && d.player != nil {
		d.player.Play()
		d.started = true
	}
}

func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started && d.player != nil {
		d.player.Close()
		d.started = false
	}
}

func (d *Device) Close() error {
	d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		err := d.player.Close()
		d.player = nil
		return err
	}
	return nil
}

func (d *Device) IsStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}
