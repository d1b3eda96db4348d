// SPDX-License-Identifier: GPL-3.0-or-later

//go:build headless

// Package audiomixer: headless stand-in for Device, used by tests and
// the "bake" driver where no audio hardware is attached. Adapted from
// the teacher's headless OtoPlayer stub (audio_backend_headless.go).
package audiomixer

import "sync/atomic"

// Device is a no-op stand-in satisfying the same surface as the oto
// backend, so code built with the headless tag still links.
type Device struct {
	mixer   atomic.Pointer[Mixer]
	started bool
}

// NewDevice returns a Device that performs no actual audio output.
func NewDevice(sampleRate, channels int) (*Device, error) {
	return &Device{}, nil
}

func (d *Device) SetMixer(m *Mixer) { d.mixer.Store(m) }

// SetFrameCallback matches the oto backend's surface; the headless
// device never calls it since nothing pulls frames.
func (d *Device) SetFrameCallback(cb func(int64)) {}

func (d *Device) Start()          { d.started = true }
func (d *Device) Stop()           { d.started = false }
func (d *Device) Close() error    { d.started = false; return nil }
func (d *Device) IsStarted() bool { return d.started }
