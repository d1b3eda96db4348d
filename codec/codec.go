// SPDX-License-Identifier: GPL-3.0-or-later

// Package codec implements the concrete tlio.Reader/tlio.Writer plugins
// the engine ships with out of the box, and Register wires them into an
// ioregistry.Registry by extension. Heavier container formats decode
// through FFmpeg (package github.com/asticode/go-astiav); still-image
// sequence formats decode through the stdlib and golang.org/x/image.
package codec

import "github.com/intuitionamiga/tlplay/ioregistry"

// Register installs every codec this package implements into reg. Callers
// that only need a subset can instead call the individual Register*
// functions directly.
func Register(reg *ioregistry.Registry) {
	RegisterPPM(reg)
	RegisterPNG(reg)
	RegisterBMP(reg)
	RegisterTIFF(reg)
	RegisterCineon(reg)
	RegisterFFmpeg(reg)
}
