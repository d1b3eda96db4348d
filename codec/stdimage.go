// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"image"
	"image/png"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/tlio"
)

// RegisterPNG wires the stdlib PNG codec in for ".png".
func RegisterPNG(reg *ioregistry.Registry) {
	reg.RegisterRead(".png", func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		return newStillImageReader(p, png.Decode), nil
	})
	reg.RegisterWrite(".png", func(p mpath.Path, info tlio.Info, opts tlio.Options) (tlio.Writer, error) {
		return newStillImageWriter(p, func(f *os.File, img image.Image) error { return png.Encode(f, img) }), nil
	})
}

// RegisterBMP wires golang.org/x/image/bmp in for ".bmp". BMP has no
// ecosystem encoder with the stability the teacher's dependency set
// favors, so writes fall back to a read-only registration (spec.md §4.C
// lists BMP as a read format only).
func RegisterBMP(reg *ioregistry.Registry) {
	reg.RegisterRead(".bmp", func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		return newStillImageReader(p, bmp.Decode), nil
	})
}

// RegisterTIFF wires golang.org/x/image/tiff in for ".tif"/".tiff".
func RegisterTIFF(reg *ioregistry.Registry) {
	decode := func(f *os.File) (image.Image, error) { return tiff.Decode(f) }
	encode := func(f *os.File, img image.Image) error { return tiff.Encode(f, img, nil) }
	read := func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		return newStillImageReader(p, decode), nil
	}
	write := func(p mpath.Path, info tlio.Info, opts tlio.Options) (tlio.Writer, error) {
		return newStillImageWriter(p, encode), nil
	}
	reg.RegisterRead(".tif", read)
	reg.RegisterRead(".tiff", read)
	reg.RegisterWrite(".tif", write)
	reg.RegisterWrite(".tiff", write)
}
