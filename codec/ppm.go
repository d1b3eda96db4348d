// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/tlio"
)

// RegisterPPM wires the binary PPM (P6) codec in for ".ppm". No library
// in the retrieval pack or stdlib handles PPM, so this is a deliberate
// stdlib-only implementation (spec.md §4.C lists PPM as a baseline
// format precisely because its format is trivial enough not to need one).
func RegisterPPM(reg *ioregistry.Registry) {
	reg.RegisterRead(".ppm", func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		return newStillImageReader(p, decodePPM), nil
	})
	reg.RegisterWrite(".ppm", func(p mpath.Path, info tlio.Info, opts tlio.Options) (tlio.Writer, error) {
		return newStillImageWriter(p, encodePPM), nil
	})
}

// decodePPM reads a binary (P6) PPM: magic, whitespace-separated width,
// height, maxval (only 255 is accepted), then one byte per sample, three
// samples (RGB) per pixel.
func decodePPM(f *os.File) (image.Image, error) {
	r := bufio.NewReader(f)
	var magic string
	var w, h, maxVal int
	if _, err := fmt.Fscan(r, &magic, &w, &h, &maxVal); err != nil {
		return nil, fmt.Errorf("ppm: reading header: %w", err)
	}
	if magic != "P6" {
		return nil, fmt.Errorf("ppm: unsupported magic %q", magic)
	}
	if maxVal != 255 {
		return nil, fmt.Errorf("ppm: unsupported maxval %d", maxVal)
	}
	if _, err := r.ReadByte(); err != nil { // single whitespace byte after header
		return nil, fmt.Errorf("ppm: reading header separator: %w", err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	row := make([]byte, w*3)
	for y := 0; y < h; y++ {
		if _, err := readFull(r, row); err != nil {
			return nil, fmt.Errorf("ppm: reading row %d: %w", y, err)
		}
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: row[x*3], G: row[x*3+1], B: row[x*3+2], A: 255})
		}
	}
	return img, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// encodePPM writes img as a binary (P6) PPM, dropping alpha.
func encodePPM(f *os.File, img image.Image) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if _, err := fmt.Fprintf(f, "P6\n%d %d\n255\n", w, h); err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	row := make([]byte, w*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x*3] = byte(r >> 8)
			row[x*3+1] = byte(g >> 8)
			row[x*3+2] = byte(bl >> 8)
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}
