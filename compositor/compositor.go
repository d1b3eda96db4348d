// SPDX-License-Identifier: GPL-3.0-or-later

// Package compositor implements the comparison modes Player's viewport
// consumer uses to combine a primary and optional secondary VideoData
// into one image (spec.md §4.J): A, B, Wipe, Overlay, Difference,
// Horizontal, Vertical, Tile. It is a pure image-op contract, grounded
// on the teacher's video_compositor.go blend/scale routines (strip
// parallelism over large frames, Bresenham-style integer scaling), now
// working on tlio.Image's RGBA8 bytes instead of a fixed-size VRAM frame.
package compositor

import (
	"math"
	"sync"

	"github.com/intuitionamiga/tlplay/tlio"
)

const bytesPerPixel = 4 // RGBA8; the only format this package blends directly

// Mode selects the comparison rule (spec.md §4.J).
type Mode int

const (
	ModeA Mode = iota
	ModeB
	ModeWipe
	ModeOverlay
	ModeDifference
	ModeHorizontal
	ModeVertical
	ModeTile
)

// TimeMode controls how a secondary input's clock maps onto the primary's.
type TimeMode int

const (
	CompareRelative TimeMode = iota // B's clock mapped onto A's start
	CompareAbsolute                 // B sampled at the same absolute time as A
)

// Options configures a comparison.
type Options struct {
	Mode         Mode
	WipeCenterX  float64 // [0,1], fraction of width
	WipeCenterY  float64 // [0,1], fraction of height
	WipeRotation float64 // degrees
	Overlay      float64 // [0,1], A's opacity over B
	Time         TimeMode
}

// DefaultOptions returns a centered, unrotated Wipe / 50% Overlay baseline.
func DefaultOptions() Options {
	return Options{WipeCenterX: 0.5, WipeCenterY: 0.5, Overlay: 0.5}
}

// Compose combines a and b (b may be nil for modes that don't need it,
// and is ignored for ModeA/ModeTile-with-one-input) into a single image
// per opts.Mode.
func Compose(a, b *tlio.Image, opts Options) *tlio.Image {
	switch opts.Mode {
	case ModeA:
		return a
	case ModeB:
		if b != nil {
			return b
		}
		return a
	case ModeWipe:
		return composeWipe(a, b, opts)
	case ModeOverlay:
		return composeOverlay(a, b, opts)
	case ModeDifference:
		return composeDifference(a, b)
	case ModeHorizontal:
		return composeSideBySide(a, b, true)
	case ModeVertical:
		return composeSideBySide(a, b, false)
	case ModeTile:
		return Tile([]*tlio.Image{a, b})
	default:
		return a
	}
}

func newCanvas(w, h int) *tlio.Image {
	return &tlio.Image{
		Width: w, Height: h,
		PixelType: tlio.PixelRGBA8,
		Stride:    w * bytesPerPixel,
		Data:      make([]byte, w*h*bytesPerPixel),
	}
}

func pixelAt(img *tlio.Image, x, y int) (r, g, b, a byte) {
	stride := img.Stride
	if stride == 0 {
		stride = img.Width * bytesPerPixel
	}
	i := y*stride + x*bytesPerPixel
	if i < 0 || i+3 >= len(img.Data) {
		return 0, 0, 0, 0
	}
	return img.Data[i], img.Data[i+1], img.Data[i+2], img.Data[i+3]
}

func setPixel(img *tlio.Image, x, y int, r, g, b, a byte) {
	i := y*img.Stride + x*bytesPerPixel
	if i < 0 || i+3 >= len(img.Data) {
		return
	}
	img.Data[i], img.Data[i+1], img.Data[i+2], img.Data[i+3] = r, g, b, a
}

// composeWipe partitions the canvas by a line through (WipeCenterX,
// WipeCenterY) rotated by WipeRotation degrees: A on one side, B on the
// other. At rotation 0 this is a vertical wipe with A on the left.
func composeWipe(a, b *tlio.Image, opts Options) *tlio.Image {
	w, h := a.Width, a.Height
	out := newCanvas(w, h)
	if b == nil {
		b = a
	}

	cx := opts.WipeCenterX * float64(w)
	cy := opts.WipeCenterY * float64(h)
	theta := opts.WipeRotation * (math.Pi / 180)
	// Line direction vector, rotated from vertical (0,1).
	dx, dy := -math.Sin(theta), math.Cos(theta)

	forEachRowParallel(h, func(y int) {
		for x := 0; x < w; x++ {
			// Signed distance of (x,y) from the line through (cx,cy)
			// with direction (dx,dy): project the perpendicular.
			side := float64(x)*dy - float64(y)*dx - (cx*dy - cy*dx)
			var r, g, bl, al byte
			if side <= 0 {
				r, g, bl, al = pixelAt(a, x, y)
			} else {
				r, g, bl, al = pixelAt(b, x, y)
			}
			setPixel(out, x, y, r, g, bl, al)
		}
	})
	return out
}

// composeOverlay alpha-blends A over B with Overlay controlling A's opacity.
func composeOverlay(a, b *tlio.Image, opts Options) *tlio.Image {
	w, h := a.Width, a.Height
	out := newCanvas(w, h)
	if b == nil {
		b = a
	}
	alpha := clamp01(opts.Overlay)

	forEachRowParallel(h, func(y int) {
		for x := 0; x < w; x++ {
			ar, ag, ab, _ := pixelAt(a, x, y)
			br, bg, bb, _ := pixelAt(b, x, y)
			r := blend(ar, br, alpha)
			g := blend(ag, bg, alpha)
			bl := blend(ab, bb, alpha)
			setPixel(out, x, y, r, g, bl, 255)
		}
	})
	return out
}

func blend(a, b byte, alpha float64) byte {
	v := float64(a)*alpha + float64(b)*(1-alpha)
	return byte(clampByte(v))
}

// composeDifference computes per-pixel |A - B|.
func composeDifference(a, b *tlio.Image) *tlio.Image {
	w, h := a.Width, a.Height
	out := newCanvas(w, h)
	if b == nil {
		b = a
	}
	forEachRowParallel(h, func(y int) {
		for x := 0; x < w; x++ {
			ar, ag, ab, _ := pixelAt(a, x, y)
			br, bg, bb, _ := pixelAt(b, x, y)
			setPixel(out, x, y, absByte(ar, br), absByte(ag, bg), absByte(ab, bb), 255)
		}
	})
	return out
}

func absByte(a, b byte) byte {
	if a > b {
		return a - b
	}
	return b - a
}

// composeSideBySide places a and b next to each other; the output canvas
// size is the sum along the placement axis.
func composeSideBySide(a, b *tlio.Image, horizontal bool) *tlio.Image {
	if b == nil {
		b = a
	}
	var w, h int
	if horizontal {
		w, h = a.Width+b.Width, max(a.Height, b.Height)
	} else {
		w, h = max(a.Width, b.Width), a.Height+b.Height
	}
	out := newCanvas(w, h)

	copyInto(out, a, 0, 0)
	if horizontal {
		copyInto(out, b, a.Width, 0)
	} else {
		copyInto(out, b, 0, a.Height)
	}
	return out
}

func copyInto(dst, src *tlio.Image, offsetX, offsetY int) {
	forEachRowParallel(src.Height, func(y int) {
		for x := 0; x < src.Width; x++ {
			r, g, b, a := pixelAt(src, x, y)
			setPixel(dst, x+offsetX, y+offsetY, r, g, b, a)
		}
	})
}

// Tile arranges N inputs in a near-square grid.
func Tile(images []*tlio.Image) *tlio.Image {
	var present []*tlio.Image
	for _, img := range images {
		if img != nil {
			present = append(present, img)
		}
	}
	if len(present) == 0 {
		return nil
	}
	cols := ceilSqrt(len(present))
	rows := (len(present) + cols - 1) / cols

	cellW, cellH := present[0].Width, present[0].Height
	out := newCanvas(cellW*cols, cellH*rows)
	for i, img := range present {
		row, col := i/cols, i%cols
		copyInto(out, img, col*cellW, row*cellH)
	}
	return out
}

func ceilSqrt(n int) int {
	c := 1
	for c*c < n {
		c++
	}
	return c
}

// forEachRowParallel mirrors the teacher's strip-parallel blend: rows
// are cheap to blend independently, so large frames split into
// goroutine-per-strip work; small frames run inline.
func forEachRowParallel(height int, rowFn func(y int)) {
	const stripHeight = 60
	if height <= stripHeight {
		for y := 0; y < height; y++ {
			rowFn(y)
		}
		return
	}
	var wg sync.WaitGroup
	for y0 := 0; y0 < height; y0 += stripHeight {
		y1 := min(y0+stripHeight, height)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				rowFn(y)
			}
		}(y0, y1)
	}
	wg.Wait()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampByte(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
