// SPDX-License-Identifier: GPL-3.0-or-later

package compositor

import (
	"testing"

	"github.com/intuitionamiga/tlplay/tlio"
)

func solidImage(w, h int, r, g, b, a byte) *tlio.Image {
	img := newCanvas(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			setPixel(img, x, y, r, g, b, a)
		}
	}
	return img
}

// TestWipeScenario exercises spec.md §8 scenario 5 exactly.
func TestWipeScenario(t *testing.T) {
	red := solidImage(16, 16, 255, 0, 0, 255)
	blue := solidImage(16, 16, 0, 0, 255, 255)
	opts := Options{Mode: ModeWipe, WipeCenterX: 0.5, WipeCenterY: 0.5, WipeRotation: 0}

	out := Compose(red, blue, opts)

	r, _, _, _ := pixelAt(out, 3, 8)
	if r != 255 {
		t.Fatalf("expected pixel (3,8) red, got r=%d", r)
	}
	_, _, b, _ := pixelAt(out, 12, 8)
	if b != 255 {
		t.Fatalf("expected pixel (12,8) blue, got b=%d", b)
	}
}

func TestModeAandB(t *testing.T) {
	red := solidImage(4, 4, 255, 0, 0, 255)
	blue := solidImage(4, 4, 0, 0, 255, 255)
	if Compose(red, blue, Options{Mode: ModeA}) != red {
		t.Fatal("expected ModeA to return A unchanged")
	}
	if Compose(red, blue, Options{Mode: ModeB}) != blue {
		t.Fatal("expected ModeB to return B unchanged")
	}
}

func TestOverlayFullOpacityIsA(t *testing.T) {
	red := solidImage(4, 4, 255, 0, 0, 255)
	blue := solidImage(4, 4, 0, 0, 255, 255)
	out := Compose(red, blue, Options{Mode: ModeOverlay, Overlay: 1.0})
	r, g, b, _ := pixelAt(out, 0, 0)
	if r != 255 || g != 0 || b != 0 {
		t.Fatalf("expected full-opacity overlay to equal A, got (%d,%d,%d)", r, g, b)
	}
}

func TestDifferenceOfIdenticalImagesIsZero(t *testing.T) {
	img := solidImage(4, 4, 100, 150, 200, 255)
	out := Compose(img, img, Options{Mode: ModeDifference})
	r, g, b, _ := pixelAt(out, 0, 0)
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("expected difference of identical images to be zero, got (%d,%d,%d)", r, g, b)
	}
}

func TestHorizontalCanvasSizeIsSum(t *testing.T) {
	a := solidImage(4, 8, 255, 0, 0, 255)
	b := solidImage(6, 8, 0, 0, 255, 255)
	out := Compose(a, b, Options{Mode: ModeHorizontal})
	if out.Width != 10 || out.Height != 8 {
		t.Fatalf("expected 10x8 canvas, got %dx%d", out.Width, out.Height)
	}
	r, _, _, _ := pixelAt(out, 0, 0)
	if r != 255 {
		t.Fatal("expected A placed at the left")
	}
	_, _, b2, _ := pixelAt(out, 4, 0)
	if b2 != 255 {
		t.Fatal("expected B placed immediately after A")
	}
}

func TestTileArrangesNearSquareGrid(t *testing.T) {
	imgs := []*tlio.Image{
		solidImage(4, 4, 255, 0, 0, 255),
		solidImage(4, 4, 0, 255, 0, 255),
		solidImage(4, 4, 0, 0, 255, 255),
	}
	out := Tile(imgs)
	if out.Width != 8 || out.Height != 8 {
		t.Fatalf("expected a 2x2 grid (8x8) for 3 inputs, got %dx%d", out.Width, out.Height)
	}
}
