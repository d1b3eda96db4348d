// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestPPMRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.ppm")

	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})
	src.SetNRGBA(2, 0, color.NRGBA{R: 70, G: 80, B: 90, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{R: 100, G: 110, B: 120, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 130, G: 140, B: 150, A: 255})
	src.SetNRGBA(2, 1, color.NRGBA{R: 160, G: 170, B: 180, A: 255})

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := encodePPM(f, src); err != nil {
		f.Close()
		t.Fatalf("encodePPM: %v", err)
	}
	f.Close()

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rf.Close()
	decoded, err := decodePPM(rf)
	if err != nil {
		t.Fatalf("decodePPM: %v", err)
	}

	b := decoded.Bounds()
	if b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("expected 3x2, got %dx%d", b.Dx(), b.Dy())
	}
	r, g, bl, _ := decoded.At(1, 1).RGBA()
	if byte(r>>8) != 130 || byte(g>>8) != 140 || byte(bl>>8) != 150 {
		t.Fatalf("pixel (1,1) mismatch: got %d %d %d", r>>8, g>>8, bl>>8)
	}
}

func TestPPMRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ppm")
	if err := os.WriteFile(path, []byte("P3\n1 1\n255\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := decodePPM(f); err == nil {
		t.Fatal("expected error for non-P6 magic")
	}
}
