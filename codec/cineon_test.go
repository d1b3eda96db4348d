// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeCineonFixture builds a minimal valid Cineon header: the file
// header followed by just enough of the image header to report
// channels and the first channel's width/height.
func writeCineonFixture(t *testing.T, order binary.ByteOrder, width, height, channels int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plate.cin")

	buf := make([]byte, cineonFileHeaderSize+16)
	magic := cineonMagicBE
	if order == binary.LittleEndian {
		magic = cineonMagicLE
	}
	binary.BigEndian.PutUint32(buf[:4], magic)

	imageHeader := buf[cineonFileHeaderSize:]
	imageHeader[1] = byte(channels)
	order.PutUint32(imageHeader[8:12], uint32(width))
	order.PutUint32(buf[cineonFileHeaderSize+12:cineonFileHeaderSize+16], uint32(height))

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestReadCineonHeaderBigEndian(t *testing.T) {
	path := writeCineonFixture(t, binary.BigEndian, 1920, 1080, 3)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	order, width, height, channels, err := readCineonHeader(f)
	if err != nil {
		t.Fatalf("readCineonHeader: %v", err)
	}
	if order != binary.BigEndian {
		t.Fatalf("expected big-endian order")
	}
	if width != 1920 || height != 1080 || channels != 3 {
		t.Fatalf("got %dx%d, %d channels", width, height, channels)
	}
}

func TestReadCineonHeaderLittleEndian(t *testing.T) {
	path := writeCineonFixture(t, binary.LittleEndian, 2048, 1556, 3)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	order, width, height, channels, err := readCineonHeader(f)
	if err != nil {
		t.Fatalf("readCineonHeader: %v", err)
	}
	if order != binary.LittleEndian {
		t.Fatalf("expected little-endian order")
	}
	if width != 2048 || height != 1556 || channels != 3 {
		t.Fatalf("got %dx%d, %d channels", width, height, channels)
	}
}

func TestReadCineonHeaderBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.cin")
	if err := os.WriteFile(path, make([]byte, cineonFileHeaderSize+16), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, _, _, _, err := readCineonHeader(f); err == nil {
		t.Fatal("expected an error for a zeroed (bad-magic) header")
	}
}
