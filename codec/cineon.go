// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
)

// cineonMagicBE and cineonMagicLE are the two byte-order variants of the
// Cineon file header magic, fixed at the start of every header whichever
// endianness the writer used.
const (
	cineonMagicBE uint32 = 0x802a5fd7
	cineonMagicLE uint32 = 0xd75f2a80
)

// cineonFileHeaderSize is the on-disk size of the File header struct:
// six uint32 fields, an 8-byte version string, a 100-byte name, a
// 24-byte timestamp and a 36-byte pad.
const cineonFileHeaderSize = 4*6 + 8 + 100 + 24 + 36

// RegisterCineon wires in metadata-only support for ".cin": this engine
// resolves Info (dimensions, channel count) from the fixed 2048-byte
// header but does not unpack Cineon's 10-bit log-encoded pixel data —
// an explicit Non-goal, since no example in the retrieval pack
// demonstrates a grounded log-to-linear decode path.
func RegisterCineon(reg *ioregistry.Registry) {
	reg.RegisterRead(".cin", func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		return &cineonReader{path: p}, nil
	})
}

type cineonReader struct {
	path mpath.Path
}

func (r *cineonReader) Info(ctx context.Context) *tlio.Future[tlio.Info] {
	fut := tlio.NewFuture[tlio.Info]()
	go func() {
		name := r.path.String()
		if r.path.HasNumber {
			name = r.path.FramePath(r.path.FrameMin)
		}
		f, err := os.Open(name)
		if err != nil {
			fut.Resolve(tlio.Info{}, tlerr.OpenFailed(name, err))
			return
		}
		defer f.Close()

		order, width, height, channels, err := readCineonHeader(f)
		if err != nil {
			fut.Resolve(tlio.Info{}, tlerr.Decode(err.Error()))
			return
		}
		_ = order
		rate := rational.NewRate(24, 1)
		n := 1.0
		if r.path.HasNumber {
			n = float64(r.path.FrameMax-r.path.FrameMin) + 1
		}
		fut.Resolve(tlio.Info{
			VideoStreams: []tlio.VideoStreamInfo{{
				Width: width, Height: height, PixelType: tlio.PixelRGB16,
				LayerNames: []string{fmt.Sprintf("%d channels", channels)},
			}},
			VideoRange: rational.NewRange(rational.Zero(rate), rational.Time{Value: n, Rate: rate}),
		}, nil)
	}()
	return fut
}

func (r *cineonReader) ReadVideo(ctx context.Context, t rational.Time, layer int) *tlio.Future[tlio.VideoData] {
	fut := tlio.NewFuture[tlio.VideoData]()
	fut.Resolve(tlio.VideoData{}, tlerr.Decode("cineon: pixel decode not supported"))
	return fut
}

func (r *cineonReader) ReadAudio(ctx context.Context, rng rational.Range) *tlio.Future[tlio.AudioData] {
	fut := tlio.NewFuture[tlio.AudioData]()
	fut.Resolve(tlio.AudioData{}, tlerr.NotFound("cineon carries no audio"))
	return fut
}

func (r *cineonReader) Cancel() {}

// readCineonHeader reads just enough of the fixed header to report
// dimensions: the file header (192 bytes), then the image header's
// orient/channels fields and the first channel's size[2].
func readCineonHeader(f *os.File) (order binary.ByteOrder, width, height, channels int, err error) {
	buf := make([]byte, cineonFileHeaderSize+12)
	if _, err = readAtLeast(f, buf); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("cineon: reading header: %w", err)
	}

	magicBE := binary.BigEndian.Uint32(buf[:4])
	switch magicBE {
	case cineonMagicBE:
		order = binary.BigEndian
	case cineonMagicLE:
		order = binary.LittleEndian
	default:
		return nil, 0, 0, 0, fmt.Errorf("cineon: bad magic %#x", magicBE)
	}

	imageHeader := buf[cineonFileHeaderSize:]
	channels = int(imageHeader[1])
	// channel[0].size is at offset orient(1)+channels(1)+pad(2)+descriptor(2)+bitDepth(1)+pad(1) = 8
	width = int(order.Uint32(imageHeader[8:12]))
	// height follows immediately, past the end of buf; read its 4 bytes
	// with a separate ReadAt.
	heightBuf := make([]byte, 4)
	if _, err = f.ReadAt(heightBuf, int64(cineonFileHeaderSize+12)); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("cineon: reading height: %w", err)
	}
	height = int(order.Uint32(heightBuf))
	return order, width, height, channels, nil
}

func readAtLeast(f *os.File, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := f.ReadAt(buf[n:], int64(n))
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
