// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"context"
	"image"
	"image/draw"
	"os"
	"sync"
	"sync/atomic"

	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
)

type decodeFunc func(*os.File) (image.Image, error)
type encodeFunc func(*os.File, image.Image) error

// stillImageReader backs every format whose decode surface is "one file,
// one frame": PNG, BMP, TIFF, PPM. A padded numbered Path is read one
// file per requested frame via Path.FramePath; an un-numbered Path always
// reads the same file (spec.md §4.B "a still image is a one-frame
// sequence"). Each ReadVideo dispatches its own goroutine, the same
// fire-and-forget shape the teacher's media loader uses for background
// loads (media_loader.go's loadAndStart).
type stillImageReader struct {
	path   mpath.Path
	decode decodeFunc

	mu        sync.Mutex
	infoFut   *tlio.Future[tlio.Info]
	cancelGen atomic.Uint64 // bumped by Cancel; fails only reads issued before it
}

func newStillImageReader(path mpath.Path, decode decodeFunc) *stillImageReader {
	return &stillImageReader{path: path, decode: decode}
}

func (r *stillImageReader) filenameFor(frame int) string {
	if r.path.HasNumber {
		return r.path.FramePath(frame)
	}
	return r.path.String()
}

func (r *stillImageReader) Info(ctx context.Context) *tlio.Future[tlio.Info] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.infoFut != nil {
		return r.infoFut
	}

	fut := tlio.NewFuture[tlio.Info]()
	r.infoFut = fut

	go func() {
		frame := r.path.FrameMin
		f, err := os.Open(r.filenameFor(frame))
		if err != nil {
			fut.Resolve(tlio.Info{}, tlerr.OpenFailed(r.filenameFor(frame), err))
			return
		}
		defer f.Close()
		img, err := r.decode(f)
		if err != nil {
			fut.Resolve(tlio.Info{}, tlerr.Decode(err.Error()))
			return
		}
		b := img.Bounds()
		rate := rational.NewRate(24, 1) // still-image sequences default to 24fps unless the timeline overrides it
		videoRange := rational.NewRange(rational.Zero(rate), rational.Time{Value: 1, Rate: rate})
		if r.path.HasNumber {
			n := float64(r.path.FrameMax-r.path.FrameMin) + 1
			videoRange = rational.NewRange(rational.Zero(rate), rational.Time{Value: n, Rate: rate})
		}
		fut.Resolve(tlio.Info{
			VideoStreams: []tlio.VideoStreamInfo{{
				Width: b.Dx(), Height: b.Dy(), PixelType: tlio.PixelRGBA8,
			}},
			VideoRange: videoRange,
		}, nil)
	}()
	return fut
}

func (r *stillImageReader) ReadVideo(ctx context.Context, t rational.Time, layer int) *tlio.Future[tlio.VideoData] {
	fut := tlio.NewFuture[tlio.VideoData]()
	gen := r.cancelGen.Load()
	go func() {
		if r.cancelGen.Load() != gen {
			fut.Resolve(tlio.VideoData{}, tlerr.ErrCancelled)
			return
		}
		frame := r.path.FrameMin + int(t.RoundToFrame().Value)
		name := r.filenameFor(frame)
		f, err := os.Open(name)
		if err != nil {
			fut.Resolve(tlio.VideoData{}, tlerr.OpenFailed(name, err))
			return
		}
		defer f.Close()

		decoded, err := r.decode(f)
		if err != nil {
			fut.Resolve(tlio.VideoData{}, tlerr.Decode(err.Error()))
			return
		}
		if r.cancelGen.Load() != gen {
			fut.Resolve(tlio.VideoData{}, tlerr.ErrCancelled)
			return
		}
		img := toRGBA8(decoded)
		fut.Resolve(tlio.VideoData{
			Time:   t,
			Layers: []tlio.ImageLayer{{Image: img, Transform: tlio.IdentityTransform()}},
		}, nil)
	}()
	return fut
}

func (r *stillImageReader) ReadAudio(ctx context.Context, rng rational.Range) *tlio.Future[tlio.AudioData] {
	fut := tlio.NewFuture[tlio.AudioData]()
	fut.Resolve(tlio.AudioData{}, tlerr.NotFound("still-image codecs carry no audio"))
	return fut
}

func (r *stillImageReader) Cancel() { r.cancelGen.Add(1) }

// toRGBA8 normalizes a decoded image.Image to a tightly packed RGBA8
// tlio.Image, matching the cache and compositor's one pixel format
// assumption (spec.md §4.J).
func toRGBA8(src image.Image) *tlio.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != w*4 {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		rgba = dst
	}
	return &tlio.Image{
		Width: w, Height: h,
		PixelType: tlio.PixelRGBA8,
		Stride:    w * 4,
		Data:      rgba.Pix,
	}
}

// stillImageWriter writes one file per WriteVideo call, named by path's
// numbered sequence (or the bare path when the sequence has no number).
type stillImageWriter struct {
	path   mpath.Path
	encode encodeFunc
	mu     sync.Mutex
	failed bool
}

func newStillImageWriter(path mpath.Path, encode encodeFunc) *stillImageWriter {
	return &stillImageWriter{path: path, encode: encode}
}

func (w *stillImageWriter) WriteVideo(time rational.Time, data tlio.VideoData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed {
		return tlerr.IOError(errIOErrorAfterFailure)
	}
	if len(data.Layers) == 0 || data.Layers[0].Image == nil {
		w.failed = true
		return tlerr.Decode("no layer to write")
	}
	frame := w.path.FrameMin + int(time.RoundToFrame().Value)
	name := w.filenameFor(frame)
	f, err := os.Create(name)
	if err != nil {
		w.failed = true
		return tlerr.OpenFailed(name, err)
	}
	defer f.Close()

	img := fromRGBA8(data.Layers[0].Image)
	if err := w.encode(f, img); err != nil {
		w.failed = true
		return tlerr.Decode(err.Error())
	}
	return nil
}

func (w *stillImageWriter) filenameFor(frame int) string {
	if w.path.HasNumber {
		return w.path.FramePath(frame)
	}
	return w.path.String()
}

func (w *stillImageWriter) WriteAudio(r rational.Range, data tlio.AudioData) error {
	return tlerr.Decode("still-image codecs cannot write audio")
}

func (w *stillImageWriter) Close() error { return nil }

func fromRGBA8(img *tlio.Image) *image.RGBA {
	stride := img.Stride
	if stride == 0 {
		stride = img.Width * 4
	}
	return &image.RGBA{
		Pix:    img.Data,
		Stride: stride,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

var errIOErrorAfterFailure = &writerFailedError{}

type writerFailedError struct{}

func (*writerFailedError) Error() string { return "writer already failed" }
