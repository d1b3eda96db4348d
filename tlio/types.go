// SPDX-License-Identifier: GPL-3.0-or-later

// Package tlio defines the async I/O trait media plugins satisfy (spec.md
// §4.C IOTrait): a Reader/Writer contract built around one media file or
// numbered sequence, plus the Info/Options types that cross that boundary.
// Concrete codecs live in package codec; dispatch by extension lives in
// package ioregistry.
package tlio

import (
	"context"

	"github.com/intuitionamiga/tlplay/rational"
)

// PixelType enumerates the pixel layouts VideoData images may carry.
type PixelType int

const (
	PixelUnknown PixelType = iota
	PixelL8
	PixelLA8
	PixelRGB8
	PixelRGBA8
	PixelRGB16
	PixelRGBA16
	PixelRGB32F
	PixelRGBA32F
)

// Endianness of multi-byte pixel components, as carried by a codec's
// native layout (e.g. Cineon/DPX are big-endian on disk).
type Endianness int

const (
	NativeEndian Endianness = iota
	LittleEndian
	BigEndian
)

// Layout describes how pixel rows and components are arranged in Image.Data.
type Layout struct {
	MirrorY    bool // row 0 is the bottom row, not the top
	Alignment  int  // row start byte alignment; 0 means unaligned/packed
	Endianness Endianness
}

// Image is an immutable decoded raster. Once constructed it is never
// mutated; Cache and Compositor both hold shared references to the same
// backing Data slice (spec.md §3 "Ownership").
type Image struct {
	Width, Height int
	PixelType     PixelType
	Layout        Layout
	Stride        int // bytes per row; 0 means Width * bytes-per-pixel(PixelType)
	Data          []byte
}

// Transform is a 2x3 affine matrix [a b c; d e f] applied to an Image
// before compositing (e.g. a clip's embedded pan/scale).
type Transform [6]float64

// IdentityTransform returns the no-op affine transform.
func IdentityTransform() Transform { return Transform{1, 0, 0, 0, 1, 0} }

// ImageLayer pairs a decoded image with the transform to apply before
// compositing it against sibling layers.
type ImageLayer struct {
	Image     *Image
	Transform Transform
}

// VideoData is the composited set of layers resolved at a single instant,
// prior to comparison/compositing (spec.md §3).
type VideoData struct {
	Time   rational.Time
	Layers []ImageLayer
}

// SampleFormat enumerates PCM sample encodings.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatS16
	SampleFormatS32
	SampleFormatF32
)

// AudioData is PCM for every audio layer active over a range, at
// SampleOffset on the timeline's audio-sample grid (spec.md §3).
type AudioData struct {
	SampleOffset int64
	SampleRate   int
	Channels     int
	Layers       [][]float32 // interleaved per layer, always decoded to float32
}

// VideoStreamInfo describes one decodable video stream within a media file.
type VideoStreamInfo struct {
	Width, Height int
	PixelType     PixelType
	LayerNames    []string
	Layout        Layout
}

// AudioStreamInfo describes the (at most one) audio stream within a media file.
type AudioStreamInfo struct {
	Channels     int
	SampleRate   int
	SampleFormat SampleFormat
}

// Info is the metadata a Reader resolves once and caches thereafter
// (spec.md §4.C "result is cached after first resolution").
type Info struct {
	VideoStreams []VideoStreamInfo
	Audio        *AudioStreamInfo // nil when the media carries no audio
	VideoRange   rational.Range
	AudioRange   rational.Range
	Tags         map[string]string
}

// Options is a codec's string-keyed configuration, per spec.md §4.C's
// "recognized options are enumerated per codec" list (FFmpeg/ThreadCount,
// OpenEXR/Compression, and so on). Unrecognized keys are ignored by a
// codec rather than rejected, so callers can pass one Options map to a
// registry regardless of which plugin ultimately handles the path.
type Options map[string]string

// Well-known option keys the core itself relies on (spec.md §4.C).
const (
	OptFFmpegThreadCount      = "FFmpeg/ThreadCount"
	OptFFmpegVideoBufferSize  = "FFmpeg/VideoBufferSize"
	OptFFmpegAudioBufferSize  = "FFmpeg/AudioBufferSize"
	OptFFmpegYUVToRGB         = "FFmpeg/YUVToRGB"
	OptJPEGQuality            = "JPEG/Quality"
	OptOpenEXRCompression     = "OpenEXR/Compression"
	OptOpenEXRDWACompression  = "OpenEXR/DWACompressionLevel"
	OptSequenceIODefaultSpeed = "SequenceIO/DefaultSpeed"
	OptSequenceIOThreadCount  = "SequenceIO/ThreadCount"
)

// Reader is the read half of the I/O trait. A Reader is constructed from
// a mpath.Path plus Options; implementations live in package codec and
// are obtained through package ioregistry.
type Reader interface {
	// Info resolves stream metadata. The result is cached internally
	// after the first resolution; later calls return the cached Future.
	Info(ctx context.Context) *Future[Info]

	// ReadVideo resolves the frame at time on the given layer. Fails
	// with tlerr.ErrNotFound if time is outside the video range,
	// tlerr.ErrDecode on a codec error, tlerr.ErrCancelled if Cancel
	// was called before completion.
	ReadVideo(ctx context.Context, time rational.Time, layer int) *Future[VideoData]

	// ReadAudio resolves PCM across r, which must be expressible in the
	// media's audio sample rate.
	ReadAudio(ctx context.Context, r rational.Range) *Future[AudioData]

	// Cancel is best-effort: in-flight Futures resolve with
	// tlerr.ErrCancelled where possible. Subsequent reads are permitted.
	Cancel()
}

// Writer is the write half of the I/O trait. Constructed from a
// mpath.Path, an Info describing what will be written, and Options.
// After any error a Writer is considered failed; subsequent calls are
// undefined (spec.md §4.C).
type Writer interface {
	WriteVideo(time rational.Time, data VideoData) error
	WriteAudio(r rational.Range, data AudioData) error
	Close() error
}
