// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	astiav "github.com/asticode/go-astiav"

	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
)

// ffmpegExtensions lists the muxed container formats this reader
// handles; all dispatch through the same FFmpeg demux/decode path.
var ffmpegExtensions = []string{".mp4", ".mov", ".mkv", ".avi", ".webm"}

// RegisterFFmpeg wires go-astiav demux/decode/mux in for the muxed
// container formats, grounded on the teacher's decode loop: open input,
// find streams, decode packets through SendPacket/ReceiveFrame, and
// scale every frame to RGBA8 through a single reusable
// SoftwareScaleContext rather than touch planar YUV from Go.
func RegisterFFmpeg(reg *ioregistry.Registry) {
	read := func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		return newFFmpegReader(p, opts)
	}
	write := func(p mpath.Path, info tlio.Info, opts tlio.Options) (tlio.Writer, error) {
		return newFFmpegWriter(p, info, opts)
	}
	for _, ext := range ffmpegExtensions {
		reg.RegisterRead(ext, read)
		reg.RegisterWrite(ext, write)
	}
}

// ffmpegReader keeps one open demuxer/decoder pair for the lifetime of
// the Reader; ReadVideo seeks and decodes forward to the requested
// frame, the same "software decode only" path the teacher always runs
// decoded frames through before touching pixels from Go.
type ffmpegReader struct {
	mu sync.Mutex

	path mpath.Path

	fc        *astiav.FormatContext
	videoIdx  int
	decCtx    *astiav.CodecContext
	rate      rational.Rate
	videoInfo tlio.VideoStreamInfo
	duration  rational.Time

	scaler    *astiav.SoftwareScaleContext
	scaledDst *astiav.Frame
	scaledW   int
	scaledH   int

	audioIdx   int // -1 when the container carries no audio stream
	audioDec   *astiav.CodecContext
	audioSwr   *astiav.SoftwareResampleContext
	audioDst   *astiav.Frame
	audioInfo  tlio.AudioStreamInfo
	audioRange rational.Range

	cancelled bool
}

func newFFmpegReader(p mpath.Path, opts tlio.Options) (*ffmpegReader, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, tlerr.OpenFailed(p.String(), errors.New("AllocFormatContext failed"))
	}
	dict := astiav.NewDictionary()
	defer dict.Free()
	if v, ok := opts[tlio.OptFFmpegThreadCount]; ok {
		_ = dict.Set("threads", v, 0)
	}
	if v, ok := opts[tlio.OptFFmpegVideoBufferSize]; ok {
		_ = dict.Set("probesize", v, 0)
	}

	if err := fc.OpenInput(p.String(), nil, dict); err != nil {
		fc.Free()
		return nil, tlerr.OpenFailed(p.String(), err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.Free()
		return nil, tlerr.OpenFailed(p.String(), err)
	}

	videoIdx := -1
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			videoIdx = i
			break
		}
	}
	if videoIdx < 0 {
		fc.Free()
		return nil, tlerr.Decode("no video stream")
	}

	vst := fc.Streams()[videoIdx]
	vpar := vst.CodecParameters()
	dec := astiav.FindDecoder(vpar.CodecID())
	if dec == nil {
		fc.Free()
		return nil, tlerr.Decode("no decoder for codec")
	}
	decCtx := astiav.AllocCodecContext(dec)
	if decCtx == nil {
		fc.Free()
		return nil, tlerr.Decode("AllocCodecContext failed")
	}
	if err := vpar.ToCodecContext(decCtx); err != nil {
		decCtx.Free()
		fc.Free()
		return nil, tlerr.Decode(err.Error())
	}
	if err := decCtx.Open(dec, nil); err != nil {
		decCtx.Free()
		fc.Free()
		return nil, tlerr.Decode(err.Error())
	}

	fr := vst.AvgFrameRate()
	if fr.Num() <= 0 || fr.Den() <= 0 {
		fr = decCtx.Framerate()
	}
	if fr.Num() <= 0 || fr.Den() <= 0 {
		fr = astiav.NewRational(24, 1)
	}
	rate := rational.NewRate(int32(fr.Num()), int32(fr.Den()))

	frameCount := vst.NbFrames()
	if frameCount <= 0 {
		durSec := float64(vst.Duration()) * vst.TimeBase().ToDouble()
		frameCount = int64(durSec * rate.Float())
	}

	r := &ffmpegReader{
		path:     p,
		fc:       fc,
		videoIdx: videoIdx,
		decCtx:   decCtx,
		rate:     rate,
		videoInfo: tlio.VideoStreamInfo{
			Width: vpar.Width(), Height: vpar.Height(), PixelType: tlio.PixelRGBA8,
		},
		duration: rational.Time{Value: float64(frameCount), Rate: rate},
		audioIdx: -1,
	}
	r.openAudioStream()
	return r, nil
}

// openAudioStream opens the container's first audio stream, if any,
// grounded on the teacher's RTSP recorder audio path (video.go: find
// stream by MediaTypeAudio, open a plain SW decoder, lazily allocate a
// SoftwareResampleContext that configures itself on the first
// ConvertFrame call). A container without audio leaves r.audioIdx at -1;
// ReadAudio then reports tlerr.NotFound rather than failing Open.
func (r *ffmpegReader) openAudioStream() {
	idx := -1
	for i, s := range r.fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	ast := r.fc.Streams()[idx]
	apar := ast.CodecParameters()
	dec := astiav.FindDecoder(apar.CodecID())
	if dec == nil {
		return
	}
	decCtx := astiav.AllocCodecContext(dec)
	if decCtx == nil {
		return
	}
	if err := apar.ToCodecContext(decCtx); err != nil {
		decCtx.Free()
		return
	}
	if err := decCtx.Open(dec, nil); err != nil {
		decCtx.Free()
		return
	}

	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		decCtx.Free()
		return
	}

	r.audioIdx = idx
	r.audioDec = decCtx
	r.audioSwr = swr
	r.audioDst = astiav.AllocFrame()
	r.audioInfo = tlio.AudioStreamInfo{
		Channels:     decCtx.ChannelLayout().Channels(),
		SampleRate:   decCtx.SampleRate(),
		SampleFormat: tlio.SampleFormatF32,
	}
	durSec := float64(ast.Duration()) * ast.TimeBase().ToDouble()
	r.audioRange = rational.NewRange(rational.Zero(r.rate), rational.Time{Value: durSec * r.rate.Float(), Rate: r.rate})
}

func (r *ffmpegReader) Info(ctx context.Context) *tlio.Future[tlio.Info] {
	fut := tlio.NewFuture[tlio.Info]()
	info := tlio.Info{
		VideoStreams: []tlio.VideoStreamInfo{r.videoInfo},
		VideoRange:   rational.NewRange(rational.Zero(r.rate), r.duration),
	}
	if r.audioIdx >= 0 {
		audioInfo := r.audioInfo
		info.Audio = &audioInfo
		info.AudioRange = r.audioRange
	}
	fut.Resolve(info, nil)
	return fut
}

// ReadVideo seeks to the nearest keyframe at or before time and decodes
// forward until it passes time, matching the teacher's SendPacket/
// ReceiveFrame decode loop; each call runs synchronously but is itself
// dispatched from a goroutine so it never blocks the caller's thread.
func (r *ffmpegReader) ReadVideo(ctx context.Context, t rational.Time, layer int) *tlio.Future[tlio.VideoData] {
	fut := tlio.NewFuture[tlio.VideoData]()
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.cancelled {
			fut.Resolve(tlio.VideoData{}, tlerr.ErrCancelled)
			return
		}

		targetSeconds := t.Seconds()
		if targetSeconds < 0 || t.After(r.duration) {
			fut.Resolve(tlio.VideoData{}, tlerr.NotFound(fmt.Sprintf("time %v outside video range", t)))
			return
		}

		vst := r.fc.Streams()[r.videoIdx]
		targetTs := int64(targetSeconds / vst.TimeBase().ToDouble())
		if err := r.fc.SeekFrame(r.videoIdx, targetTs, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
			fut.Resolve(tlio.VideoData{}, tlerr.Decode("seek failed: "+err.Error()))
			return
		}
		r.decCtx.FlushBuffers()

		img, err := r.decodeUntilLocked(targetTs)
		if err != nil {
			fut.Resolve(tlio.VideoData{}, tlerr.Decode(err.Error()))
			return
		}
		fut.Resolve(tlio.VideoData{
			Time:   t,
			Layers: []tlio.ImageLayer{{Image: img, Transform: tlio.IdentityTransform()}},
		}, nil)
	}()
	return fut
}

func (r *ffmpegReader) decodeUntilLocked(targetTs int64) (*tlio.Image, error) {
	pkt := astiav.AllocPacket()
	defer pkt.Free()
	frame := astiav.AllocFrame()
	defer frame.Free()

	var lastImg *tlio.Image
	for {
		if err := r.fc.ReadFrame(pkt); err != nil {
			break
		}
		if pkt.StreamIndex() != r.videoIdx {
			pkt.Unref()
			continue
		}
		if err := r.decCtx.SendPacket(pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
			pkt.Unref()
			continue
		}
		pkt.Unref()

		for {
			if err := r.decCtx.ReceiveFrame(frame); err != nil {
				break
			}
			img, err := r.scaleToRGBA8Locked(frame)
			frame.Unref()
			if err != nil {
				return nil, err
			}
			lastImg = img
			if frame.Pts() >= targetTs {
				return lastImg, nil
			}
		}
		if lastImg != nil && pkt.Pts() >= targetTs {
			return lastImg, nil
		}
	}
	if lastImg != nil {
		return lastImg, nil
	}
	return nil, errors.New("no frame decoded")
}

// scaleToRGBA8Locked converts a decoded frame to a tightly packed RGBA8
// tlio.Image via a reusable SoftwareScaleContext, the teacher's
// bgraScaler pattern (video.go) generalized from BGRA to RGBA.
func (r *ffmpegReader) scaleToRGBA8Locked(src *astiav.Frame) (*tlio.Image, error) {
	w, h := src.Width(), src.Height()
	if r.scaler == nil || r.scaledW != w || r.scaledH != h {
		if r.scaledDst != nil {
			r.scaledDst.Free()
		}
		if r.scaler != nil {
			r.scaler.Free()
		}
		flags := astiav.NewSoftwareScaleContextFlags()
		ssc, err := astiav.CreateSoftwareScaleContext(w, h, src.PixelFormat(), w, h, astiav.PixelFormatRgba, flags)
		if err != nil {
			return nil, fmt.Errorf("CreateSoftwareScaleContext: %w", err)
		}
		dst := astiav.AllocFrame()
		dst.SetWidth(w)
		dst.SetHeight(h)
		dst.SetPixelFormat(astiav.PixelFormatRgba)
		if err := dst.AllocBuffer(1); err != nil {
			dst.Free()
			ssc.Free()
			return nil, fmt.Errorf("AllocBuffer: %w", err)
		}
		r.scaler, r.scaledDst, r.scaledW, r.scaledH = ssc, dst, w, h
	}
	if err := r.scaler.ScaleFrame(src, r.scaledDst); err != nil {
		return nil, fmt.Errorf("ScaleFrame: %w", err)
	}
	n, err := r.scaledDst.ImageBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("ImageBufferSize: %w", err)
	}
	out := make([]byte, n)
	if _, err := r.scaledDst.ImageCopyToBuffer(out, 1); err != nil {
		return nil, fmt.Errorf("ImageCopyToBuffer: %w", err)
	}
	return &tlio.Image{Width: w, Height: h, PixelType: tlio.PixelRGBA8, Stride: w * 4, Data: out}, nil
}

// ReadAudio seeks to the nearest keyframe at or before rng.Start and
// decodes forward through the audio stream until it passes rng's end,
// resampling every frame to packed float32 along the way. Grounded on
// the teacher's RTSP recorder audio-to-AAC path (video.go): decode via
// SendPacket/ReceiveFrame, convert via a SoftwareResampleContext,
// generalized from "convert to the encoder's format" to "convert to a
// fixed float32 PCM format" since there is no encoder on the read side.
func (r *ffmpegReader) ReadAudio(ctx context.Context, rng rational.Range) *tlio.Future[tlio.AudioData] {
	fut := tlio.NewFuture[tlio.AudioData]()
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.cancelled {
			fut.Resolve(tlio.AudioData{}, tlerr.ErrCancelled)
			return
		}
		if r.audioIdx < 0 {
			fut.Resolve(tlio.AudioData{}, tlerr.NotFound("no audio stream in this container"))
			return
		}

		ast := r.fc.Streams()[r.audioIdx]
		startSeconds := rng.Start.Seconds()
		endSeconds := rng.End().Seconds()
		if startSeconds < 0 {
			fut.Resolve(tlio.AudioData{}, tlerr.NotFound(fmt.Sprintf("range %v outside audio range", rng)))
			return
		}
		tb := ast.TimeBase().ToDouble()
		targetTs := int64(startSeconds / tb)
		if err := r.fc.SeekFrame(r.audioIdx, targetTs, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
			fut.Resolve(tlio.AudioData{}, tlerr.Decode("seek failed: "+err.Error()))
			return
		}
		r.audioDec.FlushBuffers()

		samples, err := r.decodeAudioUntilLocked(endSeconds, tb)
		if err != nil {
			fut.Resolve(tlio.AudioData{}, tlerr.Decode(err.Error()))
			return
		}
		fut.Resolve(tlio.AudioData{
			SampleOffset: int64(startSeconds * float64(r.audioInfo.SampleRate)),
			SampleRate:   r.audioInfo.SampleRate,
			Channels:     r.audioInfo.Channels,
			Layers:       [][]float32{samples},
		}, nil)
	}()
	return fut
}

// decodeAudioUntilLocked decodes packets from the audio stream,
// resampling each frame to packed float32 through r.audioSwr, until a
// decoded frame's pts passes endSeconds. Mirrors decodeUntilLocked's
// read/send/receive structure.
func (r *ffmpegReader) decodeAudioUntilLocked(endSeconds, timeBase float64) ([]float32, error) {
	pkt := astiav.AllocPacket()
	defer pkt.Free()
	frame := astiav.AllocFrame()
	defer frame.Free()

	var out []float32
	for {
		if err := r.fc.ReadFrame(pkt); err != nil {
			break
		}
		if pkt.StreamIndex() != r.audioIdx {
			pkt.Unref()
			continue
		}
		if err := r.audioDec.SendPacket(pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
			pkt.Unref()
			continue
		}
		pkt.Unref()

		for {
			if err := r.audioDec.ReceiveFrame(frame); err != nil {
				break
			}
			samples, err := r.resampleToFloat32Locked(frame)
			pts := float64(frame.Pts()) * timeBase
			frame.Unref()
			if err != nil {
				return nil, err
			}
			out = append(out, samples...)
			if pts >= endSeconds {
				return out, nil
			}
		}
	}
	return out, nil
}

// resampleToFloat32Locked converts one decoded audio frame to packed
// float32 PCM via r.audioSwr, the teacher's ConvertFrame pattern pointed
// at a fixed output format instead of an encoder's.
func (r *ffmpegReader) resampleToFloat32Locked(src *astiav.Frame) ([]float32, error) {
	dst := r.audioDst
	dst.SetSampleFormat(astiav.SampleFormatFlt)
	dst.SetChannelLayout(src.ChannelLayout())
	dst.SetSampleRate(src.SampleRate())
	dst.SetNbSamples(src.NbSamples())
	if err := dst.AllocBuffer(0); err != nil {
		return nil, fmt.Errorf("AllocBuffer: %w", err)
	}
	defer dst.Unref()

	if err := r.audioSwr.ConvertFrame(src, dst); err != nil {
		return nil, fmt.Errorf("ConvertFrame: %w", err)
	}
	b, err := dst.Data().Bytes(0)
	if err != nil {
		return nil, fmt.Errorf("Data: %w", err)
	}
	n := len(b) / 4
	if n == 0 {
		return nil, nil
	}
	samples := make([]float32, n)
	copy(samples, (*[1 << 28]float32)(unsafe.Pointer(&b[0]))[:n])
	return samples, nil
}

func (r *ffmpegReader) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

// ffmpegWriter encodes MJPEG video into the container FFmpeg picks from
// the output path's extension: simple enough to construct
// grounded purely on the teacher's AAC-encoder setup shape (AllocCodecContext,
// Open, SendFrame/ReceivePacket, WriteInterleavedFrame) without carrying
// over its H.264-specific details.
type ffmpegWriter struct {
	mu sync.Mutex

	oc       *astiav.FormatContext
	io       *astiav.IOContext
	stream   *astiav.Stream
	encCtx   *astiav.CodecContext
	srcFrame *astiav.Frame
	rate     rational.Rate
	wroteHdr bool
	failed   bool
}

func newFFmpegWriter(p mpath.Path, info tlio.Info, opts tlio.Options) (*ffmpegWriter, error) {
	if len(info.VideoStreams) == 0 {
		return nil, tlerr.Decode("ffmpeg writer requires at least one video stream in Info")
	}
	vi := info.VideoStreams[0]

	oc, err := astiav.AllocOutputFormatContext(nil, "", p.String())
	if err != nil || oc == nil {
		return nil, tlerr.OpenFailed(p.String(), err)
	}
	ioFlags := astiav.NewIOContextFlags(astiav.IOContextFlagWrite)
	pb, err := astiav.OpenIOContext(p.String(), ioFlags, nil, nil)
	if err != nil {
		oc.Free()
		return nil, tlerr.OpenFailed(p.String(), err)
	}
	oc.SetPb(pb)

	enc := astiav.FindEncoder(astiav.CodecIDMjpeg)
	if enc == nil {
		pb.Close()
		oc.Free()
		return nil, tlerr.Decode("mjpeg encoder not available")
	}
	stream := oc.NewStream(nil)
	if stream == nil {
		pb.Close()
		oc.Free()
		return nil, tlerr.Decode("NewStream failed")
	}
	encCtx := astiav.AllocCodecContext(enc)
	if encCtx == nil {
		pb.Close()
		oc.Free()
		return nil, tlerr.Decode("AllocCodecContext failed")
	}
	rate := rational.NewRate(24, 1)
	encCtx.SetWidth(vi.Width)
	encCtx.SetHeight(vi.Height)
	encCtx.SetPixelFormat(astiav.PixelFormatYuvj420P)
	encCtx.SetTimeBase(astiav.NewRational(int(rate.Den), int(rate.Num)))
	if err := encCtx.Open(enc, nil); err != nil {
		encCtx.Free()
		pb.Close()
		oc.Free()
		return nil, tlerr.Decode(err.Error())
	}
	if err := encCtx.ToCodecParameters(stream.CodecParameters()); err != nil {
		encCtx.Free()
		pb.Close()
		oc.Free()
		return nil, tlerr.Decode(err.Error())
	}
	stream.SetTimeBase(encCtx.TimeBase())

	return &ffmpegWriter{
		oc: oc, io: pb, stream: stream, encCtx: encCtx,
		srcFrame: astiav.AllocFrame(), rate: rate,
	}, nil
}

func (w *ffmpegWriter) WriteVideo(t rational.Time, data tlio.VideoData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed {
		return tlerr.IOError(errIOErrorAfterFailure)
	}
	if len(data.Layers) == 0 || data.Layers[0].Image == nil {
		w.failed = true
		return tlerr.Decode("no layer to write")
	}
	if !w.wroteHdr {
		if err := w.oc.WriteHeader(nil); err != nil {
			w.failed = true
			return tlerr.IOError(err)
		}
		w.wroteHdr = true
	}

	img := data.Layers[0].Image
	frame := w.srcFrame
	frame.SetWidth(img.Width)
	frame.SetHeight(img.Height)
	frame.SetPixelFormat(astiav.PixelFormatRgba)
	if err := frame.AllocBuffer(1); err != nil {
		w.failed = true
		return tlerr.IOError(err)
	}
	defer frame.Unref()

	scaled, err := scaleRGBAToYUVJ(frame, img, w.encCtx.PixelFormat())
	if err != nil {
		w.failed = true
		return tlerr.Decode(err.Error())
	}
	scaled.SetPts(int64(t.Rescaled(w.rate).Value))

	if err := w.encCtx.SendFrame(scaled); err != nil {
		w.failed = true
		return tlerr.Decode(err.Error())
	}
	return w.drainPacketsLocked()
}

func (w *ffmpegWriter) drainPacketsLocked() error {
	pkt := astiav.AllocPacket()
	defer pkt.Free()
	for {
		if err := w.encCtx.ReceivePacket(pkt); err != nil {
			break
		}
		pkt.SetStreamIndex(w.stream.Index())
		pkt.RescaleTs(w.encCtx.TimeBase(), w.stream.TimeBase())
		if err := w.oc.WriteInterleavedFrame(pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
			pkt.Unref()
			return tlerr.IOError(err)
		}
		pkt.Unref()
	}
	return nil
}

func (w *ffmpegWriter) WriteAudio(r rational.Range, data tlio.AudioData) error {
	return tlerr.Decode("ffmpeg writer in this build is video-only")
}

func (w *ffmpegWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed {
		return nil
	}
	_ = w.encCtx.SendFrame(nil)
	_ = w.drainPacketsLocked()
	err := w.oc.WriteTrailer()
	if w.srcFrame != nil {
		w.srcFrame.Free()
	}
	if w.encCtx != nil {
		w.encCtx.Free()
	}
	if w.io != nil {
		_ = w.io.Close()
		w.io.Free()
	}
	w.oc.Free()
	if err != nil {
		return tlerr.IOError(err)
	}
	return nil
}

// scaleRGBAToYUVJ converts img (RGBA8) into frame at dstFmt via a
// throwaway SoftwareScaleContext; writes are infrequent (one frame at a
// time from the bake driver) so a per-call context is acceptable.
func scaleRGBAToYUVJ(frame *astiav.Frame, img *tlio.Image, dstFmt astiav.PixelFormat) (*astiav.Frame, error) {
	flags := astiav.NewSoftwareScaleContextFlags()
	ssc, err := astiav.CreateSoftwareScaleContext(img.Width, img.Height, astiav.PixelFormatRgba, img.Width, img.Height, dstFmt, flags)
	if err != nil {
		return nil, fmt.Errorf("CreateSoftwareScaleContext: %w", err)
	}
	defer ssc.Free()

	src := astiav.AllocFrame()
	defer src.Free()
	src.SetWidth(img.Width)
	src.SetHeight(img.Height)
	src.SetPixelFormat(astiav.PixelFormatRgba)
	if err := src.AllocBuffer(1); err != nil {
		return nil, fmt.Errorf("AllocBuffer: %w", err)
	}
	if err := src.ImageCopyFromBuffer(img.Data, 1); err != nil {
		return nil, fmt.Errorf("ImageCopyFromBuffer: %w", err)
	}

	frame.SetPixelFormat(dstFmt)
	if err := ssc.ScaleFrame(src, frame); err != nil {
		return nil, fmt.Errorf("ScaleFrame: %w", err)
	}
	return frame, nil
}
