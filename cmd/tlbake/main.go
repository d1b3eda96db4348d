// SPDX-License-Identifier: GPL-3.0-or-later

// Command tlbake is the one end-user binary in scope (spec.md §6 "CLI
// surface of the bake driver"): it renders a timeline or a single media
// file to an output file or numbered sequence, frame by frame, with no
// GUI and no persisted state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/intuitionamiga/tlplay/codec"
	"github.com/intuitionamiga/tlplay/compositor"
	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
	"github.com/intuitionamiga/tlplay/timeline"
)

// pixelTypeNames maps the -outputPixelType enum spec.md §6 names to the
// engine's internal tlio.PixelType.
var pixelTypeNames = map[string]tlio.PixelType{
	"l8":      tlio.PixelL8,
	"la8":     tlio.PixelLA8,
	"rgb8":    tlio.PixelRGB8,
	"rgba8":   tlio.PixelRGBA8,
	"rgb16":   tlio.PixelRGB16,
	"rgba16":  tlio.PixelRGBA16,
	"rgb32f":  tlio.PixelRGB32F,
	"rgba32f": tlio.PixelRGBA32F,
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: tlbake [options] input output")
	fmt.Fprintln(os.Stderr, "  input is a timeline file or a single media file/sequence")
	fmt.Fprintln(os.Stderr, "  output is a file or a numbered sequence template")
	flag.PrintDefaults()
}

func main() {
	startFrame := flag.Int("startFrame", -1, "first frame to render (default: media start)")
	endFrame := flag.Int("endFrame", -1, "last frame to render, inclusive (default: media end)")
	renderSize := flag.String("renderSize", "", "WxH output render size override")
	outputPixelType := flag.String("outputPixelType", "", "output pixel type: l8, la8, rgb8, rgba8, rgb16, rgba16, rgb32f, rgba32f")
	colorConfig := flag.String("colorConfig", "", "OCIO color config file (passed through to writers as an option; not applied by this build)")
	colorInput := flag.String("colorInput", "", "OCIO input color space name")
	colorDisplay := flag.String("colorDisplay", "", "OCIO display name")
	colorView := flag.String("colorView", "", "OCIO view name")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	inputPath, outputPath := flag.Arg(0), flag.Arg(1)

	log := slog.Default()

	reg := ioregistry.New()
	codec.Register(reg)

	opts := tlio.Options{}
	if colorConfig != nil && *colorConfig != "" {
		opts["Color/Config"] = *colorConfig
	}
	if colorInput != nil && *colorInput != "" {
		opts["Color/Input"] = *colorInput
	}
	if colorDisplay != nil && *colorDisplay != "" {
		opts["Color/Display"] = *colorDisplay
	}
	if colorView != nil && *colorView != "" {
		opts["Color/View"] = *colorView
	}

	ctx := context.Background()

	tl, srcInfo, err := buildTimeline(ctx, reg, inputPath, opts)
	if err != nil {
		log.Error("failed to open input", "input", inputPath, "error", err)
		os.Exit(1)
	}

	stream := srcInfo.VideoStreams[0]
	outWidth, outHeight := stream.Width, stream.Height
	if *renderSize != "" {
		outWidth, outHeight, err = parseSize(*renderSize)
		if err != nil {
			log.Error("bad -renderSize", "value", *renderSize, "error", err)
			os.Exit(1)
		}
	}
	outPixelType := stream.PixelType
	if *outputPixelType != "" {
		pt, ok := pixelTypeNames[strings.ToLower(*outputPixelType)]
		if !ok {
			log.Error("bad -outputPixelType", "value", *outputPixelType)
			os.Exit(1)
		}
		outPixelType = pt
	}

	rate := tl.Rate
	total := tl.Duration().RoundToFrame().Value
	first, last := 0, int(total)-1
	if *startFrame >= 0 {
		first = *startFrame
	}
	if *endFrame >= 0 {
		last = *endFrame
	}
	if last < first {
		log.Error("endFrame precedes startFrame", "startFrame", first, "endFrame", last)
		os.Exit(1)
	}

	outPath := mpath.Parse(outputPath)
	outInfo := tlio.Info{
		VideoStreams: []tlio.VideoStreamInfo{{Width: outWidth, Height: outHeight, PixelType: outPixelType}},
		VideoRange:   rational.NewRange(rational.Zero(rate), rational.Time{Value: float64(last - first + 1), Rate: rate}),
	}
	writer, err := reg.Write(outPath, outInfo, opts)
	if err != nil {
		log.Error("failed to open output", "output", outputPath, "error", err)
		os.Exit(1)
	}
	defer writer.Close()

	showProgress := term.IsTerminal(int(os.Stdout.Fd()))
	start := time.Now()

	for frame := first; frame <= last; frame++ {
		srcTime := rational.Time{Value: float64(frame), Rate: rate}
		hits := tl.VideoAt(srcTime)
		if len(hits) == 0 {
			log.Warn("no clip active at frame, skipping", "frame", frame)
			continue
		}

		images := make([]*tlio.Image, 0, len(hits))
		for _, hit := range hits {
			reader, err := reg.Read(hit.Media.Path, opts)
			if err != nil {
				log.Error("failed to open clip", "path", hit.Media.Path.String(), "error", err)
				os.Exit(2)
			}
			data, err := reader.ReadVideo(ctx, hit.ClipTime, hit.LayerIndex).Wait(ctx)
			if err != nil {
				log.Error("decode failed", "frame", frame, "path", hit.Media.Path.String(), "error", err)
				os.Exit(2)
			}
			for _, layer := range data.Layers {
				if layer.Image != nil {
					images = append(images, layer.Image)
				}
			}
		}
		if len(images) == 0 {
			log.Warn("clip resolved but produced no image, skipping", "frame", frame)
			continue
		}

		composed := images[0]
		if len(images) > 1 {
			composed = compositor.Tile(images)
		}

		outTime := rational.Time{Value: float64(frame - first), Rate: rate}
		out := tlio.VideoData{Time: outTime, Layers: []tlio.ImageLayer{{Image: composed, Transform: tlio.IdentityTransform()}}}
		if err := writer.WriteVideo(outTime, out); err != nil {
			log.Error("write failed", "frame", frame, "error", err)
			os.Exit(2)
		}

		if showProgress {
			fmt.Printf("\rframe %d/%d", frame-first+1, last-first+1)
		}
	}

	if showProgress {
		fmt.Println()
	}
	log.Info("bake complete", "frames", last-first+1, "elapsed", time.Since(start))
}

// buildTimeline resolves input to a Timeline. A bare media path or
// numbered sequence becomes a one-clip timeline spanning its own
// VideoRange; parsing an OTIO-style timeline document is out of scope
// here the same way package timeline itself leaves it out of scope
// (timeline.go's package doc), so a timeline-file input is rejected with
// ErrUnknownFormat rather than silently misinterpreted as media.
func buildTimeline(ctx context.Context, reg *ioregistry.Registry, input string, opts tlio.Options) (*timeline.Timeline, tlio.Info, error) {
	if ext := strings.ToLower(filepath.Ext(input)); ext == ".otio" || ext == ".json" {
		return nil, tlio.Info{}, fmt.Errorf("%w: timeline document input is not supported by this build; pass a media path", tlerr.ErrUnknownFormat)
	}

	p := mpath.Parse(input)
	reader, err := reg.Read(p, opts)
	if err != nil {
		return nil, tlio.Info{}, err
	}
	info, err := reader.Info(ctx).Wait(ctx)
	if err != nil {
		return nil, tlio.Info{}, err
	}
	if len(info.VideoStreams) == 0 {
		return nil, tlio.Info{}, fmt.Errorf("%w: %s carries no video stream", tlerr.ErrOpenFailed, input)
	}

	rate := info.VideoRange.Start.Rate
	tl := timeline.New(rate, rational.Zero(rate))
	track := tl.AddTrack(timeline.TrackVideo)
	tl.AddItem(track, timeline.Item{
		Kind:     timeline.ItemClip,
		Duration: info.VideoRange.Duration,
		Media:    timeline.MediaRef{Path: p, SourceRange: info.VideoRange},
	})
	return tl, info, nil
}

func parseSize(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("width and height must be positive, got %dx%d", w, h)
	}
	return w, h, nil
}
