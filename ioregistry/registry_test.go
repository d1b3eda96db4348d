// SPDX-License-Identifier: GPL-3.0-or-later

package ioregistry

import (
	"context"
	"errors"
	"testing"

	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
)

type fakeReader struct {
	opens     int
	cancelled bool
}

func (f *fakeReader) Info(ctx context.Context) *tlio.Future[tlio.Info] {
	fut := tlio.NewFuture[tlio.Info]()
	fut.Resolve(tlio.Info{}, nil)
	return fut
}

func (f *fakeReader) ReadVideo(ctx context.Context, t rational.Time, layer int) *tlio.Future[tlio.VideoData] {
	fut := tlio.NewFuture[tlio.VideoData]()
	fut.Resolve(tlio.VideoData{Time: t}, nil)
	return fut
}

func (f *fakeReader) ReadAudio(ctx context.Context, r rational.Range) *tlio.Future[tlio.AudioData] {
	fut := tlio.NewFuture[tlio.AudioData]()
	fut.Resolve(tlio.AudioData{}, nil)
	return fut
}

func (f *fakeReader) Cancel() { f.cancelled = true }

func fakePlugin(opened *int) ReadPlugin {
	return func(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
		*opened++
		return &fakeReader{}, nil
	}
}

func TestRegisterReadFirstWins(t *testing.T) {
	r := New()
	var firstOpened, secondOpened int
	r.RegisterRead(".exr", fakePlugin(&firstOpened))
	r.RegisterRead(".EXR", fakePlugin(&secondOpened)) // case-insensitive duplicate

	_, err := r.Read(mpath.Parse("/a/render.0001.exr"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if firstOpened != 1 || secondOpened != 0 {
		t.Fatalf("expected first registration to win, got first=%d second=%d", firstOpened, secondOpened)
	}
}

func TestReadUnknownFormat(t *testing.T) {
	r := New()
	_, err := r.Read(mpath.Parse("/a/render.0001.mystery"), nil)
	if !errors.Is(err, tlerr.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestReadReusesLiveReader(t *testing.T) {
	r := New()
	var opened int
	r.RegisterRead(".exr", fakePlugin(&opened))

	p := mpath.Parse("/a/render.0001.exr")
	first, err := r.Read(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Read(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("expected the same Reader instance to be reused")
	}
	if opened != 1 {
		t.Fatalf("expected the plugin to be invoked once, got %d", opened)
	}
}

func TestReaderLRUEvictsAndCancels(t *testing.T) {
	r := New()
	r.SetReaderCacheSize(2)
	var opened int
	r.RegisterRead(".exr", fakePlugin(&opened))

	var last tlio.Reader
	var evicted *fakeReader
	for i := 0; i < 3; i++ {
		p := mpath.Parse(frameName(i))
		reader, err := r.Read(p, nil)
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			evicted = reader.(*fakeReader)
		}
		last = reader
	}
	_ = last
	if r.Len() != 2 {
		t.Fatalf("expected LRU bound to 2, got %d", r.Len())
	}
	if !evicted.cancelled {
		t.Fatal("expected the least-recently-used reader to be cancelled on eviction")
	}
}

func frameName(i int) string {
	// One distinct sequence per i: the registry keys Readers by the
	// sequence's string form, so frames of one sequence share a Reader.
	p := mpath.Path{Directory: "/a", BaseName: "render" + string(rune('a'+i)) + ".", Extension: ".exr", PaddingWidth: 4, HasNumber: true}
	return p.FramePath(1)
}
