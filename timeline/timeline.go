// SPDX-License-Identifier: GPL-3.0-or-later

// Package timeline implements the read-only query surface Player needs
// over an edit decision list: duration, global start time, and the two
// point queries videoAt/audioIn (spec.md §3 "Timeline", §4.E). Timelines
// are shared and immutable from the core's point of view — parsing an
// OTIO-style document into one is out of scope; callers build a Timeline
// with New and Add* and the core only ever reads it afterward.
//
// Internally the tree is a flat list of tracks, each a flat list of
// items, with no parent links at all (spec.md §9 "Timeline cyclic
// references"):
// the source's edit-list model lets children point back to parents for
// in-place editing, which this read-only core has no use for.
package timeline

import (
	"sort"

	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/rational"
)

// TrackKind distinguishes the only two track kinds the core understands.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

// ItemKind distinguishes the three item kinds a track can hold.
type ItemKind int

const (
	ItemClip ItemKind = iota
	ItemGap
	ItemTransition
)

// MediaRef names the media a clip resolves to: a Path plus an optional
// sub-range within that media's own time coordinates. A zero SourceRange
// (Duration.Rate invalid) means "the media's full range".
type MediaRef struct {
	Path        mpath.Path
	SourceRange rational.Range
}

// Item is one entry on a track: a clip, a gap, or a transition, each
// occupying Duration of track time starting at its computed
// offset (not stored per item; derived by track order during queries).
type Item struct {
	Kind        ItemKind
	Duration    rational.Time // length of this item on the track
	Media       MediaRef      // only meaningful when Kind == ItemClip
	LayerIndex  int           // stacking layer, for multi-layer video tracks
}

// Track is a sequence of items of one kind, arranged end to end.
type Track struct {
	Kind  TrackKind
	Items []Item
}

// Timeline is an immutable, read-only forest: a flat list of tracks, each
// a flat list of items. There is no parent-pointer cycle because queries
// never need to walk upward from an item to its track.
type Timeline struct {
	Rate        rational.Rate
	GlobalStart rational.Time
	Tracks      []Track
}

// New returns an empty Timeline at rate, starting at globalStart.
func New(rate rational.Rate, globalStart rational.Time) *Timeline {
	return &Timeline{Rate: rate, GlobalStart: globalStart}
}

// AddTrack appends a track and returns its index for AddItem calls.
func (tl *Timeline) AddTrack(kind TrackKind) int {
	tl.Tracks = append(tl.Tracks, Track{Kind: kind})
	return len(tl.Tracks) - 1
}

// AddItem appends item to the track at trackIndex.
func (tl *Timeline) AddItem(trackIndex int, item Item) {
	tl.Tracks[trackIndex].Items = append(tl.Tracks[trackIndex].Items, item)
}

// trackDuration sums a track's item durations.
func trackDuration(tr Track, rate rational.Rate) rational.Time {
	total := rational.Zero(rate)
	for _, it := range tr.Items {
		total = total.Add(it.Duration.Rescaled(rate))
	}
	return total
}

// Duration returns the length of the longest track.
func (tl *Timeline) Duration() rational.Time {
	max := rational.Zero(tl.Rate)
	for _, tr := range tl.Tracks {
		d := trackDuration(tr, tl.Rate)
		if d.After(max) {
			max = d
		}
	}
	return max
}

// GlobalStartTime returns the timeline's global start time.
func (tl *Timeline) GlobalStartTime() rational.Time {
	return tl.GlobalStart
}

// VideoHit is one resolved video source active at a queried time.
type VideoHit struct {
	Media      MediaRef
	ClipTime   rational.Time // time within the media's own coordinates
	LayerIndex int
}

// VideoAt resolves every video clip active at t across all video tracks,
// usually one, more when the timeline stacks layers for comparison modes.
// Out-of-range queries return an empty slice (spec.md §4.E).
func (tl *Timeline) VideoAt(t rational.Time) []VideoHit {
	var hits []VideoHit
	for _, tr := range tl.Tracks {
		if tr.Kind != TrackVideo {
			continue
		}
		if hit, ok := resolveItemAt(tr, tl.Rate, t); ok {
			hits = append(hits, VideoHit{Media: hit.item.Media, ClipTime: hit.localTime, LayerIndex: hit.item.LayerIndex})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].LayerIndex < hits[j].LayerIndex })
	return hits
}

// AudioHit is one resolved audio source overlapping a queried range.
type AudioHit struct {
	Media      MediaRef
	ClipRange  rational.Range // the overlap, in the media's own coordinates
}

// AudioIn resolves every audio clip overlapping r across all audio
// tracks, with contiguous coverage where the track data allows it.
func (tl *Timeline) AudioIn(r rational.Range) []AudioHit {
	var hits []AudioHit
	for _, tr := range tl.Tracks {
		if tr.Kind != TrackAudio {
			continue
		}
		hits = append(hits, resolveItemsIn(tr, tl.Rate, r)...)
	}
	return hits
}

type resolvedItem struct {
	item      Item
	localTime rational.Time
}

// resolveItemAt walks a track's items in order, accumulating offsets,
// and returns the item (if a clip) covering t.
func resolveItemAt(tr Track, rate rational.Rate, t rational.Time) (resolvedItem, bool) {
	offset := rational.Zero(rate)
	for _, it := range tr.Items {
		dur := it.Duration.Rescaled(rate)
		end := offset.Add(dur)
		if !t.Before(offset) && t.Before(end) {
			if it.Kind != ItemClip {
				return resolvedItem{}, false
			}
			localOffset := t.Sub(offset)
			localTime := it.Media.SourceRange.Start.Add(localOffset.Rescaled(it.Media.SourceRange.Start.Rate))
			return resolvedItem{item: it, localTime: localTime}, true
		}
		offset = end
	}
	return resolvedItem{}, false
}

// resolveItemsIn walks a track's items in order, returning every clip
// whose track-time span overlaps r, each mapped into its media's own
// source-range coordinates.
func resolveItemsIn(tr Track, rate rational.Rate, r rational.Range) []AudioHit {
	var hits []AudioHit
	offset := rational.Zero(rate)
	for _, it := range tr.Items {
		dur := it.Duration.Rescaled(rate)
		end := offset.Add(dur)
		itemRange := rational.RangeFromStartEnd(offset, end)
		if overlap, ok := itemRange.Intersect(r); ok && it.Kind == ItemClip {
			startOffset := overlap.Start.Sub(offset)
			endOffset := overlap.End().Sub(offset)
			mediaRate := it.Media.SourceRange.Start.Rate
			localStart := it.Media.SourceRange.Start.Add(startOffset.Rescaled(mediaRate))
			localEnd := it.Media.SourceRange.Start.Add(endOffset.Rescaled(mediaRate))
			hits = append(hits, AudioHit{
				Media:     it.Media,
				ClipRange: rational.RangeFromStartEnd(localStart, localEnd),
			})
		}
		offset = end
	}
	return hits
}
