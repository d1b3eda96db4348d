// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache implements the Player's read-ahead/read-behind frame
// store: a video-by-time map and an audio-by-second map sharing one
// mutex and one byte budget, with the direction-aware eviction policy
// spec.md §4.F specifies as part of the contract.
package cache

import (
	"sort"
	"sync"

	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/tlio"
)

// Direction is the cache's current playback direction, which determines
// which side of the current time eviction prefers to keep.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// Config bounds the cache: how much is kept in each direction and the
// hard byte ceiling. Zero-value Config is invalid; use DefaultConfig.
type Config struct {
	ReadAheadSeconds  float64
	ReadBehindSeconds float64
	MaxBytes          int64
}

// DefaultConfig matches spec.md §4.F's stated defaults.
func DefaultConfig() Config {
	return Config{
		ReadAheadSeconds:  4.0,
		ReadBehindSeconds: 0.5,
		MaxBytes:          4 << 30, // 4 GiB
	}
}

type videoEntry struct {
	data  tlio.VideoData
	bytes int64
}

type audioEntry struct {
	data  tlio.AudioData
	bytes int64
}

// Cache is the Player's exclusively-owned frame/chunk store. All methods
// are safe for concurrent use, though spec.md §5 only ever has the
// worker thread mutate it.
type Cache struct {
	mu sync.Mutex

	cfg       Config
	direction Direction

	video      map[videoKey]videoEntry
	videoOrder []videoKey // kept sorted by Value for window/eviction scans
	audio      map[int64]audioEntry

	byteTotal int64
}

// videoKey is the exact-equality key a VideoEntry is stored under:
// rational time compares by both Value and Rate (spec.md §3).
type videoKey struct {
	value float64
	rate  rational.Rate
}

func keyOf(t rational.Time) videoKey { return videoKey{value: t.Value, rate: t.Rate} }

// New returns an empty Cache configured per cfg.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:   cfg,
		video: map[videoKey]videoEntry{},
		audio: map[int64]audioEntry{},
	}
}

// SetDirection updates the eviction-preference direction; the Player
// calls this whenever playback direction changes (spec.md §4.F).
func (c *Cache) SetDirection(d Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.direction = d
}

// videoBytes estimates the byte cost of one VideoData: the sum of each
// layer's backing image buffer.
func videoBytes(v tlio.VideoData) int64 {
	var total int64
	for _, l := range v.Layers {
		if l.Image != nil {
			total += int64(len(l.Image.Data))
		}
	}
	return total
}

// audioBytes estimates the byte cost of one AudioData: 4 bytes (float32)
// per sample across every layer.
func audioBytes(a tlio.AudioData) int64 {
	var total int64
	for _, layer := range a.Layers {
		total += int64(len(layer)) * 4
	}
	return total
}

// PutVideo inserts or replaces the VideoEntry at time, evicting per
// policy if needed to stay within cfg.MaxBytes. currentTime and window
// describe the window eviction must respect (spec.md §4.F).
func (c *Cache) PutVideo(time rational.Time, data tlio.VideoData, currentTime rational.Time, window rational.Range) {
	bytes := videoBytes(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putVideoLocked(time, videoEntry{data: data, bytes: bytes}, currentTime, window)
}

func (c *Cache) putVideoLocked(time rational.Time, entry videoEntry, currentTime rational.Time, window rational.Range) {
	k := keyOf(time)
	if old, ok := c.video[k]; ok {
		c.byteTotal -= old.bytes
	} else {
		c.insertVideoOrderLocked(k)
	}
	c.video[k] = entry
	c.byteTotal += entry.bytes
	c.evictLocked(currentTime, window)
}

func (c *Cache) insertVideoOrderLocked(k videoKey) {
	i := sort.Search(len(c.videoOrder), func(i int) bool { return c.videoOrder[i].value >= k.value })
	c.videoOrder = append(c.videoOrder, videoKey{})
	copy(c.videoOrder[i+1:], c.videoOrder[i:])
	c.videoOrder[i] = k
}

func (c *Cache) removeVideoOrderLocked(k videoKey) {
	i := sort.Search(len(c.videoOrder), func(i int) bool { return c.videoOrder[i].value >= k.value })
	if i < len(c.videoOrder) && c.videoOrder[i] == k {
		c.videoOrder = append(c.videoOrder[:i], c.videoOrder[i+1:]...)
	}
}

// GetVideo returns the VideoEntry at time, if present.
func (c *Cache) GetVideo(time rational.Time) (tlio.VideoData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.video[keyOf(time)]
	return e.data, ok
}

// ContainsVideo reports whether time is present without copying the data.
func (c *Cache) ContainsVideo(time rational.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.video[keyOf(time)]
	return ok
}

// PutAudio inserts or replaces the AudioEntry for second, evicting per
// policy if needed.
func (c *Cache) PutAudio(second int64, data tlio.AudioData, currentSecond int64, windowLo, windowHi int64) {
	bytes := audioBytes(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.audio[second]; ok {
		c.byteTotal -= old.bytes
	}
	c.audio[second] = audioEntry{data: data, bytes: bytes}
	c.byteTotal += bytes
	c.evictAudioLocked(currentSecond, windowLo, windowHi)
}

// GetAudio returns the AudioEntry for second, if present.
func (c *Cache) GetAudio(second int64) (tlio.AudioData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.audio[second]
	return e.data, ok
}

// ContainsAudio reports whether second is present.
func (c *Cache) ContainsAudio(second int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.audio[second]
	return ok
}

// AudioSecond implements audiomixer.SecondSource directly against the
// cache, so the mixer's device thread pulls PCM without Player needing to
// shuttle it through any intermediate buffer.
func (c *Cache) AudioSecond(second int64) (layers [][]float32, channels int, sampleRate int, ok bool) {
	data, ok := c.GetAudio(second)
	if !ok {
		return nil, 0, 0, false
	}
	return data.Layers, data.Channels, data.SampleRate, true
}

// ByteTotal returns the cache's current total byte cost across both maps.
func (c *Cache) ByteTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byteTotal
}

// Clear empties both maps.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.video = map[videoKey]videoEntry{}
	c.videoOrder = nil
	c.audio = map[int64]audioEntry{}
	c.byteTotal = 0
}

// RemoveOutsideVideo drops every VideoEntry whose time lies outside window.
func (c *Cache) RemoveOutsideVideo(window rational.Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range append([]videoKey(nil), c.videoOrder...) {
		t := rational.Time{Value: k.value, Rate: k.rate}
		if !window.Contains(t) {
			c.byteTotal -= c.video[k].bytes
			delete(c.video, k)
			c.removeVideoOrderLocked(k)
		}
	}
}

// RemoveOutsideAudio drops every AudioEntry whose second lies outside
// [lo, hi].
func (c *Cache) RemoveOutsideAudio(lo, hi int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for second, e := range c.audio {
		if second < lo || second > hi {
			c.byteTotal -= e.bytes
			delete(c.audio, second)
		}
	}
}

// evictLocked implements spec.md §4.F's video eviction priority:
//  1. entries outside the current read-ahead window;
//  2. otherwise, entries furthest from currentTime in the direction
//     opposite the cache's current playback direction;
//  3. ties broken by lower byte cost evicted first (spec.md §9's
//     explicit, non-ported design choice).
func (c *Cache) evictLocked(currentTime rational.Time, window rational.Range) {
	for c.byteTotal > c.cfg.MaxBytes && len(c.videoOrder) > 0 {
		victim, ok := c.pickVideoVictimLocked(currentTime, window)
		if !ok {
			return
		}
		c.byteTotal -= c.video[victim].bytes
		delete(c.video, victim)
		c.removeVideoOrderLocked(victim)
	}
}

func (c *Cache) pickVideoVictimLocked(currentTime rational.Time, window rational.Range) (videoKey, bool) {
	if len(c.videoOrder) == 0 {
		return videoKey{}, false
	}

	// Priority 1: anything outside the window, furthest first.
	var outside []videoKey
	for _, k := range c.videoOrder {
		t := rational.Time{Value: k.value, Rate: k.rate}
		if !window.Contains(t) {
			outside = append(outside, k)
		}
	}
	if len(outside) > 0 {
		return farthestThenCheapest(outside, currentTime, c.video), true
	}

	// Priority 2: furthest from currentTime opposite the cache direction.
	// Forward playback evicts older (earlier) frames first; reverse
	// evicts newer (later) frames first.
	var candidates []videoKey
	cur := currentTime.Seconds()
	for _, k := range c.videoOrder {
		t := rational.Time{Value: k.value, Rate: k.rate}
		sec := t.Seconds()
		if c.direction == Forward && sec <= cur {
			candidates = append(candidates, k)
		} else if c.direction == Reverse && sec >= cur {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		candidates = c.videoOrder
	}
	return farthestThenCheapest(candidates, currentTime, c.video), true
}

// farthestThenCheapest picks, among candidates, the one farthest from
// currentTime; ties broken by lower byte cost first.
func farthestThenCheapest(candidates []videoKey, currentTime rational.Time, entries map[videoKey]videoEntry) videoKey {
	cur := currentTime.Seconds()
	best := candidates[0]
	bestDist := distance(best, cur)
	bestBytes := entries[best].bytes
	for _, k := range candidates[1:] {
		d := distance(k, cur)
		b := entries[k].bytes
		switch {
		case d > bestDist:
			best, bestDist, bestBytes = k, d, b
		case d == bestDist && b < bestBytes:
			best, bestDist, bestBytes = k, d, b
		}
	}
	return best
}

func distance(k videoKey, currentSeconds float64) float64 {
	t := rational.Time{Value: k.value, Rate: k.rate}
	d := t.Seconds() - currentSeconds
	if d < 0 {
		d = -d
	}
	return d
}

// evictAudioLocked applies the same priority to audio entries, keyed by
// integer second rather than rational time.
func (c *Cache) evictAudioLocked(currentSecond, lo, hi int64) {
	for c.byteTotal > c.cfg.MaxBytes && len(c.audio) > 0 {
		victim, ok := c.pickAudioVictimLocked(currentSecond, lo, hi)
		if !ok {
			return
		}
		c.byteTotal -= c.audio[victim].bytes
		delete(c.audio, victim)
	}
}

func (c *Cache) pickAudioVictimLocked(currentSecond, lo, hi int64) (int64, bool) {
	var outside []int64
	for s := range c.audio {
		if s < lo || s > hi {
			outside = append(outside, s)
		}
	}
	if len(outside) > 0 {
		return farthestAudioThenCheapest(outside, currentSecond, c.audio), true
	}

	var candidates []int64
	for s := range c.audio {
		if c.direction == Forward && s <= currentSecond {
			candidates = append(candidates, s)
		} else if c.direction == Reverse && s >= currentSecond {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		for s := range c.audio {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return farthestAudioThenCheapest(candidates, currentSecond, c.audio), true
}

func farthestAudioThenCheapest(candidates []int64, currentSecond int64, entries map[int64]audioEntry) int64 {
	best := candidates[0]
	bestDist := absInt64(best - currentSecond)
	bestBytes := entries[best].bytes
	for _, s := range candidates[1:] {
		d := absInt64(s - currentSecond)
		b := entries[s].bytes
		switch {
		case d > bestDist:
			best, bestDist, bestBytes = s, d, b
		case d == bestDist && b < bestBytes:
			best, bestDist, bestBytes = s, d, b
		}
	}
	return best
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
