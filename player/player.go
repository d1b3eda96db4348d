// SPDX-License-Identifier: GPL-3.0-or-later

package player

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/intuitionamiga/tlplay/audiomixer"
	"github.com/intuitionamiga/tlplay/cache"
	"github.com/intuitionamiga/tlplay/clock"
	"github.com/intuitionamiga/tlplay/compositor"
	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/rational"
	"github.com/intuitionamiga/tlplay/timeline"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
)

// Player is the orchestrator: it exclusively owns a Cache, a Clock and
// the worker thread that ticks them, per spec.md §3 "Ownership" and §5
// "Threading model". New returns no error and opens no media up front:
// a media open failure is logged when a frame is requested, and a failed
// read is logged and counted in CacheInfo.Errors.
type Player struct {
	log *slog.Logger

	tl       *timeline.Timeline
	registry *ioregistry.Registry
	cache    *cache.Cache
	clk      clock.Clock
	cacheCfg cache.Config
	cfg      Config

	// Observable outputs (spec.md §4.I, one-writer/many-reader).
	Playback         *Subject[PlaybackState]
	Loop             *Subject[LoopMode]
	Speed            *Subject[float64]
	CurrentTime      *Subject[rational.Time]
	InOutRange       *Subject[rational.Range]
	VideoLayer       *Subject[int]
	Compare          *Subject[compositor.Mode]
	CompareTime      *Subject[compositor.TimeMode]
	CurrentVideo     *Subject[tlio.VideoData]
	Volume           *Subject[float64]
	Mute             *Subject[bool]
	CacheInfo        *Subject[CacheInfo]
	CurrentAudioData *Subject[tlio.AudioData]
	AudioDevice      *Subject[bool] // whether the audio device is currently running
	ChannelMute      *Subject[[]bool]
	AudioOffset      *Subject[float64]

	mu        sync.Mutex // guards command intent below; short critical sections only
	direction cache.Direction
	seekGen   uint64 // bumped on every seek; suppresses stale completions

	videoSem *semaphore.Weighted
	audioSem *semaphore.Weighted

	pendingMu sync.Mutex
	pending   map[videoKey]*pendingVideo
	failed    map[videoKey]uint64 // key -> seekGen it failed under; retried once that gen passes

	audioPendingMu sync.Mutex
	audioPending   map[int64]*pendingAudio
	audioFailed    map[int64]uint64 // second -> seekGen it failed under

	audioMixer  *audiomixer.Mixer
	audioDevice *audiomixer.Device

	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool

	cacheErrors atomic.Int64
}

type videoKey struct {
	value float64
	rate  rational.Rate
}

func keyOf(t rational.Time) videoKey { return videoKey{t.Value, t.Rate} }

type pendingVideo struct {
	future  *tlio.Future[tlio.VideoData]
	seekGen uint64
}

// pendingAudio tracks one in-flight audio request for an integer second.
// Unlike pendingVideo it has no single underlying tlio.Future: a second
// can be covered by several overlapping audio clips (spec.md §4.E
// "AudioHit"s), so the fetch goroutine fans out to every hit and merges
// their decoded layers before signalling done.
type pendingAudio struct {
	done    chan struct{}
	result  tlio.AudioData
	err     error
	seekGen uint64
}

// New constructs a Player over tl, dispatching media reads through
// registry, with its own Cache configured by cacheCfg. clk is the time
// source selected by the caller (clock.NewWallClock or
// clock.NewAudioClock) per spec.md §4.H.
func New(tl *timeline.Timeline, registry *ioregistry.Registry, cacheCfg cache.Config, clk clock.Clock, cfg Config) *Player {
	c := cache.New(cacheCfg)

	p := &Player{
		log:      slog.Default(),
		tl:       tl,
		registry: registry,
		cache:    c,
		clk:      clk,
		cacheCfg: cacheCfg,
		cfg:      cfg,

		Playback:         NewSubject(Stop, equalComparable[PlaybackState]),
		Loop:             NewSubject(Once, equalComparable[LoopMode]),
		Speed:            NewSubject(1.0, equalComparable[float64]),
		CurrentTime:      NewSubject(rational.Zero(tl.Rate), equalRationalTime),
		InOutRange:       NewSubject(rational.RangeFromStartEnd(rational.Zero(tl.Rate), tl.Duration()), equalRationalRange),
		VideoLayer:       NewSubject(0, equalComparable[int]),
		Compare:          NewSubject(compositor.ModeA, equalComparable[compositor.Mode]),
		CompareTime:      NewSubject(compositor.CompareRelative, equalComparable[compositor.TimeMode]),
		CurrentVideo:     NewSubject(tlio.VideoData{}, equalVideoData),
		Volume:           NewSubject(1.0, equalComparable[float64]),
		Mute:             NewSubject(false, equalComparable[bool]),
		CacheInfo:        NewSubject(CacheInfo{}, equalCacheInfo),
		CurrentAudioData: NewSubject(tlio.AudioData{}, equalAudioData),
		AudioDevice:      NewSubject(false, equalComparable[bool]),
		ChannelMute:      NewSubject[[]bool](nil, equalBoolSlice),
		AudioOffset:      NewSubject(0.0, equalComparable[float64]),

		videoSem: semaphore.NewWeighted(int64(cfg.VideoRequestCount)),
		pending:  map[videoKey]*pendingVideo{},
		failed:   map[videoKey]uint64{},

		audioSem:     semaphore.NewWeighted(int64(cfg.AudioRequestCount)),
		audioPending: map[int64]*pendingAudio{},
		audioFailed:  map[int64]uint64{},

		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	p.audioMixer = audiomixer.New(audiomixer.Config{SampleRate: cfg.AudioSampleRate, Channels: cfg.AudioChannels}, c)
	if dev, err := audiomixer.NewDevice(cfg.AudioSampleRate, cfg.AudioChannels); err != nil {
		p.log.Error("audio device open failed; playback continues without sound", "err", err)
	} else {
		dev.SetMixer(p.audioMixer)
		dev.SetFrameCallback(func(n int64) {
			if ac, ok := p.clk.(*clock.AudioClock); ok {
				ac.AdvanceFrames(n)
			}
		})
		p.audioDevice = dev
	}
	return p
}

func equalAudioData(a, b tlio.AudioData) bool {
	return a.SampleOffset == b.SampleOffset && len(a.Layers) == len(b.Layers)
}

func equalVideoData(a, b tlio.VideoData) bool {
	return a.Time.Equal(b.Time) && len(a.Layers) == len(b.Layers)
}

// Start launches the worker thread's tick loop and the audio device.
func (p *Player) Start() {
	if p.started.Swap(true) {
		return
	}
	if p.audioDevice != nil {
		p.audioDevice.Start()
		p.AudioDevice.Publish(true)
	}
	go p.run()
}

// Close stops the worker, joining it, and detaches any in-flight I/O
// futures (they complete on their own time; results go nowhere),
// matching spec.md §5's destruction sequence.
func (p *Player) Close() {
	if !p.started.Load() {
		return
	}
	close(p.stop)
	<-p.done
	if p.audioDevice != nil {
		_ = p.audioDevice.Close()
		p.AudioDevice.Publish(false)
	}
}

func (p *Player) wakeWorker() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// --- Command setters: all take the short mutex and flag the worker,
// never block (spec.md §5 "Control thread"). ---

func (p *Player) SetPlayback(s PlaybackState) {
	p.mu.Lock()
	switch s {
	case Forward:
		p.direction = cache.Forward
	case Reverse:
		p.direction = cache.Reverse
	}
	p.mu.Unlock()
	p.cache.SetDirection(p.direction)
	p.clk.SetDirection(s != Reverse)
	if s == Stop {
		p.clk.Stop()
	} else {
		p.clk.Start()
	}
	p.Playback.Publish(s)
	p.wakeWorker()
}

func (p *Player) SetLoop(l LoopMode) { p.Loop.Publish(l); p.wakeWorker() }
func (p *Player) SetSpeed(s float64) { p.Speed.Publish(s); p.wakeWorker() }

func (p *Player) SetInOutRange(r rational.Range) {
	p.InOutRange.Publish(r)
	p.wakeWorker()
}

func (p *Player) SetVideoLayer(layer int)              { p.VideoLayer.Publish(layer) }
func (p *Player) SetCompare(m compositor.Mode)         { p.Compare.Publish(m) }
func (p *Player) SetCompareTime(t compositor.TimeMode) { p.CompareTime.Publish(t) }

func (p *Player) SetVolume(v float64) {
	p.audioMixer.SetVolume(v)
	p.Volume.Publish(v)
}

func (p *Player) SetMute(m bool) {
	p.audioMixer.SetMute(m)
	p.Mute.Publish(m)
}

// SetChannelMute sets the per-channel mute mask the mixer applies after
// summing layers (spec.md §4.G).
func (p *Player) SetChannelMute(mask []bool) {
	p.audioMixer.SetChannelMute(mask)
	p.ChannelMute.Publish(mask)
}

// SetAudioOffset applies a constant seconds offset between the current
// timeline position and the second the mixer reads from the cache,
// e.g. to compensate for A/V sync drift.
func (p *Player) SetAudioOffset(seconds float64) {
	p.audioMixer.SetAudioOffset(seconds)
	p.AudioOffset.Publish(seconds)
}

func (p *Player) SetCacheOptions(cfg cache.Config) {
	p.mu.Lock()
	p.cacheCfg = cfg
	p.mu.Unlock()
	p.wakeWorker()
}

// Seek implements spec.md §4.I.c: it clears the cache, drops every
// in-flight request issued before the seek (their results are
// discarded), and — if playing — synchronously fetches the target frame
// under a bounded timeout so the viewport doesn't show a stale frame.
func (p *Player) Seek(target rational.Time) {
	p.mu.Lock()
	p.seekGen++
	gen := p.seekGen
	playing := p.Playback.Get() != Stop
	p.mu.Unlock()

	p.clk.Reset(target)
	p.cache.Clear()
	p.dropStalePendingLocked(gen)
	p.dropStaleAudioPendingLocked(gen)
	p.audioMixer.Seek(int64(math.Floor(target.Seconds())))

	if playing {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.SeekFrameTimeout))
		defer cancel()
		if data, ok := p.fetchOne(ctx, target); ok {
			p.CurrentVideo.Publish(data)
			p.CurrentTime.Publish(target)
		}
		// Missing the timeout is not an error (spec.md §4.I.c): the
		// stale frame remains visible until the tick loop catches up.
	} else {
		p.CurrentTime.Publish(target)
	}
	p.wakeWorker()
}

func (p *Player) dropStalePendingLocked(gen uint64) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for k, pv := range p.pending {
		if pv.seekGen < gen {
			delete(p.pending, k)
			p.videoSem.Release(1)
		}
	}
}

func (p *Player) dropStaleAudioPendingLocked(gen uint64) {
	p.audioPendingMu.Lock()
	defer p.audioPendingMu.Unlock()
	for s, pa := range p.audioPending {
		if pa.seekGen < gen {
			delete(p.audioPending, s)
			p.audioSem.Release(1)
		}
	}
}

// TimeAction implements the discrete jump commands (spec.md §4.I).
func (p *Player) TimeAction(a TimeActionKind) {
	rate := p.tl.Rate
	cur := p.CurrentTime.Get()
	inOut := p.InOutRange.Get()
	oneFrame := rational.Time{Value: 1, Rate: rate}
	switch a {
	case FrameNext:
		p.Seek(inOut.Clamp(cur.Add(oneFrame)))
	case FramePrev:
		p.Seek(inOut.Clamp(cur.Sub(oneFrame)))
	case FrameNextX10:
		p.Seek(inOut.Clamp(cur.Add(rational.Time{Value: 10, Rate: rate})))
	case FramePrevX10:
		p.Seek(inOut.Clamp(cur.Sub(rational.Time{Value: 10, Rate: rate})))
	case ActionStart:
		p.Seek(inOut.Start)
	case ActionEnd:
		p.Seek(inOut.ToInclusive().End())
	}
}

// fetchOne synchronously resolves the frame at t, for the seek-frame
// fast path. It bypasses the pending-request bookkeeping entirely.
func (p *Player) fetchOne(ctx context.Context, t rational.Time) (tlio.VideoData, bool) {
	layer := p.VideoLayer.Get()
	hits := p.tl.VideoAt(t)
	hit, ok := pickLayer(hits, layer)
	if !ok {
		return tlio.VideoData{}, false
	}
	reader, err := p.registry.Read(hit.Media.Path, nil)
	if err != nil {
		p.log.Error("seek-frame open failed", "path", hit.Media.Path.String(), "err", err)
		return tlio.VideoData{}, false
	}
	fut := reader.ReadVideo(ctx, hit.ClipTime, hit.LayerIndex)
	data, err := fut.Wait(ctx)
	if err != nil {
		return tlio.VideoData{}, false
	}
	return data, true
}

func pickLayer(hits []timeline.VideoHit, layer int) (timeline.VideoHit, bool) {
	for _, h := range hits {
		if h.LayerIndex == layer {
			return h, true
		}
	}
	if len(hits) > 0 {
		return hits[0], true
	}
	return timeline.VideoHit{}, false
}

// run is the worker thread's tick loop (spec.md §4.I.b).
func (p *Player) run() {
	defer close(p.done)
	interval := time.Duration(p.cfg.TickInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
			p.tick()
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Player) tick() {
	state := p.Playback.Get()
	t := p.clk.Now().RoundToFrame()

	if state != Stop {
		if looped := p.applyLoopPolicy(t, state); !looped.Equal(t) {
			// Move the clock to the boundary so the next tick continues
			// from it instead of reading the overshoot again.
			p.clk.Reset(looped)
			t = looped
		}
	}

	p.CurrentTime.Publish(t)

	window := p.readAheadWindow(t)
	p.issueRequests(t, window)
	p.pollPending(window)
	p.cache.RemoveOutsideVideo(window)

	if data, ok := p.cache.GetVideo(t); ok {
		p.CurrentVideo.Publish(data)
	}

	// Audio request-issuance step, spec.md §4.I.b step 7: mirrors the
	// video pipeline above but keyed by integer second rather than exact
	// frame time, matching Cache's audio store and audiomixer.SecondSource.
	lo, hi := audioSecondsRange(window)
	p.issueAudioRequests(lo, hi)
	p.pollPendingAudio(lo, hi)
	p.cache.RemoveOutsideAudio(lo, hi)

	if data, ok := p.cache.GetAudio(int64(math.Floor(t.Seconds()))); ok {
		p.CurrentAudioData.Publish(data)
	}

	p.CacheInfo.Publish(CacheInfo{BytesInUse: p.cache.ByteTotal(), Errors: p.cacheErrors.Load()})
}

// audioSecondsRange converts a read-ahead window into the inclusive
// integer-second range the audio pipeline must keep cached.
func audioSecondsRange(window rational.Range) (lo, hi int64) {
	lo = int64(math.Floor(window.Start.Seconds()))
	hi = int64(math.Floor(window.End().Seconds()))
	return lo, hi
}

// applyLoopPolicy implements spec.md §4.I.d. PingPong's exact-endpoint
// behavior is an explicitly open question in spec.md §9; this
// implementation flips direction on the same tick that crosses the
// boundary and clamps to the boundary crossed, rather than overshooting
// into the next tick.
func (p *Player) applyLoopPolicy(t rational.Time, state PlaybackState) rational.Time {
	inOut := p.InOutRange.Get()
	loop := p.Loop.Get()
	inPoint := inOut.Start
	outPoint := inOut.End() // exclusive on the forward-playing side (spec.md §4.I.d tie-break)

	crossedForward := state == Forward && !t.Before(outPoint)
	crossedBackward := state == Reverse && t.Before(inPoint)
	if !crossedForward && !crossedBackward {
		return t
	}

	switch loop {
	case Once:
		p.SetPlaybackNoWake(Stop)
		if crossedForward {
			return inOut.ToInclusive().End()
		}
		return inPoint
	case Loop:
		if crossedForward {
			return inPoint
		}
		return inOut.ToInclusive().End()
	case PingPong:
		if crossedForward {
			p.flipDirection(Reverse)
			return inOut.ToInclusive().End()
		}
		p.flipDirection(Forward)
		return inPoint
	default:
		return t
	}
}

// SetPlaybackNoWake updates playback state from inside the worker
// itself (loop-boundary transitions), without re-signalling the wake
// channel the caller is already inside.
func (p *Player) SetPlaybackNoWake(s PlaybackState) {
	p.mu.Lock()
	switch s {
	case Forward:
		p.direction = cache.Forward
	case Reverse:
		p.direction = cache.Reverse
	}
	p.mu.Unlock()
	p.cache.SetDirection(p.direction)
	if s == Stop {
		p.clk.Stop()
	}
	p.Playback.Publish(s)
}

func (p *Player) flipDirection(to PlaybackState) {
	p.mu.Lock()
	if to == Forward {
		p.direction = cache.Forward
	} else {
		p.direction = cache.Reverse
	}
	p.mu.Unlock()
	p.cache.SetDirection(p.direction)
	p.clk.SetDirection(to != Reverse)
	p.Playback.Publish(to)
}

// readAheadWindow computes the window per spec.md §4.I.b step 3.
func (p *Player) readAheadWindow(t rational.Time) rational.Range {
	p.mu.Lock()
	behindSec, aheadSec := p.cacheCfg.ReadBehindSeconds, p.cacheCfg.ReadAheadSeconds
	dir := p.direction
	p.mu.Unlock()

	rate := t.Rate
	behind := rational.Time{Value: behindSec * rate.Float(), Rate: rate}
	ahead := rational.Time{Value: aheadSec * rate.Float(), Rate: rate}

	var start, end rational.Time
	if dir == cache.Reverse {
		start, end = t.Sub(ahead), t.Add(behind)
	} else {
		start, end = t.Sub(behind), t.Add(ahead)
	}
	window := rational.RangeFromStartEnd(start, end)

	inOut := p.InOutRange.Get()
	if clamped, ok := window.Intersect(inOut); ok {
		return clamped
	}
	return rational.NewRange(t, rational.Zero(rate))
}

// issueRequests implements spec.md §4.I.b step 4: for each uncached,
// unrequested frame time in window, issue a bounded-concurrency read.
func (p *Player) issueRequests(current rational.Time, window rational.Range) {
	rate := current.Rate
	oneFrame := rational.Time{Value: 1, Rate: rate}
	layer := p.VideoLayer.Get()

	for t := window.Start.RoundToFrame(); t.Before(window.End()); t = t.Add(oneFrame) {
		k := keyOf(t)
		if p.cache.ContainsVideo(t) {
			continue
		}
		p.pendingMu.Lock()
		_, inFlight := p.pending[k]
		p.mu.Lock()
		gen := p.seekGen
		p.mu.Unlock()
		if failedGen, failed := p.failed[k]; failed && failedGen == gen {
			p.pendingMu.Unlock()
			continue
		}
		p.pendingMu.Unlock()
		if inFlight {
			continue
		}
		if !p.videoSem.TryAcquire(1) {
			continue
		}
		p.startRequest(k, t, layer, gen)
	}
}

func (p *Player) startRequest(k videoKey, t rational.Time, layer int, gen uint64) {
	hits := p.tl.VideoAt(t)
	hit, ok := pickLayer(hits, layer)
	if !ok {
		p.videoSem.Release(1)
		return
	}
	reader, err := p.registry.Read(hit.Media.Path, nil)
	if err != nil {
		p.log.Error("open failed", "path", hit.Media.Path.String(), "err", err)
		p.videoSem.Release(1)
		return
	}
	fut := reader.ReadVideo(context.Background(), hit.ClipTime, hit.LayerIndex)
	p.pendingMu.Lock()
	p.pending[k] = &pendingVideo{future: fut, seekGen: gen}
	p.pendingMu.Unlock()
}

// issueAudioRequests implements the audio half of spec.md §4.I.b step 4:
// for each uncached, unrequested second in [lo, hi], fetch every
// AudioHit covering it and merge their decoded layers.
func (p *Player) issueAudioRequests(lo, hi int64) {
	p.mu.Lock()
	gen := p.seekGen
	p.mu.Unlock()

	for s := lo; s <= hi; s++ {
		if p.cache.ContainsAudio(s) {
			continue
		}
		p.audioPendingMu.Lock()
		_, inFlight := p.audioPending[s]
		failedGen, failed := p.audioFailed[s]
		p.audioPendingMu.Unlock()
		if inFlight || (failed && failedGen == gen) {
			continue
		}
		if !p.audioSem.TryAcquire(1) {
			continue
		}
		p.startAudioRequest(s, gen)
	}
}

func (p *Player) startAudioRequest(second int64, gen uint64) {
	rate := p.tl.Rate
	start := rational.Time{Value: float64(second) * rate.Float(), Rate: rate}
	end := rational.Time{Value: float64(second+1) * rate.Float(), Rate: rate}
	hits := p.tl.AudioIn(rational.RangeFromStartEnd(start, end))
	if len(hits) == 0 {
		p.audioSem.Release(1)
		return
	}

	pa := &pendingAudio{done: make(chan struct{}), seekGen: gen}
	p.audioPendingMu.Lock()
	p.audioPending[second] = pa
	p.audioPendingMu.Unlock()

	go func() {
		defer close(pa.done)
		var layers [][]float32
		var channels, sampleRate int
		for _, hit := range hits {
			reader, err := p.registry.Read(hit.Media.Path, nil)
			if err != nil {
				pa.err = err
				return
			}
			data, err := reader.ReadAudio(context.Background(), hit.ClipRange).Wait(context.Background())
			if err != nil {
				pa.err = err
				return
			}
			layers = append(layers, data.Layers...)
			channels, sampleRate = data.Channels, data.SampleRate
		}
		pa.result = tlio.AudioData{SampleOffset: second * int64(sampleRate), SampleRate: sampleRate, Channels: channels, Layers: layers}
	}()
}

// pollPendingAudio implements the audio half of spec.md §4.I.b step 5.
func (p *Player) pollPendingAudio(lo, hi int64) {
	p.audioPendingMu.Lock()
	var completed []int64
	for second, pa := range p.audioPending {
		select {
		case <-pa.done:
			completed = append(completed, second)
		default:
		}
	}
	p.audioPendingMu.Unlock()

	cur := int64(math.Floor(p.CurrentTime.Get().Seconds()))
	for _, second := range completed {
		p.audioPendingMu.Lock()
		pa, ok := p.audioPending[second]
		if ok {
			delete(p.audioPending, second)
		}
		p.audioPendingMu.Unlock()
		if !ok {
			continue
		}
		p.audioSem.Release(1)

		if pa.err != nil {
			p.cacheErrors.Add(1)
			p.log.Error("audio read failed", "second", second, "err", pa.err, "cancelled", errors.Is(pa.err, tlerr.ErrCancelled))
			p.audioPendingMu.Lock()
			p.audioFailed[second] = pa.seekGen
			p.audioPendingMu.Unlock()
			continue
		}
		p.cache.PutAudio(second, pa.result, cur, lo, hi)
	}
}

// pollPending implements spec.md §4.I.b step 5: completed requests move
// to cache; failures log and mark the frame "do not retry in this
// window" until the window leaves it and returns (or the next seek).
func (p *Player) pollPending(window rational.Range) {
	p.pendingMu.Lock()
	for k := range p.failed {
		if !window.Contains(rational.Time{Value: k.value, Rate: k.rate}) {
			delete(p.failed, k)
		}
	}
	var completed []videoKey
	for k, pv := range p.pending {
		if pv.future.Done() {
			completed = append(completed, k)
		}
	}
	p.pendingMu.Unlock()

	cur := p.CurrentTime.Get()
	for _, k := range completed {
		p.pendingMu.Lock()
		pv, ok := p.pending[k]
		if ok {
			delete(p.pending, k)
		}
		p.pendingMu.Unlock()
		if !ok {
			continue
		}
		p.videoSem.Release(1)

		data, err := pv.future.Wait(context.Background())
		t := rational.Time{Value: k.value, Rate: k.rate}
		if err != nil {
			p.cacheErrors.Add(1)
			p.log.Error("read failed", "time", t.Seconds(), "err", err, "cancelled", errors.Is(err, tlerr.ErrCancelled))
			p.pendingMu.Lock()
			p.failed[k] = pv.seekGen
			p.pendingMu.Unlock()
			continue
		}
		p.cache.PutVideo(t, data, cur, window)
	}
}
