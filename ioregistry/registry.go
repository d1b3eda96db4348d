// SPDX-License-Identifier: GPL-3.0-or-later

// Package ioregistry dispatches a mpath.Path to the codec plugin
// registered for its extension, and keeps a bounded LRU of live Readers
// keyed by path so repeated queries against the same file don't re-open
// it (spec.md §4.D IORegistry).
package ioregistry

import (
	"container/list"
	"strings"
	"sync"

	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
)

// ReadPlugin constructs a Reader for a path and options. Registered per
// extension by package codec's Register function.
type ReadPlugin func(p mpath.Path, opts tlio.Options) (tlio.Reader, error)

// WritePlugin constructs a Writer for a path, the Info describing what
// will be written, and options.
type WritePlugin func(p mpath.Path, info tlio.Info, opts tlio.Options) (tlio.Writer, error)

// defaultReaderCacheSize bounds the live-Reader LRU. Readers are heavy
// (decoder state, open file handles), so the registry deliberately keeps
// only "order of tens" alive at once (spec.md §4.D).
const defaultReaderCacheSize = 32

// Registry maps extensions to plugins, case-insensitively, first
// registration wins on a duplicate extension.
type Registry struct {
	mu           sync.Mutex
	readPlugins  map[string]ReadPlugin
	writePlugins map[string]WritePlugin

	readerCacheSize int
	readers         map[string]*list.Element // path string -> LRU element
	lru             *list.List               // front = most recently used
}

type readerEntry struct {
	key    string
	reader tlio.Reader
}

// New returns an empty Registry with the default reader LRU size.
func New() *Registry {
	return &Registry{
		readPlugins:     map[string]ReadPlugin{},
		writePlugins:    map[string]WritePlugin{},
		readerCacheSize: defaultReaderCacheSize,
		readers:         map[string]*list.Element{},
		lru:             list.New(),
	}
}

// SetReaderCacheSize overrides the default LRU bound. Zero or negative
// disables caching (every read() opens a fresh Reader).
func (r *Registry) SetReaderCacheSize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readerCacheSize = n
}

// RegisterRead installs plug for ext (e.g. ".exr"). First registration
// for a given extension wins; later calls are no-ops.
func (r *Registry) RegisterRead(ext string, plug ReadPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeExt(ext)
	if _, exists := r.readPlugins[key]; exists {
		return
	}
	r.readPlugins[key] = plug
}

// RegisterWrite installs plug for ext, with the same first-wins rule.
func (r *Registry) RegisterWrite(ext string, plug WritePlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeExt(ext)
	if _, exists := r.writePlugins[key]; exists {
		return
	}
	r.writePlugins[key] = plug
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Read returns a Reader for p, reusing a live Reader from the LRU when
// one already exists for p's string form. Fails with tlerr.ErrUnknownFormat
// when no plugin is registered for p's extension.
func (r *Registry) Read(p mpath.Path, opts tlio.Options) (tlio.Reader, error) {
	key := p.String()

	r.mu.Lock()
	if el, ok := r.readers[key]; ok {
		r.lru.MoveToFront(el)
		reader := el.Value.(*readerEntry).reader
		r.mu.Unlock()
		return reader, nil
	}
	plug, ok := r.readPlugins[normalizeExt(p.Extension)]
	r.mu.Unlock()
	if !ok {
		return nil, tlerr.UnknownFormat(p.Extension)
	}

	reader, err := plug(p, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readerCacheSize <= 0 {
		return reader, nil
	}
	// Another caller may have raced us to open the same path; prefer
	// the one already installed and let ours be garbage collected.
	if el, ok := r.readers[key]; ok {
		r.lru.MoveToFront(el)
		return el.Value.(*readerEntry).reader, nil
	}
	el := r.lru.PushFront(&readerEntry{key: key, reader: reader})
	r.readers[key] = el
	r.evictLocked()
	return reader, nil
}

// Write returns a Writer for p given the Info describing the stream to
// be written. Writers are not cached; each call opens a fresh one.
func (r *Registry) Write(p mpath.Path, info tlio.Info, opts tlio.Options) (tlio.Writer, error) {
	r.mu.Lock()
	plug, ok := r.writePlugins[normalizeExt(p.Extension)]
	r.mu.Unlock()
	if !ok {
		return nil, tlerr.UnknownFormat(p.Extension)
	}
	return plug(p, info, opts)
}

// evictLocked drops least-recently-used Readers past the configured
// bound, calling Cancel on each before dropping the registry's own
// reference; any still-held consumer reference keeps the Reader alive
// (spec.md §4.D).
func (r *Registry) evictLocked() {
	if r.readerCacheSize <= 0 {
		return
	}
	for r.lru.Len() > r.readerCacheSize {
		back := r.lru.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*readerEntry)
		delete(r.readers, entry.key)
		r.lru.Remove(back)
		entry.reader.Cancel()
	}
}

// Len reports the number of live Readers currently held by the LRU.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}
