// SPDX-License-Identifier: GPL-3.0-or-later

package mpath

import "sort"

// SequenceOptions controls how a directory listing is grouped into
// sequences (spec.md §6 "Sequence detection").
type SequenceOptions struct {
	// MaxNumberDigits bounds what digit runs count as a frame number.
	// Default 9.
	MaxNumberDigits int
	// NegativeNumbers toggles whether a leading '-' inside the digit run
	// participates in the frame number.
	NegativeNumbers bool
}

// DefaultSequenceOptions returns the spec.md default options.
func DefaultSequenceOptions() SequenceOptions {
	return SequenceOptions{MaxNumberDigits: 9}
}

// Sequence is a detected group of files sharing directory/base/extension
// and compatible padding. FrameMin/FrameMax is the observed min/max frame
// number; holes within that range are allowed (spec.md §8 scenario 6).
type Sequence struct {
	Directory    string
	BaseName     string
	Extension    string
	PaddingWidth int
	FrameMin     int
	FrameMax     int
	Frames       []int
}

// ToSequence renders the canonical base%0Nd.ext textual form.
func (s Sequence) ToSequence() string {
	p := Path{
		Directory:    s.Directory,
		BaseName:     s.BaseName,
		Extension:    s.Extension,
		PaddingWidth: s.PaddingWidth,
		HasNumber:    true,
	}
	return p.SequenceString()
}

// Group scans a flat list of file names (as returned by a directory
// listing) and groups them into sequences plus any standalone files. Files
// whose frame number's value spans opts.MaxNumberDigits digits or more are
// treated as standalone (not part of a sequence), matching the
// "shot.1000.exr is a standalone file" half of spec.md §8 scenario 6 when
// its value is wide enough to trip the bound.
func Group(names []string, opts SequenceOptions) ([]Sequence, []string) {
	if opts.MaxNumberDigits <= 0 {
		opts.MaxNumberDigits = 9
	}

	type key struct {
		dir, base, ext string
	}
	type named struct {
		path Path
		name string
	}
	// Each key can hold several sub-groups when members share a directory,
	// base name and extension but carry incompatible padding (CompatibleWith
	// returns false) — e.g. frame.01.exr alongside frame.001.exr. Every
	// sub-group is keyed off its first-admitted member, the group's anchor.
	groups := map[key][][]named{}
	var standalone []string

	for _, n := range names {
		p := Parse(n)
		if !p.HasNumber || p.ValueDigits >= opts.MaxNumberDigits {
			standalone = append(standalone, n)
			continue
		}
		if p.Negative && !opts.NegativeNumbers {
			// The '-' stays part of the base name and the frame number
			// is read as non-negative.
			p.BaseName += "-"
			p.Negative = false
			p.FrameMin, p.FrameMax = -p.FrameMin, -p.FrameMax
		}
		k := key{p.Directory, p.BaseName, p.Extension}
		subgroups := groups[k]
		placed := false
		for i, sub := range subgroups {
			if sub[0].path.CompatibleWith(p) {
				subgroups[i] = append(sub, named{path: p, name: n})
				placed = true
				break
			}
		}
		if !placed {
			subgroups = append(subgroups, []named{{path: p, name: n}})
		}
		groups[k] = subgroups
	}

	var sequences []Sequence
	for k, subgroups := range groups {
		for _, group := range subgroups {
			if len(group) == 1 {
				standalone = append(standalone, group[0].name)
				continue
			}
			paths := make([]Path, len(group))
			for i, g := range group {
				paths[i] = g.path
			}
			sort.Slice(paths, func(i, j int) bool { return paths[i].FrameMin < paths[j].FrameMin })
			widest := paths[0].PaddingWidth
			for _, p := range paths {
				if p.PaddingWidth > widest {
					widest = p.PaddingWidth
				}
			}
			frames := make([]int, len(paths))
			for i, p := range paths {
				frames[i] = p.FrameMin
			}
			sequences = append(sequences, Sequence{
				Directory:    k.dir,
				BaseName:     k.base,
				Extension:    k.ext,
				PaddingWidth: widest,
				FrameMin:     frames[0],
				FrameMax:     frames[len(frames)-1],
				Frames:       frames,
			})
		}
	}
	sort.Slice(sequences, func(i, j int) bool {
		return sequences[i].ToSequence() < sequences[j].ToSequence()
	})
	return sequences, standalone
}
