// SPDX-License-Identifier: GPL-3.0-or-later

// Package mpath decomposes file paths into directory/base/extension plus an
// optional padded frame-number sequence, and groups sibling files of a
// directory into detected sequences (spec.md §4.B, §6 "Sequence detection").
package mpath

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Path is a decomposed file path, matching spec.md §3:
// {directory, baseName, numberDigits, paddingWidth, sequenceRange, extension}.
type Path struct {
	Directory    string
	BaseName     string
	NumberDigits int // literal digit-run width as parsed, 0 if none; used only by CompatibleWith's asymmetric-padding check
	ValueDigits  int // natural digit count of the frame number's value (digits(1000)=4, regardless of leading zeros); used to bound frame numbers against SequenceOptions.MaxNumberDigits
	PaddingWidth int // zero-padding width; equals NumberDigits when unpadded
	Negative     bool
	FrameMin     int
	FrameMax     int
	HasNumber    bool
	Extension    string
}

// Parse decomposes a single file path. If the base name (sans extension)
// ends in a run of digits, that run becomes the frame number; NumberDigits
// and PaddingWidth are both the run's length, leading zeros included,
// while ValueDigits counts only the value's own digits.
func Parse(p string) Path {
	dir, file := filepath.Split(p)
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))

	negative := false
	digits, negFound := trailingDigits(base)
	if digits == "" {
		return Path{Directory: dir, BaseName: base, Extension: ext}
	}
	stem := base[:len(base)-len(digits)]
	if negFound && strings.HasSuffix(stem, "-") {
		stem = stem[:len(stem)-1]
		negative = true
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return Path{Directory: dir, BaseName: base, Extension: ext}
	}
	if negative {
		n = -n
	}

	return Path{
		Directory:    dir,
		BaseName:     stem,
		NumberDigits: len(digits),
		ValueDigits:  digitCount(n),
		PaddingWidth: len(digits),
		Negative:     negative,
		FrameMin:     n,
		FrameMax:     n,
		HasNumber:    true,
		Extension:    ext,
	}
}

// digitCount returns the natural decimal digit count of n's magnitude,
// ignoring sign and any zero-padding the source text carried
// (digitCount(1)==1, digitCount(1000)==4).
func digitCount(n int) int {
	if n < 0 {
		n = -n
	}
	count := 1
	for n >= 10 {
		n /= 10
		count++
	}
	return count
}

// trailingDigits returns the longest run of trailing ASCII digits in s, and
// whether a '-' immediately precedes it. Parse always reads such a '-' as
// a minus sign; Group undoes that when SequenceOptions.NegativeNumbers is
// off.
func trailingDigits(s string) (string, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	digits := s[i:]
	neg := i > 0 && s[i-1] == '-'
	return digits, neg
}

// SetPaddingWidth overrides the padding width, e.g. when the caller knows
// the sequence's canonical padding is wider than any single observed file.
func (p Path) SetPaddingWidth(w int) Path {
	p.PaddingWidth = w
	return p
}

// CompatibleWith reports whether p and o belong to the same sequence:
// directory, base name and extension must match, and padding must be
// compatible — equal, or one side's width equal to the other's digit
// count (spec.md §3, "asymmetric by design so zero-padded and un-padded
// frames collapse when reasonable").
func (p Path) CompatibleWith(o Path) bool {
	if p.Directory != o.Directory || p.BaseName != o.BaseName || p.Extension != o.Extension {
		return false
	}
	if !p.HasNumber || !o.HasNumber {
		return false
	}
	if p.PaddingWidth == o.PaddingWidth {
		return true
	}
	return p.PaddingWidth == o.NumberDigits || o.PaddingWidth == p.NumberDigits
}

// SequenceString renders the sequence form base%0Nd.ext for padding N. N==0
// (unpadded) renders as %d.
func (p Path) SequenceString() string {
	if !p.HasNumber {
		return filepath.Join(p.Directory, p.BaseName+p.Extension)
	}
	pattern := fmt.Sprintf("%%0%dd", p.PaddingWidth)
	if p.PaddingWidth == 0 {
		pattern = "%d"
	}
	return filepath.Join(p.Directory, p.BaseName+pattern+p.Extension)
}

// FramePath renders the path for a specific frame number of this sequence.
func (p Path) FramePath(frame int) string {
	digits := fmt.Sprintf("%d", frame)
	if frame < 0 {
		digits = fmt.Sprintf("-%0*d", p.PaddingWidth, -frame)
	} else if p.PaddingWidth > len(digits) {
		digits = fmt.Sprintf("%0*d", p.PaddingWidth, frame)
	}
	return filepath.Join(p.Directory, p.BaseName+digits+p.Extension)
}

func (p Path) String() string {
	if !p.HasNumber {
		return filepath.Join(p.Directory, p.BaseName+p.Extension)
	}
	return p.SequenceString()
}
