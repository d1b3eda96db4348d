// SPDX-License-Identifier: GPL-3.0-or-later

// Package tlerr defines the sentinel error categories the I/O trait and its
// callers classify failures into (spec.md §7 "Error Handling Design").
// Callers use errors.Is against the sentinels below; codec plugins wrap a
// sentinel with detail via the category constructors.
package tlerr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat: no registered reader/writer for the extension.
	ErrUnknownFormat = errors.New("tlio: unknown format")
	// ErrOpenFailed: file cannot be opened or its header cannot be parsed.
	ErrOpenFailed = errors.New("tlio: open failed")
	// ErrDecode: codec reported a frame error.
	ErrDecode = errors.New("tlio: decode error")
	// ErrNotFound: requested time lies outside the media's range.
	ErrNotFound = errors.New("tlio: not found")
	// ErrCancelled: request cancelled by seek or cache eviction.
	ErrCancelled = errors.New("tlio: cancelled")
	// ErrOverBudget: cache cannot allocate even after eviction. Should be
	// impossible in practice; signals either a bug or a single entry
	// larger than the configured byte ceiling.
	ErrOverBudget = errors.New("tlio: over budget")
	// ErrIOError: lower-level I/O failed (permissions, truncation, short read).
	ErrIOError = errors.New("tlio: io error")
)

// UnknownFormat wraps ErrUnknownFormat with the offending extension.
func UnknownFormat(ext string) error {
	return fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext)
}

// OpenFailed wraps ErrOpenFailed with the path and underlying cause.
func OpenFailed(path string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, cause)
}

// Decode wraps ErrDecode with codec-reported detail.
func Decode(detail string) error {
	return fmt.Errorf("%w: %s", ErrDecode, detail)
}

// NotFound wraps ErrNotFound with what was out of range.
func NotFound(detail string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, detail)
}

// IOError wraps ErrIOError with the underlying cause.
func IOError(cause error) error {
	return fmt.Errorf("%w: %w", ErrIOError, cause)
}
