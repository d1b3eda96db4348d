// SPDX-License-Identifier: GPL-3.0-or-later

package codec

import (
	"errors"
	"testing"

	"github.com/intuitionamiga/tlplay/ioregistry"
	"github.com/intuitionamiga/tlplay/mpath"
	"github.com/intuitionamiga/tlplay/tlio"
	"github.com/intuitionamiga/tlplay/tlio/tlerr"
)

// TestFFmpegRegistersKnownContainerExtensions checks only that every
// container extension the plugin claims is wired for both read and
// write; exercising an actual decode/encode needs a real media file,
// which this suite intentionally doesn't ship. A registered extension
// fails with something other than ErrUnknownFormat (the registry's
// "no plugin at all" sentinel) even against a bogus path.
func TestFFmpegRegistersKnownContainerExtensions(t *testing.T) {
	reg := ioregistry.New()
	RegisterFFmpeg(reg)

	for _, ext := range ffmpegExtensions {
		p := mpath.Parse("/nonexistent-path/clip" + ext)
		if _, err := reg.Read(p, nil); errors.Is(err, tlerr.ErrUnknownFormat) {
			t.Errorf("expected a read plugin registered for %q, got ErrUnknownFormat", ext)
		}
		if _, err := reg.Write(p, tlio.Info{}, nil); errors.Is(err, tlerr.ErrUnknownFormat) {
			t.Errorf("expected a write plugin registered for %q", ext)
		}
	}
}
