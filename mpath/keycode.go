// SPDX-License-Identifier: GPL-3.0-or-later

package mpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Keycode is a film edge-code reference: a manufacturer/stock id, a film
// type, a prefix, a per-perforation count, and a frame offset within that
// count. Grounded on original_source/lib/tlCore/Time.cpp's
// keycodeToString/stringToKeycode (colon-joined integer fields), which the
// Cineon "Keycode" tag (original_source/tests/tlIOTest/CineonTest.cpp,
// "1:2:3:4:5") also uses.
type Keycode struct {
	ID     int
	Type   int
	Prefix int
	Count  int
	Offset int
}

// String renders the canonical "id:type:prefix:count:offset" form.
func (k Keycode) String() string {
	return fmt.Sprintf("%d:%d:%d:%d:%d", k.ID, k.Type, k.Prefix, k.Count, k.Offset)
}

// ParseKeycode parses the canonical form produced by String. It satisfies
// the round-trip law in spec.md §8: ParseKeycode(k.String()) == k for
// every canonical keycode string.
func ParseKeycode(s string) (Keycode, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 {
		return Keycode{}, fmt.Errorf("mpath: invalid keycode %q: want 5 colon-separated fields", s)
	}
	vals := make([]int, 5)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Keycode{}, fmt.Errorf("mpath: invalid keycode %q: %w", s, err)
		}
		vals[i] = n
	}
	return Keycode{ID: vals[0], Type: vals[1], Prefix: vals[2], Count: vals[3], Offset: vals[4]}, nil
}
