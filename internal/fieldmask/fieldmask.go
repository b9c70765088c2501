// Package fieldmask implements the partial-update masks used by PATCH
// endpoints. A mask is the explicit, comma-separated list of field paths an
// update may touch; fields present in the body but absent from the mask are
// ignored. When the caller sends no explicit mask, one is implied from the
// keys present in the body.
package fieldmask

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stewardhq/steward/internal/errdomain"
)

// Mask is a set of snake_case field paths.
type Mask map[string]struct{}

// Parse builds a mask from a comma-separated path list, e.g.
// "email,profile.display_name". Empty segments are rejected.
func Parse(raw string) (Mask, error) {
	m := Mask{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: update mask contains an empty path", errdomain.ErrInvalidArgument)
		}
		m[p] = struct{}{}
	}
	return m, nil
}

// FromKeys implies a mask from the JSON keys present in a request body.
func FromKeys(keys []string) Mask {
	m := make(Mask, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// Contains reports whether path is named in the mask.
func (m Mask) Contains(path string) bool {
	_, ok := m[path]
	return ok
}

// IsEmpty reports whether the mask names no fields. An empty mask makes the
// update a no-op that returns the unchanged record.
func (m Mask) IsEmpty() bool {
	return len(m) == 0
}

// Without returns a copy of the mask with the given paths removed. Used to
// strip output-only fields from implied masks.
func (m Mask) Without(paths ...string) Mask {
	out := make(Mask, len(m))
	for p := range m {
		out[p] = struct{}{}
	}
	for _, p := range paths {
		delete(out, p)
	}
	return out
}

// Paths returns the mask's field paths in sorted order.
func (m Mask) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// CheckImmutable rejects the mask if it names any immutable field,
// regardless of the body content. The update must fail atomically before any
// field is merged.
func CheckImmutable(m Mask, immutable []string) error {
	for _, p := range immutable {
		if m.Contains(p) {
			return fmt.Errorf("%w: field %q is immutable", errdomain.ErrInvalidArgument, p)
		}
	}
	return nil
}

// CheckKnown rejects explicit masks naming fields the resource does not
// have, so typos fail loudly instead of silently updating nothing.
func CheckKnown(m Mask, known []string) error {
	knownSet := make(map[string]struct{}, len(known))
	for _, p := range known {
		knownSet[p] = struct{}{}
	}
	for p := range m {
		if _, ok := knownSet[p]; !ok {
			return fmt.Errorf("%w: unknown field %q in update mask", errdomain.ErrInvalidArgument, p)
		}
	}
	return nil
}
