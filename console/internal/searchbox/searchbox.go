// Package searchbox parses the operator's comma-separated alarm id filter.
package searchbox

import (
	"strings"
	"sync"
	"unicode"
)

// MinIDLength is the shortest string accepted as an alarm id.
const MinIDLength = 9

// Parse strips all whitespace, splits on commas and drops duplicates keeping the
// first occurrence. The ids are valid only when at least one remains and every
// one is at least MinIDLength long.
func Parse(input string) ([]string, bool) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, id := range strings.Split(compact, ",") {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, false
	}
	for _, id := range ids {
		if len(id) < MinIDLength {
			return nil, false
		}
	}
	return ids, true
}

// Box turns input into ready and empty signals.
type Box struct {
	OnReady func(ids []string)
	OnEmpty func()

	mu    sync.Mutex
	valid bool
	ids   []string
}

func New(onReady func([]string), onEmpty func()) *Box {
	return &Box{OnReady: onReady, OnEmpty: onEmpty, valid: true}
}

// Input handles a (debounced) search term. Blank input signals empty; a valid
// term signals ready; an invalid term only marks the box invalid.
func (b *Box) Input(term string) {
	if strings.TrimSpace(term) == "" {
		b.mu.Lock()
		b.valid = true
		b.ids = nil
		b.mu.Unlock()

		if b.OnEmpty != nil {
			b.OnEmpty()
		}
		return
	}

	ids, ok := Parse(term)

	b.mu.Lock()
	b.valid = ok
	b.ids = ids
	b.mu.Unlock()

	if ok && b.OnReady != nil {
		b.OnReady(ids)
	}
}

// Valid reports whether the last input parsed.
func (b *Box) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

// IDs returns the ids from the last valid input.
func (b *Box) IDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ids...)
}
