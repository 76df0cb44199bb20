// Package schedule loads YAML schedule documents describing how a channel
// rotates its content: named content sources, reusable sequences of
// directives, and playouts binding a sequence to a repeat policy.
package schedule

import (
	"fmt"
	"sort"
)

// Order is the playback order of a collection
type Order string

const (
	// OrderChronological plays collection members in catalog order
	OrderChronological Order = "chronological"

	// OrderShuffle plays collection members in a (seeded) random permutation
	OrderShuffle Order = "shuffle"
)

// IsValid reports whether the order is one of the known values
func (o Order) IsValid() bool {
	return o == OrderChronological || o == OrderShuffle
}

// ContentRef binds a content key to a catalog collection
type ContentRef struct {
	Key        string `json:"key"`
	Collection string `json:"collection"`
	Order      Order  `json:"order"`
}

// Sequence is a named, ordered list of directives
type Sequence struct {
	Key   string      `json:"key"`
	Items []Directive `json:"items"`
}

// Playout binds a sequence to a repeat policy. It is what a channel broadcasts.
type Playout struct {
	Sequence string `json:"sequence"`
	Repeat   bool   `json:"repeat"`
}

// Document is a parsed schedule file with all imports merged in
type Document struct {
	Name        string
	Description string
	Content     map[string]ContentRef
	Sequences   map[string]Sequence
	Playouts    []Playout
	Imports     []string

	// Path is the absolute path of the root file (empty when parsed from bytes)
	Path string

	// Sources lists every file that contributed to the document, root first
	Sources []string
}

func newDocument() *Document {
	return &Document{
		Content:   make(map[string]ContentRef),
		Sequences: make(map[string]Sequence),
	}
}

// merge copies content and sequences from other into d, overwriting keys
// that already exist.
func (d *Document) merge(other *Document) {
	for k, v := range other.Content {
		d.Content[k] = v
	}
	for k, v := range other.Sequences {
		d.Sequences[k] = v
	}
}

// Playout returns the playout at index or an error when out of range
func (d *Document) Playout(index int) (Playout, error) {
	if index < 0 || index >= len(d.Playouts) {
		return Playout{}, fmt.Errorf("%w: index %d, document has %d", ErrPlayoutNotFound, index, len(d.Playouts))
	}
	return d.Playouts[index], nil
}

// Validate checks that every content and sequence key referenced by a
// directive or playout exists. Parsing never does this; callers opt in.
func (d *Document) Validate() error {
	var missing []string
	seen := make(map[string]bool)
	note := func(kind, key string) {
		id := kind + " " + key
		if !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}

	for _, p := range d.Playouts {
		if _, ok := d.Sequences[p.Sequence]; !ok {
			note("sequence", p.Sequence)
		}
	}

	for _, seq := range d.Sequences {
		for _, item := range seq.Items {
			if key := item.ContentKey; key != "" {
				if _, ok := d.Content[key]; !ok {
					note("content", key)
				}
			}
			if key := item.ReferencedSequence(); key != "" {
				if _, ok := d.Sequences[key]; !ok {
					note("sequence", key)
				}
			}
		}
	}

	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %v", ErrUnresolvedReference, missing)
}
