package filter

import (
	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/packetcap/go-dfilter/registry"
)

// Occurrence one appearance of a field in a packet, with where its bytes sit
// in the frame
type Occurrence struct {
	Value  ftypes.Value
	Offset int
	Length int
}

// Binding the decoded fields of one packet. Occurrences are in the order the
// dissector found them, outermost layer first. A field the packet lacks has
// no occurrences.
type Binding interface {
	Occurrences(id registry.FieldID) []Occurrence
}

// MapBinding a Binding backed by a map, filled in by a dissector
type MapBinding map[registry.FieldID][]Occurrence

func NewMapBinding() MapBinding {
	return MapBinding{}
}

// Add append an occurrence of a field
func (m MapBinding) Add(id registry.FieldID, v ftypes.Value, offset, length int) {
	m[id] = append(m[id], Occurrence{Value: v, Offset: offset, Length: length})
}

func (m MapBinding) Occurrences(id registry.FieldID) []Occurrence {
	return m[id]
}

// Has whether the field occurs at all
func (m MapBinding) Has(id registry.FieldID) bool {
	return len(m[id]) > 0
}

// Reference an occurrence a filter read while it was applied
type Reference struct {
	Field registry.FieldID
	Occurrence
}
