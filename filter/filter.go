package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/packetcap/go-dfilter/registry"
	log "github.com/sirupsen/logrus"
)

// Filter a compiled display filter. It is immutable once compiled and safe
// to apply from many goroutines at once.
type Filter struct {
	text        string
	prog        *program
	interesting []registry.FieldID
	deprecated  []DeprecatedToken
	warnings    []string
}

// Compile turn filter text into a Filter, resolving names against reg, or the
// default registry when reg is nil. Blank text compiles to the null filter,
// which matches every packet. Errors implement Spanned where the offending
// text is known.
func Compile(reg *registry.Registry, text string, opts ...Option) (*Filter, error) {
	return CompileContext(context.Background(), reg, text, opts...)
}

// CompileContext is Compile with a context bounding any host name lookups
func CompileContext(ctx context.Context, reg *registry.Registry, text string, opts ...Option) (*Filter, error) {
	if reg == nil {
		reg = registry.Default()
	}
	f := &Filter{text: text}
	if strings.TrimSpace(text) == "" {
		return f, nil
	}
	root, err := parse(text)
	if err != nil {
		return nil, err
	}
	b := newBinder(ctx, reg, newOptions(opts))
	bound, err := b.bind(root)
	if err != nil {
		return nil, err
	}
	f.prog = generate(bound)
	f.interesting = b.interesting()
	f.deprecated = b.deprecated
	f.warnings = b.warnings
	log.WithFields(f.LogFields()).Debug("compiled display filter")
	for _, d := range f.deprecated {
		log.WithFields(log.Fields{"name": d.Name, "replacement": d.Replacement, "offset": d.Offset}).Debug("deprecated field name in filter")
	}
	return f, nil
}

// MustCompile is Compile for filters known to be valid, panicking otherwise
func MustCompile(reg *registry.Registry, text string) *Filter {
	f, err := Compile(reg, text)
	if err != nil {
		panic(fmt.Sprintf("filter: compiling %q: %v", text, err))
	}
	return f
}

// Apply whether the packet described by b matches. The null filter, and a
// nil *Filter, match everything.
func (f *Filter) Apply(b Binding) bool {
	if f.IsNull() {
		return true
	}
	return f.prog.run(b, nil)
}

// IsNull whether this is the filter compiled from blank text
func (f *Filter) IsNull() bool {
	return f == nil || f.prog == nil
}

// Text the source the filter was compiled from
func (f *Filter) Text() string {
	if f == nil {
		return ""
	}
	return f.text
}

// InterestingFields the sorted ids of every field the filter may read,
// whichever branches a packet takes. Dissectors use it to decide what to decode.
func (f *Filter) InterestingFields() []registry.FieldID {
	if f.IsNull() {
		return nil
	}
	out := make([]registry.FieldID, len(f.interesting))
	copy(out, f.interesting)
	return out
}

// HasInterestingField whether the filter may read id
func (f *Filter) HasInterestingField(id registry.FieldID) bool {
	if f.IsNull() {
		return false
	}
	for _, i := range f.interesting {
		if i == id {
			return true
		}
	}
	return false
}

// LoadFieldReferences apply the filter to b again and report the occurrences
// it actually read, in the order it read them. Fields on the far side of a
// short-circuited and/or are not reported.
func (f *Filter) LoadFieldReferences(b Binding) []Reference {
	if f.IsNull() {
		return nil
	}
	t := newTracker()
	f.prog.run(b, t)
	return t.refs
}

// DeprecatedTokens the retired field names the filter used
func (f *Filter) DeprecatedTokens() []DeprecatedToken {
	if f == nil {
		return nil
	}
	out := make([]DeprecatedToken, len(f.deprecated))
	copy(out, f.deprecated)
	return out
}

// Warnings non-fatal remarks made while compiling, e.g. on comparisons of
// signed with unsigned integers
func (f *Filter) Warnings() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.warnings))
	copy(out, f.warnings)
	return out
}

// Size number of instructions in the program
func (f *Filter) Size() int {
	if f.IsNull() {
		return 0
	}
	return len(f.prog.insns)
}

// Dump a human readable listing of the compiled program
func (f *Filter) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Filter: %s\n", f.Text())
	if f.IsNull() {
		b.WriteString("Null filter, matches everything\n")
		return b.String()
	}
	b.WriteString(f.prog.dump())
	b.WriteString("Interesting fields:\n")
	for _, id := range f.interesting {
		name := "?"
		for _, in := range f.prog.insns {
			if in.field != nil && in.field.ID == id {
				name = in.field.Name
				break
			}
		}
		fmt.Fprintf(&b, "  %d %s\n", id, name)
	}
	for _, d := range f.deprecated {
		fmt.Fprintf(&b, "Deprecated: %s at offset %d, use %s\n", d.Name, d.Offset, d.Replacement)
	}
	return b.String()
}

// Fingerprint a hash of the compiled program. Texts that compile to the same
// program, e.g. differing only in spacing, share a fingerprint.
func (f *Filter) Fingerprint() uint64 {
	if f.IsNull() {
		return xxhash.Sum64String("")
	}
	return xxhash.Sum64String(f.prog.dump())
}

// Equal whether two filters compiled to the same program
func (f *Filter) Equal(o *Filter) bool {
	if f.IsNull() || o.IsNull() {
		return f.IsNull() && o.IsNull()
	}
	return f.prog.dump() == o.prog.dump()
}

// LogFields describe the filter for structured logs
func (f *Filter) LogFields() log.Fields {
	return log.Fields{
		"filter":       f.Text(),
		"null":         f.IsNull(),
		"instructions": f.Size(),
		"fields":       len(f.InterestingFields()),
	}
}
