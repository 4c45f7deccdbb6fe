// Package registry is the catalog of protocols and fields a display filter can
// name. It is built once, frozen, and then only read.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/packetcap/go-dfilter/ftypes"
)

// FieldID stable identifier of a registered field or protocol. Zero is never assigned.
type FieldID int

var (
	errFrozen        = errors.New("registry is frozen")
	errEmptyName     = errors.New("field name is blank")
	errNotProtocol   = errors.New("parent is not a protocol")
	errProtocolChild = errors.New("field name must start with its protocol name")
	nameSyntax       = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-]*(\.[A-Za-z0-9_\-]+)*$`)
)

// Descriptor describes one registered field. Protocols are descriptors of
// TypeProtocol without a parent.
type Descriptor struct {
	ID          FieldID
	Name        string
	Description string
	Type        ftypes.Type
	Base        Base
	Parent      FieldID
	// Strings maps integer values to the names they are displayed with
	Strings map[uint64]string
}

// IsProtocol whether the descriptor is a protocol node
func (d *Descriptor) IsProtocol() bool {
	return d.Type == ftypes.TypeProtocol && d.Parent == 0
}

// Registry maps dotted names to descriptors
type Registry struct {
	mu         sync.RWMutex
	frozen     bool
	byName     map[string]*Descriptor
	byID       []*Descriptor
	deprecated map[string]string
}

func New() *Registry {
	return &Registry{
		byName:     map[string]*Descriptor{},
		byID:       []*Descriptor{nil},
		deprecated: map[string]string{},
	}
}

// RegisterProtocol add a protocol node
func (r *Registry) RegisterProtocol(name, description string) (FieldID, error) {
	return r.register(&Descriptor{
		Name:        name,
		Description: description,
		Type:        ftypes.TypeProtocol,
		Base:        BaseNone,
	})
}

// Register add a field under a protocol. The field name must be prefixed with
// the protocol name, e.g. "tcp.port" under "tcp".
func (r *Registry) Register(parent FieldID, name string, t ftypes.Type, base Base, description string) (FieldID, error) {
	return r.register(&Descriptor{
		Name:        name,
		Description: description,
		Type:        t,
		Base:        base,
		Parent:      parent,
	})
}

// RegisterStrings add a field whose integer values carry display names
func (r *Registry) RegisterStrings(parent FieldID, name string, t ftypes.Type, base Base, description string, vals map[uint64]string) (FieldID, error) {
	if !t.IsInteger() {
		return 0, fmt.Errorf("field %s: value strings need an integer type, not %s", name, t)
	}
	return r.register(&Descriptor{
		Name:        name,
		Description: description,
		Type:        t,
		Base:        base,
		Parent:      parent,
		Strings:     vals,
	})
}

func (r *Registry) register(d *Descriptor) (FieldID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return 0, errFrozen
	}
	if d.Name == "" {
		return 0, errEmptyName
	}
	if !nameSyntax.MatchString(d.Name) {
		return 0, fmt.Errorf("invalid field name %q", d.Name)
	}
	if _, ok := r.byName[d.Name]; ok {
		return 0, fmt.Errorf("field %s already registered", d.Name)
	}
	if d.Type == ftypes.TypeNone {
		return 0, fmt.Errorf("field %s has no type", d.Name)
	}
	if d.Parent != 0 {
		if int(d.Parent) >= len(r.byID) || d.Parent < 0 {
			return 0, fmt.Errorf("field %s: unknown parent %d", d.Name, d.Parent)
		}
		parent := r.byID[d.Parent]
		if !parent.IsProtocol() {
			return 0, errNotProtocol
		}
		if !strings.HasPrefix(d.Name, parent.Name+".") {
			return 0, errProtocolChild
		}
	}
	d.ID = FieldID(len(r.byID))
	r.byID = append(r.byID, d)
	r.byName[d.Name] = d
	return d.ID, nil
}

// Deprecate record a retired spelling and its replacement. A retired protocol
// name also retires every field under it.
func (r *Registry) Deprecate(old, replacement string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return errFrozen
	}
	if old == "" || replacement == "" {
		return errEmptyName
	}
	r.deprecated[old] = replacement
	return nil
}

// Freeze stop accepting registrations
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Resolve look up a field or protocol by name
func (r *Registry) Resolve(name string) (*Descriptor, bool) {
	r.mu.RLock()
	d, ok := r.byName[name]
	r.mu.RUnlock()
	return d, ok
}

// ByID look up a field or protocol by id
func (r *Registry) ByID(id FieldID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id <= 0 || int(id) >= len(r.byID) {
		return nil, false
	}
	return r.byID[id], true
}

// MustResolve the id of a field known to exist, for wiring code that
// registered the field itself
func (r *Registry) MustResolve(name string) FieldID {
	d, ok := r.Resolve(name)
	if !ok {
		panic(fmt.Sprintf("registry: field %s is not registered", name))
	}
	return d.ID
}

// Replacement the current spelling of a retired name, checking the exact name
// first and then its dotted prefixes, longest first
func (r *Registry) Replacement(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if repl, ok := r.deprecated[name]; ok {
		return repl, true
	}
	for i := strings.LastIndexByte(name, '.'); i > 0; i = strings.LastIndexByte(name[:i], '.') {
		if repl, ok := r.deprecated[name[:i]]; ok {
			return repl + name[i:], true
		}
	}
	return "", false
}

// Len number of registered fields and protocols
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID) - 1
}

// Fields every descriptor whose name starts with prefix, sorted by name
func (r *Registry) Fields(prefix string) []*Descriptor {
	r.mu.RLock()
	out := make([]*Descriptor, 0, len(r.byID))
	for _, d := range r.byID[1:] {
		if strings.HasPrefix(d.Name, prefix) {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Deprecated the table of retired spellings
func (r *Registry) Deprecated() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.deprecated))
	for k, v := range r.deprecated {
		out[k] = v
	}
	return out
}
