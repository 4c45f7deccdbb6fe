package registry

import (
	"io"
	"os"
	"sort"

	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Catalog a declarative set of protocols, their fields and retired names, as
// read from a YAML file:
//
//	protocols:
//	  - name: cliprdr
//	    description: RDP clipboard redirection channel
//	    fields:
//	      - name: cliprdr.msgtype
//	        type: uint16
//	        base: hex
//	        strings: {1: Monitor ready}
//	deprecated:
//	  rdp_cliprdr: cliprdr
type Catalog struct {
	Protocols  []ProtocolSpec    `yaml:"protocols"`
	Deprecated map[string]string `yaml:"deprecated"`
}

type ProtocolSpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Fields      []FieldSpec `yaml:"fields"`
}

type FieldSpec struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Type        string            `yaml:"type"`
	Base        string            `yaml:"base"`
	Strings     map[uint64]string `yaml:"strings"`
}

// Apply register everything in the catalog
func (c *Catalog) Apply(r *Registry) error {
	for _, p := range c.Protocols {
		proto, err := r.RegisterProtocol(p.Name, p.Description)
		if err != nil {
			return errors.Wrapf(err, "protocol %s", p.Name)
		}
		for _, f := range p.Fields {
			t, ok := ftypes.ParseType(f.Type)
			if !ok {
				return errors.Errorf("field %s: unknown type %q", f.Name, f.Type)
			}
			base := BaseNone
			if f.Base != "" {
				if base, ok = ParseBase(f.Base); !ok {
					return errors.Errorf("field %s: unknown base %q", f.Name, f.Base)
				}
			} else if t.IsInteger() {
				base = BaseDec
			}
			if len(f.Strings) > 0 {
				_, err = r.RegisterStrings(proto, f.Name, t, base, f.Description, f.Strings)
			} else {
				_, err = r.Register(proto, f.Name, t, base, f.Description)
			}
			if err != nil {
				return errors.Wrapf(err, "field %s", f.Name)
			}
		}
	}
	// sorted so that errors are reported deterministically
	olds := make([]string, 0, len(c.Deprecated))
	for old := range c.Deprecated {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		if err := r.Deprecate(old, c.Deprecated[old]); err != nil {
			return errors.Wrapf(err, "deprecated name %s", old)
		}
	}
	return nil
}

// LoadYAML decode a catalog and register it. Unknown keys are rejected.
func LoadYAML(r *Registry, rd io.Reader) error {
	var c Catalog
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return errors.Wrap(err, "decoding field catalog")
	}
	return c.Apply(r)
}

// LoadFile register the catalog in a YAML file
func LoadFile(r *Registry, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return errors.Wrapf(LoadYAML(r, f), "loading %s", filename)
}
