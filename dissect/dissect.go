// Package dissect decodes captured frames with gopacket into the field
// bindings display filters are applied to.
package dissect

import (
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/packetcap/go-dfilter/filter"
	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/packetcap/go-dfilter/registry"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Frame one captured packet as handed to the dissector
type Frame struct {
	// Number 1-based position in the capture
	Number   int
	Data     []byte
	Info     gopacket.CaptureInfo
	LinkType layers.LinkType
	// Reference arrival time of the first frame, for frame.time_relative
	Reference time.Time
}

// Dissector turns frames into filter bindings. It is immutable and safe for
// concurrent use.
type Dissector struct {
	fields map[string]*registry.Descriptor
	// want the fields to materialize; nil means all of them
	want map[registry.FieldID]bool
}

// New a dissector emitting the fields of reg it knows how to decode. Fields
// reg lacks are never emitted.
func New(reg *registry.Registry) *Dissector {
	if reg == nil {
		reg = registry.Default()
	}
	d := &Dissector{fields: map[string]*registry.Descriptor{}}
	for _, name := range emitted {
		desc, ok := reg.Resolve(name)
		if !ok {
			log.WithField("field", name).Debug("field not registered, dissector will not emit it")
			continue
		}
		d.fields[name] = desc
	}
	return d
}

// Prime a copy of the dissector that only materializes what f can read: its
// interesting fields and the protocols they belong to. A nil filter primes
// nothing and every field is emitted; the null filter reads nothing.
func (d *Dissector) Prime(f *filter.Filter) *Dissector {
	if f == nil {
		return d
	}
	primed := &Dissector{fields: d.fields, want: map[registry.FieldID]bool{}}
	for _, id := range f.InterestingFields() {
		primed.want[id] = true
	}
	for _, desc := range d.fields {
		if primed.want[desc.ID] && desc.Parent != 0 {
			primed.want[desc.Parent] = true
		}
	}
	log.WithFields(log.Fields{"filter": f.Text(), "fields": len(primed.want)}).Debug("primed dissector")
	return primed
}

// Primed whether the dissector was restricted by Prime
func (d *Dissector) Primed() bool {
	return d.want != nil
}

func (d *Dissector) wants(desc *registry.Descriptor) bool {
	return desc != nil && (d.want == nil || d.want[desc.ID])
}

// Dissect decode a frame. Offsets of the occurrences are absolute within
// the frame. A frame that fails to decode part way still yields the fields of
// the layers before the failure, together with the error.
func (d *Dissector) Dissect(fr Frame) (filter.MapBinding, error) {
	w := &walker{d: d, b: filter.NewMapBinding(), data: fr.Data}
	packet := gopacket.NewPacket(fr.Data, fr.LinkType, gopacket.DecodeOptions{NoCopy: true})

	var protocols []string
	for _, l := range packet.Layers() {
		contents := l.LayerContents()
		end := w.base + len(contents) + len(l.LayerPayload())
		if end > len(fr.Data) {
			end = len(fr.Data)
		}
		w.layerEnd = end
		if name := w.layer(l); name != "" {
			protocols = append(protocols, name)
		}
		w.base += len(contents)
	}
	w.frame(fr, protocols)

	if e := packet.ErrorLayer(); e != nil {
		return w.b, errors.Wrapf(e.Error(), "decoding frame %d", fr.Number)
	}
	return w.b, nil
}

// walker the state of one Dissect call
type walker struct {
	d    *Dissector
	b    filter.MapBinding
	data []byte
	// base offset in the frame of the layer being walked
	base     int
	layerEnd int
}

func (w *walker) desc(name string) *registry.Descriptor {
	desc := w.d.fields[name]
	if !w.d.wants(desc) {
		return nil
	}
	return desc
}

func (w *walker) add(name string, v func(t ftypes.Type) ftypes.Value, off, length int) {
	desc := w.desc(name)
	if desc == nil {
		return
	}
	w.b.Add(desc.ID, v(desc.Type), w.base+off, length)
}

func (w *walker) uint(name string, u uint64, off, length int) {
	w.add(name, func(t ftypes.Type) ftypes.Value { return ftypes.NewUint(t, u) }, off, length)
}

func (w *walker) flag(name string, b bool, off, length int) {
	w.add(name, func(ftypes.Type) ftypes.Value { return ftypes.NewBool(b) }, off, length)
}

func (w *walker) str(name string, s string, off, length int) {
	w.add(name, func(ftypes.Type) ftypes.Value { return ftypes.NewString(s) }, off, length)
}

func (w *walker) bytes(name string, b []byte, off int) {
	w.add(name, func(ftypes.Type) ftypes.Value { return ftypes.NewBytes(b) }, off, len(b))
}

func (w *walker) ether(name string, hw net.HardwareAddr, off int) {
	w.add(name, func(ftypes.Type) ftypes.Value { return ftypes.NewEther(hw) }, off, len(hw))
}

func (w *walker) ip(name string, ip net.IP, off int) {
	// gopacket hands out 4 byte slices for IPv4 and 16 for IPv6, so the
	// family follows the layer
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return
	}
	w.add(name, func(ftypes.Type) ftypes.Value { return ftypes.NewIP(addr) }, off, addr.BitLen()/8)
}

func (w *walker) time(name string, tm time.Time) {
	w.add(name, func(ftypes.Type) ftypes.Value { return ftypes.NewAbsoluteTime(tm) }, 0, 0)
}

func (w *walker) duration(name string, dur time.Duration) {
	w.add(name, func(ftypes.Type) ftypes.Value { return ftypes.NewRelativeTime(dur) }, 0, 0)
}

// protocol add the protocol node covering the current layer and its payload
func (w *walker) protocol(name string) {
	desc := w.desc(name)
	if desc == nil {
		return
	}
	start := w.base
	if start > w.layerEnd {
		start = w.layerEnd
	}
	w.b.Add(desc.ID, ftypes.NewProtocol(w.data[start:w.layerEnd]), start, w.layerEnd-start)
}

func (w *walker) frame(fr Frame, protocols []string) {
	w.base = 0
	w.layerEnd = len(fr.Data)
	length := fr.Info.Length
	if length == 0 {
		length = len(fr.Data)
	}
	w.protocol("frame")
	w.uint("frame.number", uint64(fr.Number), 0, 0)
	w.uint("frame.len", uint64(length), 0, 0)
	w.uint("frame.cap_len", uint64(len(fr.Data)), 0, 0)
	w.uint("frame.interface_id", uint64(fr.Info.InterfaceIndex), 0, 0)
	if !fr.Info.Timestamp.IsZero() {
		w.time("frame.time", fr.Info.Timestamp)
		if !fr.Reference.IsZero() {
			w.duration("frame.time_relative", fr.Info.Timestamp.Sub(fr.Reference))
		}
	}
	w.str("frame.protocols", strings.Join(append([]string{"frame"}, protocols...), ":"), 0, 0)
}
