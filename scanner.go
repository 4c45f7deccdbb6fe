package dfilter

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/packetcap/go-dfilter/dissect"
	"github.com/packetcap/go-dfilter/filter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Packet a single packet returned by a scan, with the verdict of the filter
type Packet struct {
	// Number 1-based position in the capture
	Number int
	B      []byte
	Info   gopacket.CaptureInfo
	// Matched whether the display filter accepted the packet
	Matched bool
	// Prefiltered the capture filter rejected the packet before dissection
	Prefiltered bool
	// References the field occurrences the filter read, with WithReferences
	References []filter.Reference
	// Error reading or decoding the packet. A packet that failed to decode
	// part way has still been filtered on the layers that did decode.
	Error error
}

type options struct {
	workers    int
	prefilter  *dissect.Prefilter
	references bool
}

// Option configures a Scanner
type Option func(*options)

// WithWorkers apply the filter from n goroutines. Packets are still
// delivered in capture order.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithPrefilter drop packets the capture filter p rejects before they are dissected
func WithPrefilter(p *dissect.Prefilter) Option {
	return func(o *options) {
		o.prefilter = p
	}
}

// WithReferences report the field occurrences the filter read for every
// matching packet
func WithReferences() Option {
	return func(o *options) {
		o.references = true
	}
}

// Scanner applies one display filter to every packet of a capture
type Scanner struct {
	filter    *filter.Filter
	dissector *dissect.Dissector
	opts      options
}

// NewScanner a scanner applying f to packets decoded by d, or by a dissector
// over the default registry when d is nil. The dissector is primed with f.
func NewScanner(f *filter.Filter, d *dissect.Dissector, opts ...Option) *Scanner {
	if d == nil {
		d = dissect.New(nil)
	}
	o := options{workers: defaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	return &Scanner{filter: f, dissector: d.Prime(f), opts: o}
}

// job one packet on its way through the workers. The result comes back on
// done, so that packets can be emitted in the order they were read.
type job struct {
	pkt  Packet
	link layers.LinkType
	ref  time.Time
	done chan Packet
}

// Scan simple one-step command to read src until it is exhausted or ctx is
// cancelled, sending every packet over the returned channel in capture order.
// The channel is closed when the scan ends. A read error other than io.EOF is
// sent as a final packet with Error set.
func (s *Scanner) Scan(ctx context.Context, src gopacket.PacketDataSource, linkType layers.LinkType) chan Packet {
	out := make(chan Packet, packetBuffer)
	jobs := make(chan *job, s.opts.workers)
	order := make(chan *job, s.opts.workers*2)

	wg := &sync.WaitGroup{}
	for i := 0; i < s.opts.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				j.done <- s.process(j)
			}
		}()
	}

	go s.read(ctx, src, linkType, jobs, order)

	go func() {
		defer close(out)
		var seen, matched int
		for j := range order {
			p := <-j.done
			seen++
			if p.Matched {
				matched++
			}
			select {
			case out <- p:
			case <-ctx.Done():
				// keep draining so that the reader and workers can finish
			}
		}
		wg.Wait()
		log.WithFields(log.Fields{"packets": seen, "matched": matched, "filter": s.filter.Text()}).Debug("scan finished")
	}()
	return out
}

// read feed packets from src to the workers, and the same jobs in the same
// order to the emitter
func (s *Scanner) read(ctx context.Context, src gopacket.PacketDataSource, linkType layers.LinkType, jobs, order chan<- *job) {
	defer close(order)
	defer close(jobs)
	var ref time.Time
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return
		}
		b, ci, err := src.ReadPacketData()
		if err == io.EOF {
			return
		}
		j := &job{pkt: Packet{Number: n, B: b, Info: ci}, link: linkType, done: make(chan Packet, 1)}
		if err != nil {
			j.pkt.Error = errors.Wrapf(err, "reading packet %d", n)
			j.done <- j.pkt
			order <- j
			return
		}
		if ref.IsZero() {
			ref = ci.Timestamp
		}
		j.ref = ref
		order <- j
		jobs <- j
	}
}

func (s *Scanner) process(j *job) Packet {
	p := j.pkt
	if s.opts.prefilter != nil && !s.opts.prefilter.Match(p.B) {
		p.Prefiltered = true
		return p
	}
	b, err := s.dissector.Dissect(dissect.Frame{Number: p.Number, Data: p.B, Info: p.Info, LinkType: j.link, Reference: j.ref})
	if err != nil {
		log.WithFields(log.Fields{"packet": p.Number, "error": err}).Debug("packet did not fully decode")
		p.Error = err
	}
	p.Matched = s.filter.Apply(b)
	if p.Matched && s.opts.references {
		p.References = s.filter.LoadFieldReferences(b)
	}
	log.WithFields(log.Fields{"packet": p.Number, "matched": p.Matched}).Trace("applied filter")
	return p
}
