package filter

import (
	"context"
	"net/netip"
	"time"

	"github.com/packetcap/go-dfilter/ftypes"
	log "github.com/sirupsen/logrus"
)

const defaultResolveTimeout = 2 * time.Second

// Resolver looks up host names written where an address is expected, as in
// ip.dst == www.example.com. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Options control how filters are compiled
type Options struct {
	resolver       Resolver
	resolveTimeout time.Duration
}

type Option func(*Options)

// WithResolver allow host names in address comparisons. Without a resolver
// a host name is an invalid literal.
func WithResolver(r Resolver) Option {
	return func(o *Options) {
		o.resolver = r
	}
}

// WithResolveTimeout bound each host name lookup
func WithResolveTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.resolveTimeout = d
	}
}

func newOptions(opts []Option) *Options {
	o := &Options{resolveTimeout: defaultResolveTimeout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// resolve the first address of host in the family of t
func (o *Options) resolve(ctx context.Context, t ftypes.Type, host string) (ftypes.Value, error) {
	network := "ip4"
	if t == ftypes.TypeIPv6 {
		network = "ip6"
	}
	if o.resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.resolveTimeout)
		defer cancel()
	}
	addrs, err := o.resolver.LookupNetIP(ctx, network, host)
	if err != nil {
		log.WithFields(log.Fields{"host": host, "network": network}).Debugf("host name lookup failed: %v", err)
		return ftypes.Value{}, err
	}
	for _, a := range addrs {
		a = a.Unmap()
		if (t == ftypes.TypeIPv4 && a.Is4()) || (t == ftypes.TypeIPv6 && a.Is6()) {
			log.WithFields(log.Fields{"host": host, "address": a}).Debug("resolved host name in filter")
			return ftypes.NewIP(a), nil
		}
	}
	return ftypes.Value{}, errNoAddress
}
