package dissect

import (
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// emitted every field the dissector can fill in
var emitted = []string{
	"frame", "frame.number", "frame.len", "frame.cap_len", "frame.time", "frame.time_relative",
	"frame.interface_id", "frame.protocols",
	"eth", "eth.dst", "eth.src", "eth.addr", "eth.type",
	"ip", "ip.version", "ip.hdr_len", "ip.dsfield", "ip.len", "ip.id", "ip.flags", "ip.flags.df",
	"ip.flags.mf", "ip.frag_offset", "ip.ttl", "ip.proto", "ip.checksum", "ip.src", "ip.dst", "ip.addr",
	"ipv6", "ipv6.version", "ipv6.tclass", "ipv6.flow", "ipv6.plen", "ipv6.nxt", "ipv6.hlim",
	"ipv6.src", "ipv6.dst", "ipv6.addr",
	"tcp", "tcp.srcport", "tcp.dstport", "tcp.port", "tcp.seq", "tcp.ack", "tcp.hdr_len", "tcp.flags",
	"tcp.flags.fin", "tcp.flags.syn", "tcp.flags.reset", "tcp.flags.push", "tcp.flags.ack",
	"tcp.flags.urg", "tcp.window_size_value", "tcp.checksum", "tcp.urgent_pointer", "tcp.len",
	"tcp.payload",
	"udp", "udp.srcport", "udp.dstport", "udp.port", "udp.length", "udp.checksum", "udp.payload",
	"dns", "dns.id", "dns.flags.response", "dns.flags.opcode", "dns.flags.rcode", "dns.count.queries",
	"dns.count.answers", "dns.qry.name", "dns.qry.type", "dns.resp.name", "dns.resp.ttl", "dns.a",
	"dns.aaaa",
	"data", "data.data", "data.len",
}

// layer emit the fields of one decoded layer, returning its protocol name, or
// "" for layers without one
func (w *walker) layer(l gopacket.Layer) string {
	switch l := l.(type) {
	case *layers.Ethernet:
		w.ethernet(l)
		return "eth"
	case *layers.IPv4:
		w.ipv4(l)
		return "ip"
	case *layers.IPv6:
		w.ipv6(l)
		return "ipv6"
	case *layers.TCP:
		w.tcp(l)
		return "tcp"
	case *layers.UDP:
		w.udp(l)
		return "udp"
	case *layers.DNS:
		w.dns(l)
		return "dns"
	case *gopacket.Payload:
		w.payload(l.Payload())
		return "data"
	}
	return ""
}

func (w *walker) ethernet(l *layers.Ethernet) {
	w.protocol("eth")
	w.ether("eth.dst", l.DstMAC, 0)
	w.ether("eth.src", l.SrcMAC, 6)
	w.ether("eth.addr", l.DstMAC, 0)
	w.ether("eth.addr", l.SrcMAC, 6)
	w.uint("eth.type", uint64(l.EthernetType), 12, 2)
}

func (w *walker) ipv4(l *layers.IPv4) {
	w.protocol("ip")
	w.uint("ip.version", uint64(l.Version), 0, 1)
	w.uint("ip.hdr_len", uint64(l.IHL)*4, 0, 1)
	w.uint("ip.dsfield", uint64(l.TOS), 1, 1)
	w.uint("ip.len", uint64(l.Length), 2, 2)
	w.uint("ip.id", uint64(l.Id), 4, 2)
	w.uint("ip.flags", uint64(l.Flags)<<5, 6, 1)
	w.flag("ip.flags.df", l.Flags&layers.IPv4DontFragment != 0, 6, 1)
	w.flag("ip.flags.mf", l.Flags&layers.IPv4MoreFragments != 0, 6, 1)
	w.uint("ip.frag_offset", uint64(l.FragOffset)*8, 6, 2)
	w.uint("ip.ttl", uint64(l.TTL), 8, 1)
	w.uint("ip.proto", uint64(l.Protocol), 9, 1)
	w.uint("ip.checksum", uint64(l.Checksum), 10, 2)
	w.ip("ip.src", l.SrcIP, 12)
	w.ip("ip.dst", l.DstIP, 16)
	w.ip("ip.addr", l.SrcIP, 12)
	w.ip("ip.addr", l.DstIP, 16)
}

func (w *walker) ipv6(l *layers.IPv6) {
	w.protocol("ipv6")
	w.uint("ipv6.version", uint64(l.Version), 0, 1)
	w.uint("ipv6.tclass", uint64(l.TrafficClass), 0, 2)
	w.uint("ipv6.flow", uint64(l.FlowLabel), 1, 3)
	w.uint("ipv6.plen", uint64(l.Length), 4, 2)
	w.uint("ipv6.nxt", uint64(l.NextHeader), 6, 1)
	w.uint("ipv6.hlim", uint64(l.HopLimit), 7, 1)
	w.ip("ipv6.src", l.SrcIP, 8)
	w.ip("ipv6.dst", l.DstIP, 24)
	w.ip("ipv6.addr", l.SrcIP, 8)
	w.ip("ipv6.addr", l.DstIP, 24)
}

// tcpFlags the flag bits as they sit in the low 12 bits of header bytes 12-13
func tcpFlags(l *layers.TCP) uint64 {
	var f uint64
	for i, set := range []bool{l.FIN, l.SYN, l.RST, l.PSH, l.ACK, l.URG, l.ECE, l.CWR, l.NS} {
		if set {
			f |= 1 << uint(i)
		}
	}
	return f
}

func (w *walker) tcp(l *layers.TCP) {
	w.protocol("tcp")
	w.uint("tcp.srcport", uint64(l.SrcPort), 0, 2)
	w.uint("tcp.dstport", uint64(l.DstPort), 2, 2)
	w.uint("tcp.port", uint64(l.SrcPort), 0, 2)
	w.uint("tcp.port", uint64(l.DstPort), 2, 2)
	w.uint("tcp.seq", uint64(l.Seq), 4, 4)
	w.uint("tcp.ack", uint64(l.Ack), 8, 4)
	w.uint("tcp.hdr_len", uint64(l.DataOffset)*4, 12, 1)
	w.uint("tcp.flags", tcpFlags(l), 12, 2)
	w.flag("tcp.flags.fin", l.FIN, 13, 1)
	w.flag("tcp.flags.syn", l.SYN, 13, 1)
	w.flag("tcp.flags.reset", l.RST, 13, 1)
	w.flag("tcp.flags.push", l.PSH, 13, 1)
	w.flag("tcp.flags.ack", l.ACK, 13, 1)
	w.flag("tcp.flags.urg", l.URG, 13, 1)
	w.uint("tcp.window_size_value", uint64(l.Window), 14, 2)
	w.uint("tcp.checksum", uint64(l.Checksum), 16, 2)
	w.uint("tcp.urgent_pointer", uint64(l.Urgent), 18, 2)
	payload := l.LayerPayload()
	w.uint("tcp.len", uint64(len(payload)), len(l.Contents), 0)
	if len(payload) > 0 {
		w.bytes("tcp.payload", payload, len(l.Contents))
	}
}

func (w *walker) udp(l *layers.UDP) {
	w.protocol("udp")
	w.uint("udp.srcport", uint64(l.SrcPort), 0, 2)
	w.uint("udp.dstport", uint64(l.DstPort), 2, 2)
	w.uint("udp.port", uint64(l.SrcPort), 0, 2)
	w.uint("udp.port", uint64(l.DstPort), 2, 2)
	w.uint("udp.length", uint64(l.Length), 4, 2)
	w.uint("udp.checksum", uint64(l.Checksum), 6, 2)
	if payload := l.LayerPayload(); len(payload) > 0 {
		w.bytes("udp.payload", payload, len(l.Contents))
	}
}

func (w *walker) payload(b []byte) {
	w.protocol("data")
	w.bytes("data.data", b, 0)
	w.uint("data.len", uint64(len(b)), 0, 0)
}

// dnsNameEnd the offset just past the encoded name starting at i, following
// neither compression pointers nor anything past the end of b
func dnsNameEnd(b []byte, i int) int {
	for i < len(b) {
		n := int(b[i])
		switch {
		case n == 0:
			return i + 1
		case n&0xc0 == 0xc0:
			return i + 2
		}
		i += 1 + n
	}
	return len(b)
}

func (w *walker) dns(l *layers.DNS) {
	w.protocol("dns")
	w.uint("dns.id", uint64(l.ID), 0, 2)
	w.flag("dns.flags.response", l.QR, 2, 1)
	w.uint("dns.flags.opcode", uint64(l.OpCode), 2, 1)
	w.uint("dns.flags.rcode", uint64(l.ResponseCode), 3, 1)
	w.uint("dns.count.queries", uint64(l.QDCount), 4, 2)
	w.uint("dns.count.answers", uint64(l.ANCount), 6, 2)

	raw := l.Contents
	i := 12
	for _, q := range l.Questions {
		end := dnsNameEnd(raw, i)
		w.str("dns.qry.name", string(q.Name), i, end-i)
		w.uint("dns.qry.type", uint64(q.Type), end, 2)
		i = end + 4
	}
	for _, a := range l.Answers {
		end := dnsNameEnd(raw, i)
		w.str("dns.resp.name", string(a.Name), i, end-i)
		w.uint("dns.resp.ttl", uint64(a.TTL), end+4, 4)
		rdata := end + 10
		switch a.Type {
		case layers.DNSTypeA:
			w.ip("dns.a", a.IP, rdata)
		case layers.DNSTypeAAAA:
			w.ip("dns.aaaa", a.IP, rdata)
		}
		i = rdata + int(a.DataLength)
	}
}
