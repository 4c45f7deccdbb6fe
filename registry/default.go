package registry

import "sync"

var ipProtocols = map[uint64]string{
	1:  "ICMP",
	2:  "IGMP",
	4:  "IPIP",
	6:  "TCP",
	17: "UDP",
	41: "IPv6",
	47: "GRE",
	50: "ESP",
	51: "AH",
	58: "ICMPv6",
}

var etherTypes = map[uint64]string{
	0x0800: "IPv4",
	0x0806: "ARP",
	0x8035: "RARP",
	0x8100: "802.1Q Virtual LAN",
	0x86dd: "IPv6",
}

var cliprdrOrders = map[uint64]string{
	0x0001: "Monitor ready",
	0x0002: "Format list",
	0x0003: "Format list response",
	0x0004: "Format data request",
	0x0005: "Format data response",
	0x0006: "Temporary directory",
	0x0007: "Capabilities",
	0x0008: "File content request",
	0x0009: "File content response",
	0x000a: "Lock clipdata",
	0x000b: "Unlock clipdata",
}

var cliprdrMsgFlags = map[uint64]string{
	0x0001: "CB_RESPONSE_OK",
	0x0002: "CB_RESPONSE_FAIL",
	0x0004: "CB_ASCII_NAMES",
}

var cliprdrFormats = map[uint64]string{
	0x0000: "CB_RAW",
	0x0001: "CF_TEXT",
	0x0002: "CF_BITMAP",
	0x0003: "CF_METAFILEPICT",
	0x0004: "CF_SYLK",
	0x0005: "CF_DIF",
	0x0006: "CF_TIFF",
	0x0007: "CF_OEMTEXT",
	0x0008: "CF_DIB",
	0x0009: "CF_PALETTE",
	0x000a: "CF_PENDATA",
	0x000b: "CF_RIFF",
	0x000c: "CF_WAVE",
	0x000d: "CF_UNICODETEXT",
	0x000e: "CF_ENHMETAFILE",
	0x000f: "CF_HDROP",
	0x0010: "CF_LOCALE",
	0x0011: "CF_DIBV5",
	0x0080: "CF_OWNERDISPLAY",
	0x0081: "CF_DSPTEXT",
	0x0082: "CF_DSPBITMAP",
	0x0083: "CF_DSPMETAFILEPICT",
	0x008e: "CF_DSPENHMETAFILE",
}

var dnsTypes = map[uint64]string{
	1:  "A",
	2:  "NS",
	5:  "CNAME",
	6:  "SOA",
	12: "PTR",
	15: "MX",
	16: "TXT",
	28: "AAAA",
	33: "SRV",
}

// DefaultCatalog the protocols the dissect package knows how to populate,
// plus the RDP clipboard channel and ETW record headers
func DefaultCatalog() *Catalog {
	return &Catalog{
		Protocols: []ProtocolSpec{
			{Name: "frame", Description: "Frame", Fields: []FieldSpec{
				{Name: "frame.number", Type: "uint32", Description: "Frame Number"},
				{Name: "frame.len", Type: "uint32", Description: "Frame length on the wire"},
				{Name: "frame.cap_len", Type: "uint32", Description: "Frame length stored into the capture file"},
				{Name: "frame.time", Type: "absolute_time", Description: "Arrival Time"},
				{Name: "frame.time_relative", Type: "relative_time", Description: "Time since reference or first frame"},
				{Name: "frame.interface_id", Type: "uint32", Description: "Interface id"},
				{Name: "frame.protocols", Type: "string", Description: "Protocols in frame"},
			}},
			{Name: "eth", Description: "Ethernet II", Fields: []FieldSpec{
				{Name: "eth.dst", Type: "ether", Description: "Destination"},
				{Name: "eth.src", Type: "ether", Description: "Source"},
				{Name: "eth.addr", Type: "ether", Description: "Address"},
				{Name: "eth.type", Type: "uint16", Base: "hex", Description: "Type", Strings: etherTypes},
			}},
			{Name: "ip", Description: "Internet Protocol Version 4", Fields: []FieldSpec{
				{Name: "ip.version", Type: "uint8", Description: "Version"},
				{Name: "ip.hdr_len", Type: "uint8", Description: "Header Length"},
				{Name: "ip.dsfield", Type: "uint8", Base: "hex", Description: "Differentiated Services Field"},
				{Name: "ip.len", Type: "uint16", Description: "Total Length"},
				{Name: "ip.id", Type: "uint16", Base: "hex_dec", Description: "Identification"},
				{Name: "ip.flags", Type: "uint8", Base: "hex", Description: "Flags"},
				{Name: "ip.flags.df", Type: "boolean", Description: "Don't fragment"},
				{Name: "ip.flags.mf", Type: "boolean", Description: "More fragments"},
				{Name: "ip.frag_offset", Type: "uint16", Description: "Fragment Offset"},
				{Name: "ip.ttl", Type: "uint8", Description: "Time to Live"},
				{Name: "ip.proto", Type: "uint8", Description: "Protocol", Strings: ipProtocols},
				{Name: "ip.checksum", Type: "uint16", Base: "hex", Description: "Header Checksum"},
				{Name: "ip.src", Type: "ipv4", Description: "Source Address"},
				{Name: "ip.dst", Type: "ipv4", Description: "Destination Address"},
				{Name: "ip.addr", Type: "ipv4", Description: "Source or Destination Address"},
			}},
			{Name: "ipv6", Description: "Internet Protocol Version 6", Fields: []FieldSpec{
				{Name: "ipv6.version", Type: "uint8", Description: "Version"},
				{Name: "ipv6.tclass", Type: "uint8", Base: "hex", Description: "Traffic Class"},
				{Name: "ipv6.flow", Type: "uint32", Base: "hex", Description: "Flow Label"},
				{Name: "ipv6.plen", Type: "uint16", Description: "Payload Length"},
				{Name: "ipv6.nxt", Type: "uint8", Description: "Next Header", Strings: ipProtocols},
				{Name: "ipv6.hlim", Type: "uint8", Description: "Hop Limit"},
				{Name: "ipv6.src", Type: "ipv6", Description: "Source Address"},
				{Name: "ipv6.dst", Type: "ipv6", Description: "Destination Address"},
				{Name: "ipv6.addr", Type: "ipv6", Description: "Source or Destination Address"},
			}},
			{Name: "tcp", Description: "Transmission Control Protocol", Fields: []FieldSpec{
				{Name: "tcp.srcport", Type: "uint16", Description: "Source Port"},
				{Name: "tcp.dstport", Type: "uint16", Description: "Destination Port"},
				{Name: "tcp.port", Type: "uint16", Description: "Source or Destination Port"},
				{Name: "tcp.seq", Type: "uint32", Description: "Sequence Number"},
				{Name: "tcp.ack", Type: "uint32", Description: "Acknowledgment Number"},
				{Name: "tcp.hdr_len", Type: "uint8", Description: "Header Length"},
				{Name: "tcp.flags", Type: "uint16", Base: "hex", Description: "Flags"},
				{Name: "tcp.flags.fin", Type: "boolean", Description: "Fin"},
				{Name: "tcp.flags.syn", Type: "boolean", Description: "Syn"},
				{Name: "tcp.flags.reset", Type: "boolean", Description: "Reset"},
				{Name: "tcp.flags.push", Type: "boolean", Description: "Push"},
				{Name: "tcp.flags.ack", Type: "boolean", Description: "Acknowledgment"},
				{Name: "tcp.flags.urg", Type: "boolean", Description: "Urgent"},
				{Name: "tcp.window_size_value", Type: "uint16", Description: "Window"},
				{Name: "tcp.checksum", Type: "uint16", Base: "hex", Description: "Checksum"},
				{Name: "tcp.urgent_pointer", Type: "uint16", Description: "Urgent Pointer"},
				{Name: "tcp.len", Type: "uint32", Description: "TCP Segment Len"},
				{Name: "tcp.payload", Type: "bytes", Description: "TCP payload"},
			}},
			{Name: "udp", Description: "User Datagram Protocol", Fields: []FieldSpec{
				{Name: "udp.srcport", Type: "uint16", Description: "Source Port"},
				{Name: "udp.dstport", Type: "uint16", Description: "Destination Port"},
				{Name: "udp.port", Type: "uint16", Description: "Source or Destination Port"},
				{Name: "udp.length", Type: "uint16", Description: "Length"},
				{Name: "udp.checksum", Type: "uint16", Base: "hex", Description: "Checksum"},
				{Name: "udp.payload", Type: "bytes", Description: "Payload"},
			}},
			{Name: "dns", Description: "Domain Name System", Fields: []FieldSpec{
				{Name: "dns.id", Type: "uint16", Base: "hex", Description: "Transaction ID"},
				{Name: "dns.flags.response", Type: "boolean", Description: "Response"},
				{Name: "dns.flags.opcode", Type: "uint8", Description: "Opcode"},
				{Name: "dns.flags.rcode", Type: "uint8", Description: "Reply code"},
				{Name: "dns.count.queries", Type: "uint16", Description: "Questions"},
				{Name: "dns.count.answers", Type: "uint16", Description: "Answer RRs"},
				{Name: "dns.qry.name", Type: "string", Description: "Name"},
				{Name: "dns.qry.type", Type: "uint16", Description: "Type", Strings: dnsTypes},
				{Name: "dns.resp.name", Type: "string", Description: "Name"},
				{Name: "dns.resp.ttl", Type: "uint32", Description: "Time to live"},
				{Name: "dns.a", Type: "ipv4", Description: "Address"},
				{Name: "dns.aaaa", Type: "ipv6", Description: "AAAA Address"},
			}},
			{Name: "data", Description: "Data", Fields: []FieldSpec{
				{Name: "data.data", Type: "bytes", Description: "Data"},
				{Name: "data.len", Type: "uint32", Description: "Length"},
			}},
			{Name: "cliprdr", Description: "RDP clipboard redirection channel Protocol", Fields: []FieldSpec{
				{Name: "cliprdr.ordertype", Type: "uint16", Base: "hex", Description: "OrderType", Strings: cliprdrOrders},
				{Name: "cliprdr.msgflags", Type: "uint16", Base: "hex", Description: "Flags", Strings: cliprdrMsgFlags},
				{Name: "cliprdr.datalen", Type: "uint32", Base: "dec", Description: "dataLen"},
				{Name: "cliprdr.requestedformatid", Type: "uint32", Base: "hex", Description: "requestedFormatId", Strings: cliprdrFormats},
				{Name: "cliprdr.clipdataid", Type: "uint32", Base: "hex", Description: "clipDataId"},
				{Name: "cliprdr.streamid", Type: "uint32", Base: "hex", Description: "streamId"},
				{Name: "cliprdr.lindex", Type: "uint32", Base: "dec", Description: "lindex"},
				{Name: "cliprdr.dwflags", Type: "uint32", Base: "hex", Description: "dwFlags"},
				{Name: "cliprdr.npositionlow", Type: "uint32", Base: "dec", Description: "nPositionLow"},
				{Name: "cliprdr.npositionhigh", Type: "uint32", Base: "dec", Description: "nPositionHigh"},
				{Name: "cliprdr.cbrequested", Type: "uint32", Base: "dec", Description: "cbRequested"},
			}},
			{Name: "etw", Description: "Event Tracing for Windows", Fields: []FieldSpec{
				{Name: "etw.provider_id", Type: "guid", Description: "Provider ID"},
				{Name: "etw.event_id", Type: "uint16", Description: "Event ID"},
				{Name: "etw.timestamp", Type: "absolute_time", Description: "Time Stamp"},
				{Name: "etw.process_id", Type: "uint32", Description: "Process ID"},
				{Name: "etw.thread_id", Type: "uint32", Description: "Thread ID"},
				{Name: "etw.level", Type: "uint8", Description: "Level"},
				{Name: "etw.keyword", Type: "uint64", Base: "hex", Description: "Keyword"},
				{Name: "etw.message", Type: "string", Description: "Message"},
			}},
		},
		Deprecated: map[string]string{
			"rdp_cliprdr":         "cliprdr",
			"tcp.window_size_raw": "tcp.window_size_value",
			"ip.src_host":         "ip.src",
			"ip.dst_host":         "ip.dst",
		},
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default the shared, frozen registry built from DefaultCatalog
func Default() *Registry {
	defaultOnce.Do(func() {
		r := New()
		if err := DefaultCatalog().Apply(r); err != nil {
			panic(err)
		}
		r.Freeze()
		defaultRegistry = r
	})
	return defaultRegistry
}
