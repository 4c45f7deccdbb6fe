/*
Package dfilter applies Wireshark style display filters to captured packets.

The work is split across subpackages:

	ftypes    field value types, literal parsing and comparison
	registry  the catalog of protocols and fields a filter can name
	filter    compiles filter text to bytecode and applies it to one packet
	dissect   decodes frames with gopacket into the fields a filter reads

This package ties them together: a Scanner reads frames from any
gopacket.PacketDataSource, such as a pcapgo.Reader over a capture file, and
reports in capture order whether each one matched.

	f, err := filter.Compile(nil, "tcp.port == 443 and ip.addr == 10.0.0.0/8")
	...
	s := dfilter.NewScanner(f, nil, dfilter.WithWorkers(4))
	for p := range s.Scan(ctx, reader, reader.LinkType()) {
		if p.Matched {
			...
		}
	}
*/
package dfilter
