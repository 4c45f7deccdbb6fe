package filter

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// dnsServer answers A and AAAA questions from a fixed table, so host name
// literals can be resolved without touching the network
type dnsServer struct {
	records map[string]map[string]string
	conn    net.PacketConn
}

func newDNSServer(records map[string]map[string]string) *dnsServer {
	return &dnsServer{records: records}
}

// start listen on a free local port and serve until the process exits,
// returning the address to dial
func (d *dnsServer) start() string {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	d.conn = conn
	go d.serve()
	return conn.LocalAddr().String()
}

func (d *dnsServer) serve() {
	buf := make([]byte, 1500)
	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		packet := gopacket.NewPacket(buf[:n], layers.LayerTypeDNS, gopacket.Default)
		request, ok := packet.Layer(layers.LayerTypeDNS).(*layers.DNS)
		if !ok || len(request.Questions) < 1 {
			continue
		}
		if reply := d.answer(request); reply != nil {
			_, _ = d.conn.WriteTo(reply, addr)
		}
	}
}

func (d *dnsServer) answer(r *layers.DNS) []byte {
	q := r.Questions[0]
	reply := &layers.DNS{
		ID:           r.ID,
		QR:           true,
		OpCode:       layers.DNSOpCodeQuery,
		AA:           true,
		RD:           r.RD,
		RA:           true,
		ResponseCode: layers.DNSResponseCodeNoErr,
		Questions:    []layers.DNSQuestion{q},
	}
	recs, ok := d.records[string(q.Name)]
	if !ok {
		reply.ResponseCode = layers.DNSResponseCodeNXDomain
	} else if ip := net.ParseIP(recs[q.Type.String()]); ip != nil {
		reply.Answers = append(reply.Answers, layers.DNSResourceRecord{
			Name:  q.Name,
			Type:  q.Type,
			Class: layers.DNSClassIN,
			TTL:   60,
			IP:    ip,
		})
	}
	reply.QDCount = uint16(len(reply.Questions))
	reply.ANCount = uint16(len(reply.Answers))

	buf := gopacket.NewSerializeBuffer()
	if err := reply.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil
	}
	return buf.Bytes()
}
