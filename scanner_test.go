package dfilter

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/packetcap/go-dfilter/dissect"
	"github.com/packetcap/go-dfilter/filter"
	"github.com/packetcap/go-dfilter/registry"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

const (
	tstMsg = "The quick brown fox jumps over the lazy dog!"
)

func enableLogs() {

	log.SetReportCaller(true)
	log.SetLevel(log.TraceLevel)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
		PadLevelText:     true,
		QuoteEmptyFields: true,
		ForceColors:      true, // If you run an IDE in no pty mode then you probably want to also force color mode
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1] + "()"
			_, filename := path.Split(f.File)
			return funcName, filename + ":" + strconv.Itoa(f.Line)
		},
	})
}

// frameTo an ethernet/ip frame carrying tstMsg to the given port, over tcp or udp
func frameTo(t testing.TB, port uint16, useTCP bool) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, SrcIP: net.IP{127, 0, 0, 1}, DstIP: net.IP{127, 0, 0, 1}}
	var transport gopacket.SerializableLayer
	if useTCP {
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{SrcPort: 40000, DstPort: layers.TCPPort(port), PSH: true, ACK: true}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		transport = tcp
	} else {
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(port)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		transport = udp
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(tstMsg)))
	return buf.Bytes()
}

// capture a pcap file image holding frames, one millisecond apart
func capture(t testing.TB, frames [][]byte) *pcapgo.Reader {
	var file bytes.Buffer
	w := pcapgo.NewWriter(&file)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, b := range frames {
		ci := gopacket.CaptureInfo{Timestamp: start.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(b), Length: len(b)}
		require.NoError(t, w.WritePacket(ci, b))
	}
	r, err := pcapgo.NewReader(&file)
	require.NoError(t, err)
	return r
}

func collect(c chan Packet) []Packet {
	var out []Packet
	for p := range c {
		out = append(out, p)
	}
	return out
}

func TestScanOrdered(t *testing.T) {
	var frames [][]byte
	for i := 0; i < 200; i++ {
		port := uint16(80)
		if i%5 == 0 {
			port = 443
		}
		frames = append(frames, frameTo(t, port, true))
	}
	r := capture(t, frames)
	f := filter.MustCompile(nil, "tcp.dstport == 443 and ip.addr == 127.0.0.1")
	s := NewScanner(f, nil, WithWorkers(4))

	packets := collect(s.Scan(context.Background(), r, r.LinkType()))
	require.Len(t, packets, 200)
	matched := 0
	for i, p := range packets {
		assert.Equal(t, i+1, p.Number)
		assert.NoError(t, p.Error)
		assert.Equal(t, i%5 == 0, p.Matched, "packet %d", p.Number)
		if p.Matched {
			matched++
		}
	}
	assert.Equal(t, 40, matched)
}

func TestScanPrefilter(t *testing.T) {
	enableLogs()
	defer log.SetLevel(log.InfoLevel)

	frames := [][]byte{frameTo(t, 53, false), frameTo(t, 80, true), frameTo(t, 53, false)}
	// "ip and udp"
	p, err := dissect.NewPrefilter([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.EthernetTypeIPv4), SkipFalse: 3},
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.IPProtocolUDP), SkipFalse: 1},
		bpf.RetConstant{Val: 0x40000},
		bpf.RetConstant{Val: 0},
	})
	require.NoError(t, err)

	r := capture(t, frames)
	s := NewScanner(filter.MustCompile(nil, ""), nil, WithPrefilter(p))
	packets := collect(s.Scan(context.Background(), r, r.LinkType()))
	require.Len(t, packets, 3)
	assert.True(t, packets[0].Matched)
	assert.False(t, packets[1].Matched)
	assert.True(t, packets[1].Prefiltered)
	assert.True(t, packets[2].Matched)
}

func TestScanReferences(t *testing.T) {
	r := capture(t, [][]byte{frameTo(t, 443, true), frameTo(t, 80, true)})
	f := filter.MustCompile(nil, "tcp.dstport == 443")
	packets := collect(NewScanner(f, nil, WithReferences()).Scan(context.Background(), r, r.LinkType()))
	require.Len(t, packets, 2)

	require.Len(t, packets[0].References, 1)
	ref := packets[0].References[0]
	assert.Equal(t, registry.Default().MustResolve("tcp.dstport"), ref.Field)
	assert.Equal(t, uint64(443), ref.Value.Uint())
	assert.Equal(t, 36, ref.Offset)
	assert.Empty(t, packets[1].References)
}

func TestScanTimeRelative(t *testing.T) {
	r := capture(t, [][]byte{frameTo(t, 1, true), frameTo(t, 2, true), frameTo(t, 3, true)})
	f := filter.MustCompile(nil, "frame.time_relative >= 0.002")
	packets := collect(NewScanner(f, nil).Scan(context.Background(), r, r.LinkType()))
	require.Len(t, packets, 3)
	assert.False(t, packets[0].Matched)
	assert.False(t, packets[1].Matched)
	assert.True(t, packets[2].Matched)
}

// failingSource hands out good frames, then an error
type failingSource struct {
	frames [][]byte
}

func (f *failingSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if len(f.frames) == 0 {
		return nil, gopacket.CaptureInfo{}, errors.New("device went away")
	}
	b := f.frames[0]
	f.frames = f.frames[1:]
	return b, gopacket.CaptureInfo{CaptureLength: len(b), Length: len(b)}, nil
}

func TestScanReadError(t *testing.T) {
	src := &failingSource{frames: [][]byte{frameTo(t, 80, true), frameTo(t, 80, true)}}
	packets := collect(NewScanner(filter.MustCompile(nil, "tcp"), nil).Scan(context.Background(), src, layers.LinkTypeEthernet))
	require.Len(t, packets, 3)
	assert.True(t, packets[0].Matched)
	assert.True(t, packets[1].Matched)
	assert.Error(t, packets[2].Error)
	assert.Contains(t, packets[2].Error.Error(), "device went away")
	assert.False(t, packets[2].Matched)
}

// endlessSource repeats one frame forever
type endlessSource struct {
	frame []byte
}

func (e endlessSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return e.frame, gopacket.CaptureInfo{CaptureLength: len(e.frame), Length: len(e.frame)}, nil
}

func TestScanCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewScanner(nil, nil, WithWorkers(2)).Scan(ctx, endlessSource{frame: frameTo(t, 80, true)}, layers.LinkTypeEthernet)
	for i := 0; i < 5; i++ {
		p := <-c
		assert.True(t, p.Matched)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		for range c {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop after cancel")
	}
}
