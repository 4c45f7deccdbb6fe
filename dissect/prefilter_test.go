package dissect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

// ipTCP is "tcpdump -ddd ip and tcp" for ethernet frames
const ipTCP = `6
40 0 0 12
21 0 3 2048
48 0 0 23
21 0 1 6
6 0 0 262144
6 0 0 0
`

func TestParsePrefilter(t *testing.T) {
	p, err := ParsePrefilter(strings.NewReader(ipTCP))
	require.NoError(t, err)
	assert.True(t, p.Match(tcpFrame(t)))
	assert.False(t, p.Match(dnsFrame(t)))
	// too short to hold an ethertype
	assert.False(t, p.Match([]byte{0x01, 0x02}))

	dump := p.String()
	assert.Equal(t, 6, strings.Count(dump, "\n"))
	assert.True(t, strings.HasPrefix(dump, "0: "))
}

func TestParsePrefilterErrors(t *testing.T) {
	tests := []string{
		"",
		"zero\n",
		"0\n",
		"2\n6 0 0 0\n",
		"1\n6 0 0\n",
		"1\n6 0 0 x\n",
		"1\n6 0 300 0\n",
		// last instruction is not a return
		"1\n40 0 0 12\n",
	}
	for _, text := range tests {
		_, err := ParsePrefilter(strings.NewReader(text))
		assert.Error(t, err, "%q", text)
	}
}

func TestNewPrefilter(t *testing.T) {
	p, err := NewPrefilter([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.EthernetTypeIPv4), SkipFalse: 1},
		bpf.RetConstant{Val: 0xffff},
		bpf.RetConstant{Val: 0},
	})
	require.NoError(t, err)
	assert.True(t, p.Match(tcpFrame(t)))
	assert.True(t, p.Match(dnsFrame(t)))

	_, err = NewPrefilter(nil)
	assert.Error(t, err)
}

func TestLoadPrefilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcp.ddd")
	require.NoError(t, os.WriteFile(path, []byte(ipTCP), 0o600))
	p, err := LoadPrefilter(path)
	require.NoError(t, err)
	assert.True(t, p.Match(tcpFrame(t)))

	_, err = LoadPrefilter(filepath.Join(t.TempDir(), "missing.ddd"))
	assert.Error(t, err)
}
