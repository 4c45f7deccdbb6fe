package filter

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/packetcap/go-dfilter/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
protocols:
  - name: test
    description: Fields of every type, for tests
    fields:
      - {name: test.int8, type: int8}
      - {name: test.int32, type: int32}
      - {name: test.uint8, type: uint8}
      - {name: test.double, type: double}
      - {name: test.text, type: string}
      - {name: test.raw, type: bytes}
      - {name: test.guid, type: guid}
      - {name: test.ip6, type: ipv6}
      - {name: test.delta, type: relative_time}
deprecated:
  old.name: test.int32
`

var (
	testRegistry *registry.Registry
	testResolver *net.Resolver
)

func setup() {
	r := registry.New()
	if err := registry.DefaultCatalog().Apply(r); err != nil {
		panic(err)
	}
	if err := registry.LoadYAML(r, strings.NewReader(testCatalog)); err != nil {
		panic(err)
	}
	r.Freeze()
	testRegistry = r

	dns := newDNSServer(dnsRecords)
	addr := dns.start()
	testResolver = &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, "udp", addr)
		},
	}
}

func TestMain(m *testing.M) {
	setup()
	code := m.Run()
	os.Exit(code)
}

// packet a binding built from literal text per field, each occurrence placed
// at a made up offset so references can be told apart
func packet(t testing.TB, fields map[string][]string) MapBinding {
	t.Helper()
	b := NewMapBinding()
	offset := 0
	for name, texts := range fields {
		d, ok := testRegistry.Resolve(name)
		require.True(t, ok, "field %s", name)
		for _, text := range texts {
			v, err := ftypes.Parse(d.Type, text)
			require.NoError(t, err, "field %s value %q", name, text)
			b.Add(d.ID, v, offset, 1)
			offset++
		}
	}
	return b
}

func compile(t testing.TB, text string, opts ...Option) *Filter {
	t.Helper()
	f, err := Compile(testRegistry, text, opts...)
	require.NoError(t, err, "compiling %q", text)
	return f
}

func mustAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func id(name string) registry.FieldID {
	return testRegistry.MustResolve(name)
}

func TestCompileNull(t *testing.T) {
	for _, text := range []string{"", " ", "\t\n  "} {
		f := compile(t, text)
		assert.True(t, f.IsNull())
		assert.True(t, f.Apply(nil))
		assert.True(t, f.Apply(packet(t, map[string][]string{"tcp.port": {"80"}})))
		assert.Empty(t, f.InterestingFields())
		assert.Empty(t, f.LoadFieldReferences(nil))
		assert.Equal(t, 0, f.Size())
		assert.Contains(t, f.Dump(), "Null filter")
	}
	var nilFilter *Filter
	assert.True(t, nilFilter.Apply(nil))
	assert.True(t, nilFilter.IsNull())
}

func TestCompileDeterministic(t *testing.T) {
	for _, tt := range applyCases {
		a := compile(t, tt.filter)
		b := compile(t, tt.filter)
		assert.Equal(t, a.prog.insns, b.prog.insns, tt.filter)
		assert.Equal(t, a.prog.consts, b.prog.consts, tt.filter)
		assert.Equal(t, a.Dump(), b.Dump(), tt.filter)
		assert.Equal(t, a.Fingerprint(), b.Fingerprint(), tt.filter)
		assert.True(t, a.Equal(b), tt.filter)
	}
}

func TestFingerprint(t *testing.T) {
	a := compile(t, "tcp.port==80")
	b := compile(t, "tcp.port  ==  80")
	c := compile(t, "tcp.port == 81")
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "tcp.port==80", a.Text())
}

func TestDump(t *testing.T) {
	f := compile(t, "ip.ttl == 64 and tcp.port in {80 443}")
	want := `Filter: ip.ttl == 64 and tcp.port in {80 443}
Instructions:
  0000 LOAD_FIELD     ip.ttl
  0001 PUSH_CONST     #0 <uint8> 64
  0002 CMP            == (unsigned)
  0003 AND_JUMP_FALSE 0006
  0004 LOAD_FIELD     tcp.port
  0005 IN_SET         $0 (unsigned)
  0006 RETURN
Constants:
  #0 <uint8> 64
Sets:
  $0 {80 443}
Interesting fields:
`
	assert.True(t, strings.HasPrefix(f.Dump(), want), f.Dump())
	assert.Contains(t, f.Dump(), " ip.ttl\n")
	assert.Contains(t, f.Dump(), " tcp.port\n")
}

func TestConstantsPooled(t *testing.T) {
	f := compile(t, "ip.ttl == 64 or ip.ttl == 64 or ip.hdr_len == 64")
	// ip.hdr_len is also uint8, so all three share one constant
	assert.Len(t, f.prog.consts, 1)
}

func TestInterestingFields(t *testing.T) {
	f := compile(t, `ip.ttl == 1 and len(tcp.payload) > 2 or upper(dns.qry.name) == "X" or tcp`)
	want := []registry.FieldID{id("ip.ttl"), id("tcp.payload"), id("dns.qry.name"), id("tcp")}
	assert.ElementsMatch(t, want, f.InterestingFields())
	got := f.InterestingFields()
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
	assert.True(t, f.HasInterestingField(id("tcp.payload")))
	assert.False(t, f.HasInterestingField(id("udp")))
}

func TestShortCircuit(t *testing.T) {
	b := packet(t, map[string][]string{
		"ip.ttl":   {"64"},
		"tcp.port": {"80", "443"},
	})
	tests := []struct {
		filter string
		match  bool
		read   []registry.FieldID
	}{
		{"ip.ttl == 1 and tcp.port == 80", false, []registry.FieldID{id("ip.ttl")}},
		{"ip.ttl == 64 or tcp.port == 80", true, []registry.FieldID{id("ip.ttl")}},
		{"ip.ttl == 64 and tcp.port == 80", true, []registry.FieldID{id("ip.ttl"), id("tcp.port"), id("tcp.port")}},
		{"ip.ttl == 1 or tcp.port == 22", false, []registry.FieldID{id("ip.ttl"), id("tcp.port"), id("tcp.port")}},
		{"(ip.ttl == 1 and tcp.port == 80) or ip.ttl == 64", true, []registry.FieldID{id("ip.ttl")}},
	}
	for i, tt := range tests {
		f := compile(t, tt.filter)
		assert.Equal(t, tt.match, f.Apply(b), "%d: %s", i, tt.filter)
		var read []registry.FieldID
		for _, r := range f.LoadFieldReferences(b) {
			read = append(read, r.Field)
		}
		assert.Equal(t, tt.read, read, "%d: %s", i, tt.filter)
		// priming is static, both sides count whatever the packet holds
		assert.Len(t, f.InterestingFields(), 2, "%d: %s", i, tt.filter)
	}
}

func TestLoadFieldReferences(t *testing.T) {
	b := NewMapBinding()
	b.Add(id("ip.addr"), ftypes.NewIP(mustAddr("192.168.1.1")), 26, 4)
	b.Add(id("ip.addr"), ftypes.NewIP(mustAddr("10.0.0.1")), 30, 4)
	b.Add(id("tcp.port"), ftypes.NewUint(ftypes.TypeUint16, 80), 34, 2)

	f := compile(t, "ip.addr == 8.8.8.8 or ip.addr == 10.0.0.1 or tcp.port == 80")
	refs := f.LoadFieldReferences(b)
	require.Len(t, refs, 2)
	assert.Equal(t, id("ip.addr"), refs[0].Field)
	assert.Equal(t, 26, refs[0].Offset)
	assert.Equal(t, 30, refs[1].Offset)
	assert.Equal(t, 4, refs[1].Length)

	f = compile(t, "ip.addr#1 == 10.0.0.1")
	refs = f.LoadFieldReferences(b)
	require.Len(t, refs, 1)
	assert.Equal(t, 30, refs[0].Offset)

	assert.Empty(t, compile(t, "udp").LoadFieldReferences(b))
}

func TestDeprecatedTokens(t *testing.T) {
	f := compile(t, "old.name == 1")
	require.Len(t, f.DeprecatedTokens(), 1)
	assert.Equal(t, DeprecatedToken{Name: "old.name", Replacement: "test.int32", Offset: 0}, f.DeprecatedTokens()[0])
	assert.Equal(t, []registry.FieldID{id("test.int32")}, f.InterestingFields())

	f = compile(t, "tcp and rdp_cliprdr.ordertype == 1")
	require.Len(t, f.DeprecatedTokens(), 1)
	assert.Equal(t, DeprecatedToken{Name: "rdp_cliprdr.ordertype", Replacement: "cliprdr.ordertype", Offset: 8}, f.DeprecatedTokens()[0])
	assert.Contains(t, f.Dump(), "Deprecated: rdp_cliprdr.ordertype at offset 8, use cliprdr.ordertype")

	assert.Empty(t, compile(t, "tcp.port == 80").DeprecatedTokens())
}

func TestSignednessWarning(t *testing.T) {
	f := compile(t, "test.int8 > test.uint8")
	require.Len(t, f.Warnings(), 1)
	assert.Contains(t, f.Warnings()[0], "signed and unsigned")

	assert.Empty(t, compile(t, "test.int8 > test.int32").Warnings())
	assert.Empty(t, compile(t, "test.uint8 > ip.ttl").Warnings())

	// unsigned wins: -5 reads as a huge unsigned number
	b := packet(t, map[string][]string{"test.int8": {"-5"}, "test.uint8": {"250"}})
	assert.True(t, f.Apply(b))
	assert.False(t, compile(t, "test.int8 > test.int32").Apply(packet(t, map[string][]string{"test.int8": {"-5"}, "test.int32": {"7"}})))
}

func TestLiteralFallsBackFromField(t *testing.T) {
	// tcp is a protocol but ip.proto compares with the value named TCP
	f := compile(t, "ip.proto == tcp")
	assert.Equal(t, []registry.FieldID{id("ip.proto")}, f.InterestingFields())
	assert.True(t, f.Apply(packet(t, map[string][]string{"ip.proto": {"6"}})))
}

func TestCompileErrors(t *testing.T) {
	for i, tt := range errorCases {
		_, err := Compile(testRegistry, tt.filter)
		require.Error(t, err, "%d: %s", i, tt.filter)
		if !assert.IsType(t, tt.err, err, "%d: %s: %v", i, tt.filter, err) {
			continue
		}
		var sp Spanned
		require.True(t, errors.As(err, &sp), "%d: %s", i, tt.filter)
		start, _ := sp.Span()
		assert.Equal(t, tt.offset, start, "%d: %s: %v", i, tt.filter, err)
	}
}

func TestUnknownFieldName(t *testing.T) {
	_, err := Compile(testRegistry, "nosuchfield == 1")
	var unknown *UnknownFieldError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nosuchfield", unknown.Name)
	assert.Equal(t, 0, unknown.Offset)
	assert.False(t, unknown.Function)
}

func TestCaret(t *testing.T) {
	text := `ip.addr == "not an address"`
	_, err := Compile(testRegistry, text)
	require.Error(t, err)
	var invalid *InvalidLiteralError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 11, invalid.Offset)
	lines := strings.Split(Caret(text, err), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, text, lines[0])
	assert.Equal(t, strings.Repeat(" ", 11)+"^"+strings.Repeat("~", 15), lines[1])
	assert.Equal(t, err.Error(), lines[2])

	plain := errors.New("plain")
	assert.Equal(t, "plain", Caret(text, plain))
}

func TestResolver(t *testing.T) {
	f := compile(t, "ip.addr == www.google.com", WithResolver(testResolver))
	assert.True(t, f.Apply(packet(t, map[string][]string{"ip.addr": {"216.58.207.36"}})))
	assert.False(t, f.Apply(packet(t, map[string][]string{"ip.addr": {"8.8.8.8"}})))

	f = compile(t, `ipv6.dst == "www.google.com"`, WithResolver(testResolver))
	assert.True(t, f.Apply(packet(t, map[string][]string{"ipv6.dst": {"2a00:1450:4001:824::2004"}})))

	_, err := Compile(testRegistry, "ip.addr == nosuch.example", WithResolver(testResolver))
	assert.IsType(t, &InvalidLiteralError{}, err)

	// without a resolver host names are not addresses
	_, err = Compile(testRegistry, "ip.addr == www.google.com")
	assert.IsType(t, &InvalidLiteralError{}, err)
}

func TestApplyConcurrent(t *testing.T) {
	f := compile(t, "tcp.port in {80 443} and ip.addr == 10.0.0.0/8")
	hit := packet(t, map[string][]string{"tcp.port": {"443"}, "ip.addr": {"10.1.2.3"}})
	miss := packet(t, map[string][]string{"tcp.port": {"22"}, "ip.addr": {"10.1.2.3"}})
	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if !f.Apply(hit) || f.Apply(miss) {
					errs <- "wrong result"
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}

func TestMustCompile(t *testing.T) {
	assert.NotPanics(t, func() { MustCompile(testRegistry, "tcp") })
	assert.Panics(t, func() { MustCompile(testRegistry, "tcp ==") })
}

func TestDefaultRegistry(t *testing.T) {
	f, err := Compile(nil, "tcp.port == 80")
	require.NoError(t, err)
	assert.Equal(t, []registry.FieldID{registry.Default().MustResolve("tcp.port")}, f.InterestingFields())
}
