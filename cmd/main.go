package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	dfilter "github.com/packetcap/go-dfilter"
	"github.com/packetcap/go-dfilter/dissect"
	"github.com/packetcap/go-dfilter/filter"
	"github.com/packetcap/go-dfilter/registry"
)

// pcapngMagic the first four bytes of a pcapng section header block
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

var (
	debug     bool
	trace     bool
	fields    string
	resolve   bool
	readFile  string
	prefilter string
	workers   int
	verbose   bool
	cacheSize int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dfilter",
	Short: "Compile and apply display filters to packet captures",
	Long:  `Compile display filters such as "tcp.port == 443 and ip.src == 10.0.0.0/8" and apply them to pcap and pcapng files`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case trace:
			log.SetLevel(log.TraceLevel)
			log.SetReportCaller(true)
		case debug:
			log.SetLevel(log.DebugLevel)
		}
	},
	SilenceUsage: true,
}

var readCmd = &cobra.Command{
	Use:   "read <filter>",
	Short: "Print the packets of a capture file that match a filter",
	Long:  `Print the packets of a capture file that match a filter. With no filter every packet is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		text := strings.Join(args, " ")
		f, err := compile(reg, text)
		if err != nil {
			return err
		}

		opts := []dfilter.Option{dfilter.WithWorkers(workers)}
		if verbose {
			opts = append(opts, dfilter.WithReferences())
		}
		if prefilter != "" {
			p, err := dissect.LoadPrefilter(prefilter)
			if err != nil {
				return err
			}
			log.Debugf("capture filter:\n%s", p)
			opts = append(opts, dfilter.WithPrefilter(p))
		}

		in, err := os.Open(readFile)
		if err != nil {
			return errors.WithStack(err)
		}
		defer in.Close()
		src, linkType, err := openCapture(in)
		if err != nil {
			return errors.Wrapf(err, "opening %s", readFile)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		scanner := dfilter.NewScanner(f, dissect.New(reg), opts...)
		var count, matched int
		for p := range scanner.Scan(ctx, src, linkType) {
			count++
			if p.Error != nil {
				log.WithFields(log.Fields{"packet": p.Number, "error": p.Error}).Warn("bad packet")
			}
			if !p.Matched {
				continue
			}
			matched++
			printPacket(cmd.OutOrStdout(), reg, p)
		}
		log.WithFields(log.Fields{"packets": count, "matched": matched}).Info("done")
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <filter>",
	Short: "Print the program a filter compiles to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		f, err := compile(reg, strings.Join(args, " "))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, f.Dump())
		fmt.Fprintf(out, "Fingerprint: %016x, %d instructions\n", f.Fingerprint(), f.Size())
		for _, w := range f.Warnings() {
			fmt.Fprintf(out, "Warning: %s\n", w)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the filters read from stdin, one per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		cache := filter.NewCache(reg, cacheSize, compileOptions()...)
		out := cmd.OutOrStdout()
		var bad int
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			text := sc.Text()
			f, err := cache.Compile(text)
			if err != nil {
				bad++
				fmt.Fprintf(out, "%s\n", filter.Caret(text, err))
				continue
			}
			fmt.Fprintf(out, "ok %s\n", text)
			for _, w := range f.Warnings() {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			for _, d := range f.DeprecatedTokens() {
				fmt.Fprintf(out, "  %q is deprecated, use %q\n", d.Name, d.Replacement)
			}
		}
		if err := sc.Err(); err != nil {
			return errors.WithStack(err)
		}
		if bad > 0 {
			return errors.Errorf("%d invalid filters", bad)
		}
		return nil
	},
}

var fieldsCmd = &cobra.Command{
	Use:   "fields [prefix]",
	Short: "List the registered fields",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		var prefix string
		if len(args) == 1 {
			prefix = args[0]
		}
		out := cmd.OutOrStdout()
		for _, d := range reg.Fields(prefix) {
			fmt.Fprintf(out, "%-32s %-14s %s\n", d.Name, d.Type, d.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print lots of debugging messages")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "print even more debugging messages, one per packet")
	rootCmd.PersistentFlags().StringVar(&fields, "fields", "", "YAML catalog of extra protocols and fields to register")
	rootCmd.PersistentFlags().BoolVar(&resolve, "resolve", false, "allow host names where addresses are expected")

	readCmd.Flags().StringVarP(&readFile, "read", "r", "", "pcap or pcapng file to read")
	readCmd.Flags().StringVar(&prefilter, "prefilter", "", `capture filter in "tcpdump -ddd" form, applied before dissection`)
	readCmd.Flags().IntVarP(&workers, "workers", "w", 1, "number of goroutines applying the filter")
	readCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the fields the filter read for every match")
	_ = readCmd.MarkFlagRequired("read")

	checkCmd.Flags().IntVar(&cacheSize, "cache", 0, "number of compiled filters to keep; default 0 uses the built-in size")

	rootCmd.AddCommand(readCmd, dumpCmd, checkCmd, fieldsCmd)
}

// loadRegistry the default fields, plus the --fields catalog when given
func loadRegistry() (*registry.Registry, error) {
	if fields == "" {
		return registry.Default(), nil
	}
	reg := registry.New()
	if err := registry.DefaultCatalog().Apply(reg); err != nil {
		return nil, err
	}
	if err := registry.LoadFile(reg, fields); err != nil {
		return nil, err
	}
	reg.Freeze()
	log.WithFields(log.Fields{"file": fields, "fields": reg.Len()}).Debug("loaded field catalog")
	return reg, nil
}

func compileOptions() []filter.Option {
	if !resolve {
		return nil
	}
	return []filter.Option{filter.WithResolver(net.DefaultResolver)}
}

func compile(reg *registry.Registry, text string) (*filter.Filter, error) {
	f, err := filter.Compile(reg, text, compileOptions()...)
	if err != nil {
		return nil, errors.New(filter.Caret(text, err))
	}
	for _, w := range f.Warnings() {
		log.Warn(w)
	}
	for _, d := range f.DeprecatedTokens() {
		log.Warnf("%q is deprecated, use %q", d.Name, d.Replacement)
	}
	return f, nil
}

// openCapture a packet source over a pcap or pcapng stream
func openCapture(r io.Reader) (gopacket.PacketDataSource, layers.LinkType, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading file header")
	}
	if string(magic) == string(pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, errors.WithStack(err)
		}
		return ng, ng.LinkType(), nil
	}
	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return pr, pr.LinkType(), nil
}

func printPacket(w io.Writer, reg *registry.Registry, p dfilter.Packet) {
	fmt.Fprintf(w, "%d: %s, %d bytes\n", p.Number, p.Info.Timestamp.Format("2006-01-02 15:04:05.000000"), p.Info.Length)
	for _, ref := range p.References {
		d, ok := reg.ByID(ref.Field)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%d:   %s = %s at %d+%d\n", p.Number, d.Name, d.Format(ref.Value), ref.Offset, ref.Length)
	}
}
