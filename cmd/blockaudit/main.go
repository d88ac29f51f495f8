package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logdht/blockaudit/pkg/blockfile"
	"github.com/logdht/blockaudit/pkg/common/log"
	"github.com/logdht/blockaudit/pkg/config"
	"github.com/logdht/blockaudit/pkg/scan"
	"github.com/logdht/blockaudit/pkg/sizeinfo"
	"github.com/logdht/blockaudit/pkg/stats"
	"github.com/logdht/blockaudit/pkg/telemetry"
)

// Exit codes. Callers script around these, so they are part of the interface.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitBadArgument = 3
)

// options holds the parsed command line. Exactly one mode is selected per
// invocation; the remaining fields tune it.
type options struct {
	checkPath     string
	repairPath    string
	sizeCheckPath string
	generatePath  string
	readPath      string
	interactive   bool

	writePath      string
	addFromPath    string
	blockFilter    string
	configPath     string
	logLevel       string
	telemetryOn    bool
	compressBroken bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg := config.NewDefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %s\n", err)
			return exitFailure
		}
		cfg = loaded
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log.SetLevel(log.ParseLevel(level))

	var filter *blockfile.Filter
	if opts.blockFilter != "" {
		parsed, err := blockfile.ParseFilter(opts.blockFilter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return exitUsage
		}
		filter = parsed
	}

	modes := 0
	for _, selected := range []bool{
		opts.checkPath != "",
		opts.repairPath != "",
		opts.sizeCheckPath != "",
		opts.generatePath != "",
		opts.readPath != "",
		opts.interactive,
	} {
		if selected {
			modes++
		}
	}
	if modes != 1 {
		flag.Usage()
		return exitUsage
	}

	tel, err := setupTelemetry(opts.telemetryOn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing telemetry: %s\n", err)
		return exitFailure
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			log.Warn("telemetry shutdown: %s", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	walker := scan.Walker{
		Filter:           filter,
		BufferSize:       cfg.ReadBufferSize,
		CompressBroken:   cfg.CompressBroken || opts.compressBroken,
		ProgressInterval: cfg.ProgressDuration(),
		Stats:            collector,
		Telemetry:        tel,
	}

	switch {
	case opts.checkPath != "":
		walker.Mode = scan.ModeCheck
		return runScan(ctx, &walker, opts.checkPath)

	case opts.repairPath != "":
		walker.Mode = scan.ModeRepair
		return runScan(ctx, &walker, opts.repairPath)

	case opts.sizeCheckPath != "":
		return runSizeCheck(ctx, opts.sizeCheckPath, filter, tel)

	case opts.generatePath != "":
		return runSizeInfo(opts, func() (sizeinfo.SizeInfo, error) {
			gen := sizeinfo.Generator{Filter: filter, BufferSize: cfg.ReadBufferSize}
			return gen.Generate(opts.generatePath)
		})

	case opts.readPath != "":
		return runSizeInfo(opts, func() (sizeinfo.SizeInfo, error) {
			return sizeinfo.ReadFile(opts.readPath)
		})

	default:
		return runInteractive(ctx, &walker, filter, collector)
	}
}

// runScan dispatches to the channel walk or the single file scan depending on
// what the path points at. A single file whose name does not follow the
// bucket/block convention has no key range to check against, which is an
// argument error rather than a corruption finding.
func runScan(ctx context.Context, walker *scan.Walker, path string) int {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return exitFailure
	}

	if info.IsDir() {
		if _, err := walker.WalkChannel(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return exitFailure
		}
		return exitOK
	}

	if _, err := walker.ScanFile(ctx, path); err != nil {
		if errors.Is(err, blockfile.ErrUnresolvableRange) {
			fmt.Fprintf(os.Stderr, "Error: %s: cannot resolve the key range from the path\n", path)
			return exitBadArgument
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return exitFailure
	}
	return exitOK
}

func runSizeCheck(ctx context.Context, channelDir string, filter *blockfile.Filter, tel telemetry.Telemetry) int {
	auditor := sizeinfo.Auditor{Filter: filter, Telemetry: tel}
	if err := auditor.Check(ctx, channelDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return exitFailure
	}
	log.Echo("%s: size information matches", channelDir)
	return exitOK
}

// runSizeInfo produces a SizeInfo through source, applies the optional
// add-from sidecar, prints the result and optionally persists it.
func runSizeInfo(opts options, source func() (sizeinfo.SizeInfo, error)) int {
	info, err := source()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return exitFailure
	}

	if opts.addFromPath != "" {
		extra, err := sizeinfo.ReadFile(opts.addFromPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading add-from file: %s\n", err)
			return exitFailure
		}
		info = info.Add(extra)
	}

	log.Echo("%s", info)

	if opts.writePath != "" {
		if err := sizeinfo.WriteFile(opts.writePath, info); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing size information: %s\n", err)
			return exitFailure
		}
	}
	return exitOK
}

func setupTelemetry(enabled bool) (telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.LoadFromEnv()
	if enabled {
		cfg.Enabled = true
	}
	return telemetry.New(cfg)
}

// parseFlags parses command line flags and returns the selected options
func parseFlags() options {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "blockaudit - integrity checking and repair for block file stores\n\n")
		fmt.Fprintf(out, "Usage: blockaudit [options]\n\n")
		fmt.Fprintf(out, "Exactly one of -check, -repair, -size-check, -generate, -read or -i\n")
		fmt.Fprintf(out, "must be given.\n\n")
		fmt.Fprintf(out, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(out, "\nExit codes:\n")
		fmt.Fprintf(out, "  0 - success\n")
		fmt.Fprintf(out, "  1 - scan failure or size mismatch\n")
		fmt.Fprintf(out, "  2 - usage error\n")
		fmt.Fprintf(out, "  3 - single file path with no resolvable key range\n")
	}

	var opts options
	flag.StringVar(&opts.checkPath, "check", "", "Check a block file or channel directory for corruption")
	flag.StringVar(&opts.repairPath, "repair", "", "Check and repair a block file or channel directory")
	flag.StringVar(&opts.sizeCheckPath, "size-check", "", "Compare a channel's content against its sizeinfo sidecar")
	flag.StringVar(&opts.generatePath, "generate", "", "Generate size information from a channel directory")
	flag.StringVar(&opts.readPath, "read", "", "Read and print a sizeinfo file")
	flag.BoolVar(&opts.interactive, "i", false, "Run the interactive inspector shell")

	flag.StringVar(&opts.writePath, "write", "", "Write the resulting size information to this file")
	flag.StringVar(&opts.addFromPath, "add-from", "", "Add another sizeinfo file's totals to the result")
	flag.StringVar(&opts.blockFilter, "block-filter", "", "Only process block files matching 'OP INTEGER', e.g. '> 0x52125'")
	flag.StringVar(&opts.configPath, "config", "", "Load tool configuration from this JSON file")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flag.BoolVar(&opts.telemetryOn, "telemetry", false, "Export scan metrics and traces to stdout")
	flag.BoolVar(&opts.compressBroken, "compress-broken", false, "Gzip the preserved pre-repair copies")
	flag.Parse()

	return opts
}
