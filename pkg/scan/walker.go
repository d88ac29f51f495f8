// ABOUTME: Directory walker that drives integrity checks and repairs over a channel tree
// ABOUTME: Handles file selection, progress reporting and per-channel result aggregation

package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logdht/blockaudit/pkg/blockfile"
	"github.com/logdht/blockaudit/pkg/common/log"
	"github.com/logdht/blockaudit/pkg/stats"
	"github.com/logdht/blockaudit/pkg/telemetry"
)

// Mode selects what the walker does with each block file it visits.
type Mode int

const (
	// ModeCheck validates files and reports corruption without touching them.
	ModeCheck Mode = iota
	// ModeRepair validates files and rewrites the ones with errors so only
	// their structurally valid records survive.
	ModeRepair
)

func (m Mode) String() string {
	switch m {
	case ModeCheck:
		return "check"
	case ModeRepair:
		return "repair"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultProgressInterval is how often the walker reports that a long scan is
// still making progress.
const DefaultProgressInterval = 2 * time.Second

// Summary aggregates one walk over a channel directory.
type Summary struct {
	// Files is the count of block files scanned.
	Files uint64
	// FilesWithErrors is the count of scanned files with at least one
	// corruption event.
	FilesWithErrors uint64
	// Records is the total count of valid records across scanned files.
	Records uint64
	// Errors is the total count of corruption events across scanned files.
	Errors uint64
	// FilesRepaired is the count of files rewritten. Zero in check mode.
	FilesRepaired uint64
}

// ErrorRate is the fraction of scanned files that had errors, as a percentage.
func (s Summary) ErrorRate() float64 {
	if s.Files == 0 {
		return 0
	}
	return float64(s.FilesWithErrors) / float64(s.Files) * 100
}

// Walker traverses a channel directory tree and checks or repairs every block
// file in it. The zero value checks with default settings; callers set Mode
// and the optional collaborators before the first walk.
type Walker struct {
	// Mode selects check or repair behavior.
	Mode Mode
	// Filter restricts which block files are visited, matched against the
	// derived block key. Nil means all files.
	Filter *blockfile.Filter
	// BufferSize overrides the read buffer size when positive.
	BufferSize int
	// CompressBroken gzips the preserved pre-repair copies.
	CompressBroken bool
	// ProgressInterval overrides the progress reporting period when positive.
	ProgressInterval time.Duration
	// Stats receives per-file scan counters when non-nil.
	Stats *stats.AtomicCollector
	// Telemetry receives spans and measurements when non-nil.
	Telemetry telemetry.Telemetry
}

// WalkChannel scans every non-archival block file under the channel directory
// and returns the aggregated result. Corrupt files never fail the walk; only
// filesystem errors do. The summary line is reported even when the walk covers
// no files at all, so an empty channel is distinguishable from a silent crash.
func (w *Walker) WalkChannel(ctx context.Context, channelDir string) (Summary, error) {
	tel := w.telemetry()
	ctx, span := tel.StartSpan(ctx, "scan.walk_channel",
		attribute.String(telemetry.AttrOperation, w.Mode.String()),
		attribute.String(telemetry.AttrChannel, channelDir))
	defer span.End()
	defer telemetry.RecordDuration(ctx, tel, "scan.walk_duration", time.Now(),
		attribute.String(telemetry.AttrOperation, w.Mode.String()))

	var scanStart time.Time
	if w.Stats != nil {
		scanStart = w.Stats.StartScan()
	}

	entries, err := os.ReadDir(channelDir)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read channel directory: %w", err)
	}

	progress := newProgressReporter(channelDir, w.ProgressInterval)
	var summary Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dirSummary, err := w.walkDir(ctx, filepath.Join(channelDir, entry.Name()), entry.Name(), progress)
		if err != nil {
			return summary, err
		}
		summary = summary.add(dirSummary)
	}

	if w.Stats != nil {
		w.Stats.FinishScan(scanStart)
	}
	tel.RecordCounter(ctx, "scan.files_processed", int64(summary.Files),
		attribute.String(telemetry.AttrOperation, w.Mode.String()))
	tel.RecordCounter(ctx, "scan.record_errors", int64(summary.Errors),
		attribute.String(telemetry.AttrOperation, w.Mode.String()))

	log.Echo("%s: %d files processed, %d files with errors (%.2f%%), %d records processed in total (%d errors)",
		channelDir, summary.Files, summary.FilesWithErrors, summary.ErrorRate(), summary.Records, summary.Errors)
	return summary, nil
}

// ScanFile checks or repairs a single block file whose key range is derived
// from its own path. An unresolvable path fails the scan; a directory walk can
// skip such a file, a direct request cannot.
func (w *Walker) ScanFile(ctx context.Context, path string) (Summary, error) {
	rng, err := blockfile.ResolveKeyRange(path)
	if err != nil {
		return Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	summary, err := w.processFile(ctx, path, rng)
	if err != nil {
		return Summary{}, err
	}
	log.Echo("%s: %d records processed, %d errors", path, summary.Records, summary.Errors)
	return summary, nil
}

func (w *Walker) walkDir(ctx context.Context, dirPath, dirName string, progress *progressReporter) (Summary, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read bucket directory: %w", err)
	}

	var summary Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || blockfile.IsArchived(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		key, err := blockfile.BlockKey(dirName, name)
		if err != nil {
			log.Warn("%s%s: file name format unrecognized, not in hexa, skipping", dirName, name)
			continue
		}
		if w.Filter != nil {
			if !w.Filter.Match(key) {
				log.Echo("%d %s %s", key, w.Filter, "FALSE")
				continue
			}
			log.Echo("%d %s %s", key, w.Filter, "TRUE")
		}

		path := filepath.Join(dirPath, name)
		rng, err := blockfile.ResolveKeyRange(path)
		if err != nil {
			log.Warn("%s: cannot resolve key range, skipping", path)
			continue
		}

		fileSummary, err := w.processFile(ctx, path, rng)
		if err != nil {
			return summary, err
		}
		summary = summary.add(fileSummary)
		progress.step(summary.Files)
	}
	return summary, nil
}

// processFile runs one validator pass and, in repair mode, rewrites the file
// when the pass found errors. Clean files are never rewritten; rewriting them
// would churn mtimes for no content change. The repair must reproduce the
// validator's surviving-set digest, anything else means the file changed
// between the two passes.
func (w *Walker) processFile(ctx context.Context, path string, rng blockfile.KeyRange) (Summary, error) {
	tel := w.telemetry()
	start := time.Now()

	validator := blockfile.Validator{BufferSize: w.BufferSize}
	result, err := validator.CheckFile(path, rng)
	if err != nil {
		if w.Stats != nil {
			w.Stats.TrackError("check_open")
		}
		return Summary{}, err
	}

	summary := Summary{
		Files:   1,
		Records: result.Records,
		Errors:  result.Errors,
	}
	if result.Errors > 0 {
		summary.FilesWithErrors = 1
	}

	if w.Mode == ModeRepair && result.Errors > 0 {
		repairer := blockfile.Repairer{
			BufferSize:     w.BufferSize,
			CompressBroken: w.CompressBroken,
		}
		repaired, err := repairer.RepairFile(path, rng)
		if err != nil {
			if w.Stats != nil {
				w.Stats.TrackError("repair")
			}
			return Summary{}, fmt.Errorf("%s: repair failed: %w", path, err)
		}
		if repaired.Digest != result.Digest {
			log.Warn("%s: repaired content digest differs from the validated content, the file changed mid-scan", path)
		}
		summary.FilesRepaired = 1
		summary.Records = repaired.Records
		log.Info("%s: repaired, %d records kept, original preserved as %s", path, repaired.Records, repaired.BrokenPath)
	}

	if w.Stats != nil {
		w.Stats.TrackScannedFile(summary.Records, summary.Errors, summary.FilesRepaired > 0)
		op := stats.OpCheck
		if w.Mode == ModeRepair {
			op = stats.OpRepair
		}
		w.Stats.TrackOperationWithLatency(op, uint64(time.Since(start).Nanoseconds()))
	}
	tel.RecordHistogram(ctx, "scan.file_duration", time.Since(start).Seconds(),
		attribute.String(telemetry.AttrOperation, w.Mode.String()),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentScan))
	return summary, nil
}

func (w *Walker) telemetry() telemetry.Telemetry {
	if w.Telemetry != nil {
		return w.Telemetry
	}
	return telemetry.NewNoop()
}

func (s Summary) add(other Summary) Summary {
	return Summary{
		Files:           s.Files + other.Files,
		FilesWithErrors: s.FilesWithErrors + other.FilesWithErrors,
		Records:         s.Records + other.Records,
		Errors:          s.Errors + other.Errors,
		FilesRepaired:   s.FilesRepaired + other.FilesRepaired,
	}
}

// progressReporter emits a heartbeat line when a walk has been running longer
// than the interval since the last report. The check happens between files, so
// a single very slow file delays the heartbeat rather than interleaving with
// its own warnings.
type progressReporter struct {
	channel  string
	interval time.Duration
	last     time.Time
}

func newProgressReporter(channel string, interval time.Duration) *progressReporter {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &progressReporter{channel: channel, interval: interval, last: time.Now()}
}

func (p *progressReporter) step(filesDone uint64) {
	if time.Since(p.last) < p.interval {
		return
	}
	p.last = time.Now()
	log.Echo("%s: processing... (%d files done)", p.channel, filesDone)
}
