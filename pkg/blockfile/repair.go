package blockfile

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
)

const (
	// RepairingSuffix marks the temporary rewrite target of a repair.
	RepairingSuffix = ".repairing"
	// BrokenSuffix marks the preserved pre-repair copy.
	BrokenSuffix = ".broken"
)

// RepairResult aggregates one repair pass over a block file.
type RepairResult struct {
	// Records is the count of records written to the repaired file.
	Records uint64
	// Digest is the xxhash64 of the written bytes. When the file was
	// validated first, this matches the validator's surviving-set digest.
	Digest uint64
	// BrokenPath is where the pre-repair content was preserved.
	BrokenPath string
}

// Repairer rewrites a block file with the silent-skip decode policy: records
// that fail to parse or carry an out-of-range key are dropped without
// per-record logging. Only a validator pass reports error counts; callers
// run one first and repair only files it flagged.
type Repairer struct {
	// BufferSize overrides the read buffer size when positive.
	BufferSize int
	// CompressBroken gzips the preserved pre-repair copy. The content is
	// still kept; only its encoding changes.
	CompressBroken bool
}

// RepairFile rewrites path so it contains exactly the structurally valid,
// in-range records of the original, in their original order. The original
// content is preserved under the broken suffix and never deleted.
func (r *Repairer) RepairFile(path string, rng KeyRange) (RepairResult, error) {
	in, reader, err := openScanner(path, r.BufferSize)
	if err != nil {
		return RepairResult{}, fmt.Errorf("failed to open block file: %w", err)
	}
	defer in.Close()

	repPath := path + RepairingSuffix
	out, err := os.Create(repPath)
	if err != nil {
		return RepairResult{}, fmt.Errorf("failed to create repair file: %w", err)
	}

	result, err := r.rewrite(reader, out, rng)
	if err != nil {
		out.Close()
		os.Remove(repPath)
		return RepairResult{}, err
	}
	if err := out.Close(); err != nil {
		os.Remove(repPath)
		return RepairResult{}, fmt.Errorf("failed to close repair file: %w", err)
	}

	brokenPath := path + BrokenSuffix
	if err := os.Rename(path, brokenPath); err != nil {
		os.Remove(repPath)
		return RepairResult{}, fmt.Errorf("failed to preserve broken file: %w", err)
	}
	if err := os.Rename(repPath, path); err != nil {
		return RepairResult{}, fmt.Errorf("failed to install repaired file: %w", err)
	}
	result.BrokenPath = brokenPath

	if r.CompressBroken {
		compressed, err := compressFile(brokenPath)
		if err != nil {
			// The uncompressed copy is intact; compression is best effort.
			return result, fmt.Errorf("failed to compress broken copy: %w", err)
		}
		result.BrokenPath = compressed
	}

	return result, nil
}

// rewrite copies every decodable, in-range record verbatim from the scan
// stream to the output. Malformed regions and out-of-range keys are skipped
// with the same word-at-a-time resynchronization the validator uses, just
// without the logging.
func (r *Repairer) rewrite(reader *bufio.Reader, out io.Writer, rng KeyRange) (RepairResult, error) {
	var result RepairResult
	digest := xxhash.New()
	writer := bufio.NewWriter(out)

	for {
		outcome := decodeNext(reader, rng)
		switch outcome.Status {
		case DecodeEOF:
			if err := writer.Flush(); err != nil {
				return RepairResult{}, fmt.Errorf("failed to flush repair file: %w", err)
			}
			result.Digest = digest.Sum64()
			return result, nil

		case DecodeOK:
			if _, err := writer.Write(outcome.Raw); err != nil {
				return RepairResult{}, fmt.Errorf("failed to write record: %w", err)
			}
			digest.Write(outcome.Raw)
			result.Records++

		case DecodeOutOfRange, DecodeMalformed:
			if outcome.Terminal() {
				if err := writer.Flush(); err != nil {
					return RepairResult{}, fmt.Errorf("failed to flush repair file: %w", err)
				}
				result.Digest = digest.Sum64()
				return result, nil
			}
		}
	}
}

// compressFile gzips path into path+ArchiveSuffix and removes the plain copy
// once the compressed one is durably written.
func compressFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	gzPath := path + ArchiveSuffix
	out, err := os.Create(gzPath)
	if err != nil {
		return "", err
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		os.Remove(gzPath)
		return "", err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(gzPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(gzPath)
		return "", err
	}

	return gzPath, os.Remove(path)
}
