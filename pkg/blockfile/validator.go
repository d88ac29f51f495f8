package blockfile

import (
	"bufio"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/logdht/blockaudit/pkg/common/log"
)

// CheckResult aggregates one validator pass over a block file.
type CheckResult struct {
	// Records is the count of structurally valid, in-range records.
	Records uint64
	// Errors is the count of corruption events encountered.
	Errors uint64
	// Digest is the xxhash64 of the surviving records' encoded bytes, in
	// order. A subsequent repair of the same file must reproduce it.
	Digest uint64
}

// Validator scans block files with the strict-logging decode policy: every
// corruption event is warned about with context and counted, and scanning
// continues by resynchronizing one word at a time.
type Validator struct {
	// BufferSize overrides the read buffer size when positive.
	BufferSize int
}

// CheckFile scans one block file and reports how many records are valid for
// the given key range and how many corruption events were seen. Corruption
// never fails the scan; only opening the file can return an error.
func (v *Validator) CheckFile(path string, rng KeyRange) (CheckResult, error) {
	file, reader, err := openScanner(path, v.BufferSize)
	if err != nil {
		return CheckResult{}, fmt.Errorf("failed to open block file: %w", err)
	}
	defer file.Close()

	return v.check(path, reader, rng), nil
}

// check runs the scan loop. The resynchronization policy is deliberate: an
// out-of-range or malformed key does not consume the length and value fields
// that would normally follow, so the next attempt re-interprets the very next
// word as a key. The one exception is a read that consumed no bytes at all,
// which is counted once and ends the scan since retrying it cannot advance.
func (v *Validator) check(name string, reader *bufio.Reader, rng KeyRange) CheckResult {
	var result CheckResult
	var lastKey uint64
	digest := xxhash.New()

	for {
		outcome := decodeNext(reader, rng)
		switch outcome.Status {
		case DecodeEOF:
			result.Digest = digest.Sum64()
			return result

		case DecodeOK:
			digest.Write(outcome.Raw)
			lastKey = outcome.Key
			result.Records++

		case DecodeOutOfRange:
			log.Warn("%s: key 0x%016x out of range %s, %d records read already",
				name, outcome.Key, rng, result.Records)
			result.Errors++
			lastKey = outcome.Key

		case DecodeMalformed:
			result.Errors++
			switch outcome.Field {
			case FieldKey:
				log.Warn("%s: error reading key after successfully reading %d records "+
					"(last read key was 0x%016x): %v", name, result.Records, lastKey, outcome.Err)
			case FieldLength:
				log.Warn("%s: error reading value length for key 0x%016x after successfully "+
					"reading %d records: %v", name, outcome.Key, result.Records, outcome.Err)
			case FieldValue:
				log.Warn("%s: error reading the value (%d bytes) for key 0x%016x after "+
					"successfully reading %d records: %v",
					name, outcome.Length, outcome.Key, result.Records, outcome.Err)
			}
			if outcome.Terminal() {
				log.Warn("%s: stream is unreadable, ending scan", name)
				result.Digest = digest.Sum64()
				return result
			}
		}
	}
}
