// Package blockfile implements the on-disk record format of the logdht block
// store and the corruption-tolerant scanner, validator and repairer that
// operate on individual block files.
//
// A block file is a sequence of records with no framing beyond position:
//
//	[8-byte key][8-byte length][length bytes of value]
//
// Both fixed fields are little-endian unsigned 64-bit integers. There is no
// checksum and no record boundary marker, so a scanner that loses alignment
// can only resynchronize by re-attempting key interpretation one word at a
// time.
package blockfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

const (
	// FieldSize is the width of the fixed key and length fields.
	FieldSize = 8

	// HeaderSize is the fixed portion of a record preceding the value.
	HeaderSize = 2 * FieldSize

	// ArchiveSuffix marks compressed block files excluded from every scan.
	ArchiveSuffix = ".gz"

	// DefaultReadBufferSize is the buffered reader size for file scans.
	DefaultReadBufferSize = 64 * 1024
)

var (
	// ErrUnreadableStream reports a read failure that consumed no bytes.
	// Retrying such a read cannot make progress, so scans terminate on it.
	ErrUnreadableStream = errors.New("unreadable stream")
)

// DecodeStatus tags the outcome of decoding one record from the stream.
type DecodeStatus int

const (
	// DecodeOK means a structurally valid record with an in-range key.
	DecodeOK DecodeStatus = iota
	// DecodeEOF means the key read yielded no bytes at all: clean end of file.
	DecodeEOF
	// DecodeOutOfRange means the key decoded but lies outside the block
	// file's range. The length and value fields were not consumed.
	DecodeOutOfRange
	// DecodeMalformed means a field read failed. How many bytes were
	// consumed depends on which field failed; see DecodeOutcome.Terminal.
	DecodeMalformed
)

// RecordField identifies which field a decode outcome refers to.
type RecordField int

const (
	FieldKey RecordField = iota
	FieldLength
	FieldValue
)

// String returns the field name used in diagnostics.
func (f RecordField) String() string {
	switch f {
	case FieldKey:
		return "key"
	case FieldLength:
		return "value length"
	case FieldValue:
		return "value"
	default:
		return "unknown"
	}
}

// DecodeOutcome is the tagged result of one decode attempt. The Key and
// Length fields are valid for the statuses that got far enough to read them;
// Raw holds the verbatim encoded bytes of an OK record so a repair pass can
// copy them through untouched.
type DecodeOutcome struct {
	Status DecodeStatus
	Field  RecordField
	Key    uint64
	Length uint64
	Raw    []byte
	Err    error
}

// Terminal reports whether the failed read consumed no bytes, meaning the
// scan cannot advance past it and must end.
func (o DecodeOutcome) Terminal() bool {
	return o.Status == DecodeMalformed && errors.Is(o.Err, ErrUnreadableStream)
}

// decodeNext reads one record from r, validating the key against rng. It
// never reads past the point of failure: an out-of-range key leaves the
// length and value unconsumed so the caller can resynchronize word by word.
func decodeNext(r *bufio.Reader, rng KeyRange) DecodeOutcome {
	var keyBuf [FieldSize]byte
	n, err := io.ReadFull(r, keyBuf[:])
	if err == io.EOF {
		return DecodeOutcome{Status: DecodeEOF}
	}
	if err != nil {
		if n == 0 {
			err = errors.Join(ErrUnreadableStream, err)
		}
		return DecodeOutcome{Status: DecodeMalformed, Field: FieldKey, Err: err}
	}

	key := binary.LittleEndian.Uint64(keyBuf[:])
	if !rng.Contains(key) {
		return DecodeOutcome{Status: DecodeOutOfRange, Field: FieldKey, Key: key}
	}

	var lenBuf [FieldSize]byte
	n, err = io.ReadFull(r, lenBuf[:])
	if err != nil {
		if n == 0 && err != io.EOF {
			err = errors.Join(ErrUnreadableStream, err)
		}
		return DecodeOutcome{Status: DecodeMalformed, Field: FieldLength, Key: key, Err: err}
	}
	length := binary.LittleEndian.Uint64(lenBuf[:])

	// Stream the value through a buffer rather than allocating length bytes
	// up front: a corrupt length field can claim far more data than exists.
	var value bytes.Buffer
	copied, err := io.CopyN(&value, r, int64(length))
	if err != nil || uint64(copied) != length {
		if copied == 0 && err != nil && err != io.EOF {
			err = errors.Join(ErrUnreadableStream, err)
		}
		return DecodeOutcome{Status: DecodeMalformed, Field: FieldValue, Key: key, Length: length, Err: err}
	}

	raw := make([]byte, 0, HeaderSize+value.Len())
	raw = append(raw, keyBuf[:]...)
	raw = append(raw, lenBuf[:]...)
	raw = append(raw, value.Bytes()...)

	return DecodeOutcome{Status: DecodeOK, Key: key, Length: length, Raw: raw}
}

// AppendRecord encodes a record and appends it to dst. Used by test fixtures
// and by callers that need to synthesize block-file content.
func AppendRecord(dst []byte, key uint64, value []byte) []byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint64(buf[:FieldSize], key)
	binary.LittleEndian.PutUint64(buf[FieldSize:], uint64(len(value)))
	dst = append(dst, buf[:]...)
	return append(dst, value...)
}

// IsArchived reports whether the file name carries the archival suffix.
func IsArchived(name string) bool {
	return len(name) >= len(ArchiveSuffix) && name[len(name)-len(ArchiveSuffix):] == ArchiveSuffix
}

// openScanner opens a block file for sequential scanning.
func openScanner(path string, bufSize int) (*os.File, *bufio.Reader, error) {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, bufio.NewReaderSize(file, bufSize), nil
}
