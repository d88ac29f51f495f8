package sizeinfo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// EncodedSize is the exact size of a persisted sidecar file: two
// little-endian unsigned 64-bit fields, records then size. No framing, no
// versioning; the layout must stay compatible with every sidecar file the
// storage node has ever written.
const EncodedSize = 16

// ErrInvalidEncoding reports sidecar content of the wrong length.
var ErrInvalidEncoding = errors.New("invalid sizeinfo encoding")

// Encode serializes the aggregate to its fixed 16-byte layout.
func Encode(info SizeInfo) []byte {
	buf := make([]byte, EncodedSize)
	binary.LittleEndian.PutUint64(buf[0:8], info.Records)
	binary.LittleEndian.PutUint64(buf[8:16], info.Size)
	return buf
}

// Decode deserializes the fixed 16-byte layout.
func Decode(data []byte) (SizeInfo, error) {
	if len(data) != EncodedSize {
		return SizeInfo{}, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidEncoding, len(data), EncodedSize)
	}
	return SizeInfo{
		Records: binary.LittleEndian.Uint64(data[0:8]),
		Size:    binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}

// ReadFile reads a persisted sidecar file.
func ReadFile(path string) (SizeInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SizeInfo{}, fmt.Errorf("failed to read sizeinfo file: %w", err)
	}
	info, err := Decode(data)
	if err != nil {
		return SizeInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// WriteFile persists the aggregate to a sidecar file. The write goes through
// a temporary file and a rename so the sidecar is never observed partially
// mutated.
func WriteFile(path string, info SizeInfo) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, Encode(info), 0644); err != nil {
		return fmt.Errorf("failed to write sizeinfo file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install sizeinfo file: %w", err)
	}
	return nil
}
