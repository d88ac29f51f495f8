package blockfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeBlockFile creates the conventional bucket/block layout under dir and
// returns the block file path and its resolved range.
func writeBlockFile(t *testing.T, dir string, content []byte) (string, KeyRange) {
	t.Helper()

	bucket := filepath.Join(dir, "0000000052")
	if err := os.MkdirAll(bucket, 0755); err != nil {
		t.Fatalf("Failed to create bucket directory: %v", err)
	}
	path := filepath.Join(bucket, "125")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write block file: %v", err)
	}

	rng, err := ResolveKeyRange(path)
	if err != nil {
		t.Fatalf("Failed to resolve range: %v", err)
	}
	return path, rng
}

// inRangeKey returns the i-th key of the test block's range.
func inRangeKey(rng KeyRange, i uint64) uint64 {
	return rng.Min + (i % BlockKeySpan)
}

func TestCheckWellFormedFile(t *testing.T) {
	dir := t.TempDir()

	var content []byte
	const n = 25
	rng := KeyRange{Min: 0x0000000052125000, Max: 0x0000000052125fff}
	for i := uint64(0); i < n; i++ {
		content = AppendRecord(content, inRangeKey(rng, i*37), []byte(fmt.Sprintf("value-%d", i)))
	}
	path, resolved := writeBlockFile(t, dir, content)
	if resolved != rng {
		t.Fatalf("Resolved range %v does not match expected %v", resolved, rng)
	}

	var v Validator
	result, err := v.CheckFile(path, resolved)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if result.Records != n {
		t.Errorf("Expected %d records, got %d", n, result.Records)
	}
	if result.Errors != 0 {
		t.Errorf("Expected 0 errors, got %d", result.Errors)
	}
	if result.Digest == 0 {
		t.Error("Expected a nonzero digest for a non-empty file")
	}
}

func TestCheckEmptyFile(t *testing.T) {
	path, rng := writeBlockFile(t, t.TempDir(), nil)

	var v Validator
	result, err := v.CheckFile(path, rng)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if result.Records != 0 || result.Errors != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

func TestCheckOutOfRangeKeyResynchronizes(t *testing.T) {
	dir := t.TempDir()
	rng := KeyRange{Min: 0x0000000052125000, Max: 0x0000000052125fff}

	// A valid record, then a full record with an out-of-range key whose
	// length and value words are also out of range, then another valid
	// record. The scanner must not consume the bad record's length and
	// value fields after rejecting the key: it walks through them one word
	// at a time (3 words here, 16-byte value) and realigns on the last
	// record. That is 1 + 1 + 2 = 4 errors.
	var content []byte
	content = AppendRecord(content, rng.Min+1, []byte("first"))
	content = AppendRecord(content, 0x42, make([]byte, 16))
	content = AppendRecord(content, rng.Max-1, []byte("last"))
	path, _ := writeBlockFile(t, dir, content)

	var v Validator
	result, err := v.CheckFile(path, rng)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if result.Records != 2 {
		t.Errorf("Expected 2 surviving records, got %d", result.Records)
	}
	if result.Errors != 4 {
		t.Errorf("Expected 4 errors for the corrupted region, got %d", result.Errors)
	}
}

func TestCheckSingleOutOfRangeWord(t *testing.T) {
	dir := t.TempDir()
	rng := KeyRange{Min: 0x0000000052125000, Max: 0x0000000052125fff}

	var content []byte
	const n = 5
	for i := uint64(0); i < n; i++ {
		content = AppendRecord(content, inRangeKey(rng, i), []byte("v"))
	}
	// One stray out-of-range word at the very end.
	var stray [FieldSize]byte
	binary.LittleEndian.PutUint64(stray[:], 0x1)
	content = append(content, stray[:]...)
	path, _ := writeBlockFile(t, dir, content)

	var v Validator
	result, err := v.CheckFile(path, rng)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if result.Records != n {
		t.Errorf("Expected %d records, got %d", n, result.Records)
	}
	if result.Errors != 1 {
		t.Errorf("Expected exactly 1 error, got %d", result.Errors)
	}
}

func TestCheckTruncatedValue(t *testing.T) {
	dir := t.TempDir()
	rng := KeyRange{Min: 0x0000000052125000, Max: 0x0000000052125fff}

	var content []byte
	content = AppendRecord(content, rng.Min, []byte("complete"))
	full := AppendRecord(nil, rng.Min+5, []byte("truncated-value"))
	content = append(content, full[:len(full)-4]...)
	path, _ := writeBlockFile(t, dir, content)

	var v Validator
	result, err := v.CheckFile(path, rng)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if result.Records != 1 {
		t.Errorf("Expected 1 record, got %d", result.Records)
	}
	if result.Errors != 1 {
		t.Errorf("Expected 1 error for the truncated value, got %d", result.Errors)
	}
}

func TestCheckTruncatedKeyWord(t *testing.T) {
	dir := t.TempDir()
	rng := KeyRange{Min: 0x0000000052125000, Max: 0x0000000052125fff}

	content := AppendRecord(nil, rng.Min, []byte("ok"))
	content = append(content, 0xde, 0xad, 0xbe) // partial trailing key word
	path, _ := writeBlockFile(t, dir, content)

	var v Validator
	result, err := v.CheckFile(path, rng)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if result.Records != 1 || result.Errors != 1 {
		t.Errorf("Expected 1 record and 1 error, got %+v", result)
	}
}

func TestCheckBogusLengthCountsOneError(t *testing.T) {
	dir := t.TempDir()
	rng := KeyRange{Min: 0x0000000052125000, Max: 0x0000000052125fff}

	// In-range key followed by a length field claiming far more data than
	// the file holds. The value read comes up short, which is one error,
	// and the scan ends at EOF without ballooning memory.
	var content []byte
	content = AppendRecord(content, rng.Min+9, []byte("good"))
	var word [FieldSize]byte
	binary.LittleEndian.PutUint64(word[:], rng.Min+10)
	content = append(content, word[:]...)
	binary.LittleEndian.PutUint64(word[:], 1<<40)
	content = append(content, word[:]...)
	content = append(content, []byte("short")...)
	path, _ := writeBlockFile(t, dir, content)

	var v Validator
	result, err := v.CheckFile(path, rng)
	if err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	if result.Records != 1 {
		t.Errorf("Expected 1 record, got %d", result.Records)
	}
	if result.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", result.Errors)
	}
}
