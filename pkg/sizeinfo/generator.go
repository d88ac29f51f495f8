package sizeinfo

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/logdht/blockaudit/pkg/blockfile"
	"github.com/logdht/blockaudit/pkg/common/log"
)

// Generator computes a channel's true SizeInfo with a trusted fast scan: no
// key-range validation, no corruption recovery, values skipped instead of
// materialized. It assumes already-validated input, so a malformed record is
// a fatal error rather than something to count and step over.
type Generator struct {
	// Filter restricts which block files contribute, matched against the
	// derived block key. Nil means all files.
	Filter *blockfile.Filter
	// BufferSize overrides the read buffer size when positive.
	BufferSize int
}

// Generate scans every non-archival block file under the channel directory
// and returns the summed aggregate.
func (g *Generator) Generate(channelDir string) (SizeInfo, error) {
	entries, err := os.ReadDir(channelDir)
	if err != nil {
		return SizeInfo{}, fmt.Errorf("failed to read channel directory: %w", err)
	}

	var info SizeInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirInfo, err := g.generateDir(filepath.Join(channelDir, entry.Name()), entry.Name())
		if err != nil {
			return SizeInfo{}, err
		}
		info = info.Add(dirInfo)
	}
	return info, nil
}

func (g *Generator) generateDir(dirPath, dirName string) (SizeInfo, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return SizeInfo{}, fmt.Errorf("failed to read bucket directory: %w", err)
	}

	var info SizeInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || blockfile.IsArchived(name) {
			continue
		}

		key, err := blockfile.BlockKey(dirName, name)
		if err != nil {
			log.Warn("%s%s: file name format unrecognized, not in hexa, skipping", dirName, name)
			continue
		}
		if g.Filter != nil {
			if !g.Filter.Match(key) {
				log.Echo("%d %s %s", key, g.Filter, "FALSE")
				continue
			}
			log.Echo("%d %s %s", key, g.Filter, "TRUE")
		}

		path := filepath.Join(dirPath, name)
		fileInfo, err := g.generateFile(path)
		if err != nil {
			return SizeInfo{}, fmt.Errorf("%s: %w", path, err)
		}
		info = info.Add(fileInfo)
	}
	return info, nil
}

// generateFile sums one block file: per record, the key is discarded, the
// length is added to the size, and the value is skipped without being read
// into memory.
func (g *Generator) generateFile(path string) (SizeInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return SizeInfo{}, err
	}
	defer file.Close()

	bufSize := g.BufferSize
	if bufSize <= 0 {
		bufSize = blockfile.DefaultReadBufferSize
	}
	reader := bufio.NewReaderSize(file, bufSize)

	var info SizeInfo
	var word [blockfile.FieldSize]byte
	for {
		if _, err := io.ReadFull(reader, word[:]); err != nil {
			if err == io.EOF {
				return info, nil
			}
			return SizeInfo{}, fmt.Errorf("malformed key field: %w", err)
		}

		if _, err := io.ReadFull(reader, word[:]); err != nil {
			return SizeInfo{}, fmt.Errorf("malformed length field: %w", err)
		}
		length := binary.LittleEndian.Uint64(word[:])

		if err := discard(reader, length); err != nil {
			return SizeInfo{}, fmt.Errorf("malformed value of %d bytes: %w", length, err)
		}

		info.Size += length
		info.Records++
	}
}

// discard skips length value bytes without materializing them, in chunks
// bounded by the reader's buffer so a corrupt length cannot force a giant
// allocation before the short read surfaces.
func discard(reader *bufio.Reader, length uint64) error {
	for length > 0 {
		chunk := length
		if chunk > uint64(reader.Size()) {
			chunk = uint64(reader.Size())
		}
		n, err := reader.Discard(int(chunk))
		length -= uint64(n)
		if err != nil {
			return err
		}
	}
	return nil
}
