package blockfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/logdht/blockaudit/pkg/common/log"
)

const (
	// DirNameLen is the expected length of a timestamp bucket directory name.
	DirNameLen = 10
	// FileNameLen is the expected length of a block file name.
	FileNameLen = 3

	// BlockKeySpan is the number of contiguous keys a block file covers.
	BlockKeySpan = 0x1000
)

// ErrUnresolvableRange reports a path whose last two components cannot be
// parsed as the hexadecimal bucket/block naming convention.
var ErrUnresolvableRange = errors.New("unresolvable key range")

// KeyRange is the closed interval of keys a block file is responsible for.
type KeyRange struct {
	Min uint64
	Max uint64
}

// Contains reports whether k lies within the range.
func (r KeyRange) Contains(k uint64) bool {
	return k >= r.Min && k <= r.Max
}

// String formats the range the way scan diagnostics print it.
func (r KeyRange) String() string {
	return fmt.Sprintf("(0x%016x, 0x%016x)", r.Min, r.Max)
}

// ResolveKeyRange derives the valid key range of a block file from its path.
// The parent directory name and the file name are concatenated as hexadecimal
// digits and padded with three zero digits to form the minimum key; the range
// spans exactly BlockKeySpan keys. A component of unexpected length is only
// warned about, as long as it still parses as base 16.
func ResolveKeyRange(path string) (KeyRange, error) {
	dir, file, err := splitBlockPath(path)
	if err != nil {
		return KeyRange{}, err
	}

	ok := checkHexComponent(path, "directory", dir, DirNameLen)
	ok = checkHexComponent(path, "file", file, FileNameLen) && ok
	if !ok {
		return KeyRange{}, ErrUnresolvableRange
	}

	min, err := strconv.ParseUint(dir+file+"000", 16, 64)
	if err != nil {
		return KeyRange{}, fmt.Errorf("%w: %s", ErrUnresolvableRange, path)
	}
	return KeyRange{Min: min, Max: min + BlockKeySpan - 1}, nil
}

// BlockKey derives the filter comparison key of a block file: the parent
// directory name and file name concatenated and parsed as one hexadecimal
// integer.
func BlockKey(dirName, fileName string) (uint64, error) {
	key, err := strconv.ParseUint(dirName+fileName, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s%s", ErrUnresolvableRange, dirName, fileName)
	}
	return key, nil
}

// splitBlockPath extracts the last two path components. A bare file name has
// no directory to derive the range from and is rejected.
func splitBlockPath(path string) (dir, file string, err error) {
	clean := filepath.Clean(path)
	file = filepath.Base(clean)
	dir = filepath.Base(filepath.Dir(clean))
	if file == "." || file == string(filepath.Separator) ||
		dir == "." || dir == string(filepath.Separator) {
		log.Warn("%s: the path must include the directory to resolve the key range", path)
		return "", "", ErrUnresolvableRange
	}
	file = strings.TrimSuffix(file, ArchiveSuffix)
	return dir, file, nil
}

// checkHexComponent validates one path component of the bucket/block naming
// convention. Length mismatches warn but do not fail.
func checkHexComponent(path, kind, name string, wantLen int) bool {
	if len(name) != wantLen {
		log.Warn("%s: the %s name '%s' should have length %d", path, kind, name, wantLen)
	}
	if _, err := strconv.ParseUint(name, 16, 64); err != nil {
		log.Warn("%s: the %s name '%s' is not a valid base 16 number", path, kind, name)
		return false
	}
	return true
}
