// Package sizeinfo implements the channel size index: the (record count,
// total payload bytes) aggregate persisted in a channel's sidecar file, the
// fixed-width codec for that file, the trusted fast generator that rederives
// the aggregate from block files, and the auditor that compares the two.
package sizeinfo

import "fmt"

// SizeInfo is the aggregate describing a channel or any subset of its block
// files. It is a value type: arithmetic returns new values and combining the
// aggregates of disjoint file subsets by addition is exact.
type SizeInfo struct {
	// Records is the number of records.
	Records uint64
	// Size is the total number of value bytes across those records.
	Size uint64
}

// Add returns the component-wise sum.
func (s SizeInfo) Add(other SizeInfo) SizeInfo {
	return SizeInfo{
		Records: s.Records + other.Records,
		Size:    s.Size + other.Size,
	}
}

// Sub returns the component-wise difference.
func (s SizeInfo) Sub(other SizeInfo) SizeInfo {
	return SizeInfo{
		Records: s.Records - other.Records,
		Size:    s.Size - other.Size,
	}
}

// Equal reports component-wise equality.
func (s SizeInfo) Equal(other SizeInfo) bool {
	return s == other
}

// String formats the aggregate the way the CLI prints it.
func (s SizeInfo) String() string {
	return fmt.Sprintf("records=%d size=%d", s.Records, s.Size)
}
