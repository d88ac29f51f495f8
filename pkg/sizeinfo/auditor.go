package sizeinfo

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logdht/blockaudit/pkg/blockfile"
	"github.com/logdht/blockaudit/pkg/telemetry"
)

// SidecarFileName is the per-channel sidecar file holding the persisted
// SizeInfo.
const SidecarFileName = "sizeinfo"

// MismatchError reports a size audit failure with both values and their
// component-wise difference.
type MismatchError struct {
	Channel  string
	Expected SizeInfo
	Actual   SizeInfo
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: expected=[%s] current=[%s] (diff=[records=%d size=%d])",
		e.Channel, e.Expected, e.Actual,
		int64(e.Expected.Records-e.Actual.Records), int64(e.Expected.Size-e.Actual.Size))
}

// Auditor verifies that a channel's persisted sidecar matches a fresh scan.
type Auditor struct {
	// Filter restricts the generating scan, matched against derived block
	// keys. An audit with a filter only makes sense against a sidecar
	// produced with the same filter.
	Filter *blockfile.Filter
	// Telemetry receives the audit duration and outcome when non-nil.
	Telemetry telemetry.Telemetry
}

// Check regenerates the channel's SizeInfo and compares it with the sidecar
// file. A mismatch returns a *MismatchError; a match returns nil silently.
func (a *Auditor) Check(ctx context.Context, channelDir string) error {
	tel := a.Telemetry
	if tel == nil {
		tel = telemetry.NewNoop()
	}
	start := time.Now()

	status := telemetry.StatusSuccess
	err := a.check(channelDir)
	if err != nil {
		status = telemetry.StatusError
		if _, ok := err.(*MismatchError); ok {
			status = telemetry.StatusMismatch
		}
	}

	telemetry.RecordDuration(ctx, tel, "sizeinfo.audit_duration", start,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSizeInfo),
		attribute.String(telemetry.AttrChannel, channelDir))
	tel.RecordCounter(ctx, "sizeinfo.audits", 1,
		attribute.String(telemetry.AttrStatus, status))
	return err
}

func (a *Auditor) check(channelDir string) error {
	gen := Generator{Filter: a.Filter}
	expected, err := gen.Generate(channelDir)
	if err != nil {
		return err
	}

	actual, err := ReadFile(filepath.Join(channelDir, SidecarFileName))
	if err != nil {
		return err
	}

	if !actual.Equal(expected) {
		return &MismatchError{Channel: channelDir, Expected: expected, Actual: actual}
	}
	return nil
}
