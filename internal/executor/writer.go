package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
)

// Writer is the external artifact-writer collaborator. It converts one raw
// session into an NWB file at destPath. The NWB/HDF5 encoding itself is a
// black box to this tool; the executor only needs the success/failure signal.
//
// Implementations must write only to destPath (a temporary path supplied by
// the executor) and must respect ctx for startup; in-flight conversions are
// allowed to finish on shutdown.
type Writer interface {
	WriteArtifact(ctx context.Context, session catalog.SessionRecord, destPath string) error
}

// CommandWriter invokes an external converter executable per session:
//
//	<converter> [extra args...] --session <source-dir> --output <dest-path>
//
// The converter owns all NWB/HDF5 encoding, raw-data parsing, and pose-file
// ingestion. A non-zero exit is reported as a write failure with the tail of
// stderr attached; an exit mentioning a missing modality maps onto
// ErrMissingModality so the failure is classified correctly.
type CommandWriter struct {
	// Converter is the path to the converter executable.
	Converter string
	// ExtraArgs are passed through before the session/output flags.
	ExtraArgs []string
}

// stderrTailBytes bounds how much converter stderr is kept for the outcome
// message.
const stderrTailBytes = 2048

func (w CommandWriter) WriteArtifact(ctx context.Context, session catalog.SessionRecord, destPath string) error {
	args := append([]string{}, w.ExtraArgs...)
	args = append(args, "--session", session.SourcePath, "--output", destPath)

	// context.WithoutCancel at the call site keeps the converter from being
	// killed mid-write; ctx here only gates startup.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("converter not started: %w", err)
	}

	cmd := exec.Command(w.Converter, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderrTail(stderr.Bytes())
		if strings.Contains(tail, "missing modality") {
			return fmt.Errorf("%w: %s", ErrMissingModality, tail)
		}
		if tail == "" {
			return fmt.Errorf("converter %s: %w", w.Converter, err)
		}
		return fmt.Errorf("converter %s: %w: %s", w.Converter, err, tail)
	}
	return nil
}

func stderrTail(out []byte) string {
	out = bytes.TrimSpace(out)
	if len(out) > stderrTailBytes {
		out = out[len(out)-stderrTailBytes:]
	}
	return string(out)
}
