// Package executor runs single plan items against the external artifact
// writer with atomic-replace discipline and per-item failure isolation.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
	"github.com/braidyn-bc/nwbpack/internal/plan"
)

// State is the terminal state of one plan item.
type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Outcome is the result of handling one plan item. Failures are values, not
// errors: Execute never lets a writer failure escape and abort sibling items.
type Outcome struct {
	SessionID    string        `json:"session_id"`
	Action       plan.Action   `json:"action"`
	State        State         `json:"state"`
	Kind         ErrorKind     `json:"error_kind,omitempty"`
	Message      string        `json:"message,omitempty"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
}

func failed(item plan.Item, kind ErrorKind, msg string) Outcome {
	return Outcome{SessionID: item.SessionID, Action: item.Action, State: StateFailed, Kind: kind, Message: msg}
}

// Option configures an Executor.
type Option func(*Executor)

// WithRequiredModalities overrides the modalities every session must provide
// before the writer is invoked.
func WithRequiredModalities(mods ...catalog.Modality) Option {
	return func(e *Executor) { e.required = mods }
}

// WithClock overrides time measurement for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor packages single sessions. Safe for concurrent use: it holds no
// mutable state, and distinct items touch distinct paths.
type Executor struct {
	writer     Writer
	outputRoot string
	runID      string
	required   []catalog.Modality
	now        func() time.Time
}

// DefaultRequiredModalities is the preflight requirement when none is
// configured: a session cannot be packaged without its raw behavior record.
var DefaultRequiredModalities = []catalog.Modality{catalog.ModalityBehavior}

// New builds an Executor writing artifacts under outputRoot. runID is
// embedded in temp-file names and sidecars so interrupted runs are
// attributable.
func New(writer Writer, outputRoot, runID string, opts ...Option) *Executor {
	e := &Executor{
		writer:     writer,
		outputRoot: outputRoot,
		runID:      runID,
		required:   DefaultRequiredModalities,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ArtifactPath returns the final artifact location for a session.
func (e *Executor) ArtifactPath(session catalog.SessionRecord) string {
	return filepath.Join(e.outputRoot, session.Animal, session.SessionID+catalog.ArtifactExt)
}

// Execute packages one create/refresh item.
//
// Discipline: the writer produces "<final>.nwb.tmp-<runid>"; only after it
// reports success are the artifact and then its sidecar renamed into place.
// A crash at any point leaves the prior artifact (if any) intact — at worst
// a leftover temp file surfaces as partial on the next scan and triggers a
// refresh. Re-executing an item with unchanged inputs is safe and converges
// on the same artifact fingerprint.
//
// Execute returns a failure Outcome rather than an error for every writer
// problem, including panics from misbehaving converter wrappers.
func (e *Executor) Execute(ctx context.Context, item plan.Item, session catalog.SessionRecord) (out Outcome) {
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			out = failed(item, KindWriteFailure, fmt.Sprintf("writer panicked: %v", r))
		}
		out.Duration = e.now().Sub(start)
	}()

	if !item.Executable() {
		return failed(item, KindWriteFailure, fmt.Sprintf("action %q is not executable", item.Action))
	}

	for _, m := range e.required {
		if !session.HasModality(m) {
			return failed(item, KindMissingModality,
				MissingModalityError(session.SessionID, string(m)).Error())
		}
	}

	final := e.ArtifactPath(session)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return failed(item, KindWriteFailure, fmt.Sprintf("create output dir: %v", err))
	}

	tmp := final + catalog.TempInfix + e.runID
	defer os.Remove(tmp) // no-op after a successful rename

	slog.Debug("packaging session", "session", session.SessionID, "action", item.Action, "tmp", tmp)
	if err := e.writer.WriteArtifact(ctx, session, tmp); err != nil {
		return failed(item, classify(err), err.Error())
	}

	if err := e.commit(session, tmp, final); err != nil {
		return failed(item, KindWriteFailure, err.Error())
	}

	return Outcome{
		SessionID:    session.SessionID,
		Action:       item.Action,
		State:        StateSucceeded,
		ArtifactPath: final,
	}
}

// commit atomically replaces the artifact and then its sidecar. The sidecar
// is renamed last: if the process dies between the two renames, the artifact
// reads as partial (stale sidecar is overwritten on the next refresh).
func (e *Executor) commit(session catalog.SessionRecord, tmp, final string) error {
	sidecarTmp := catalog.SidecarPath(final) + catalog.TempInfix + e.runID
	sc := catalog.Sidecar{
		SessionID:         session.SessionID,
		SourceFingerprint: session.Fingerprint,
		WrittenAt:         e.now().UTC(),
		RunID:             e.runID,
	}
	if err := catalog.WriteSidecar(sidecarTmp, sc); err != nil {
		return fmt.Errorf("write sidecar: %v", err)
	}
	defer os.Remove(sidecarTmp)

	// Drop the old sidecar first so a crash mid-commit can only leave the
	// artifact looking partial, never complete-with-stale-fingerprint.
	if err := os.Remove(catalog.SidecarPath(final)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale sidecar: %v", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("replace artifact: %v", err)
	}
	if err := os.Rename(sidecarTmp, catalog.SidecarPath(final)); err != nil {
		return fmt.Errorf("replace sidecar: %v", err)
	}
	return nil
}
