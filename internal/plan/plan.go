// Package plan implements the session-to-artifact reconciliation engine.
//
// Plan is pure and total: given the same two catalog snapshots it always
// returns the same ordered plan. It performs no I/O and never mutates its
// inputs, so it can be exercised exhaustively in tests and reused by both
// the packaging and the find-missing commands.
package plan

import (
	"fmt"
	"sort"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
)

// Action is the decision taken for one session or orphan artifact.
type Action string

const (
	// ActionSkip means a complete, up-to-date artifact already exists.
	ActionSkip Action = "skip"
	// ActionCreate means no artifact exists for the session.
	ActionCreate Action = "create"
	// ActionRefresh means the artifact is stale, partial, or corrupt.
	ActionRefresh Action = "refresh"
	// ActionReportOrphan means an artifact has no matching session. Orphans
	// are reported, never deleted; deletion is a human decision.
	ActionReportOrphan Action = "report_orphan"
)

// Item is one decision unit. Items are transient: produced fresh on every
// run and never persisted.
type Item struct {
	SessionID string `json:"session_id"`
	Action    Action `json:"action"`
	Reason    string `json:"reason"`
}

// Executable reports whether the item requires a packaging run.
func (it Item) Executable() bool {
	return it.Action == ActionCreate || it.Action == ActionRefresh
}

// Warning records a data-integrity inconsistency found while planning.
// Warnings do not abort the run.
type Warning struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Option configures Plan.
type Option func(*options)

type options struct {
	force bool
}

// WithForce turns would-be skips into refreshes, ignoring existing
// up-to-date artifacts.
func WithForce() Option {
	return func(o *options) { o.force = true }
}

// Plan reconciles the session catalog against the artifact catalog.
//
// For each session: no artifact means create; a complete artifact whose
// creation fingerprint equals the session's current fingerprint means skip;
// a fingerprint mismatch means refresh; a partial or corrupt artifact means
// refresh regardless of fingerprint, since a damaged artifact is never
// trusted. Artifacts without a matching session become report_orphan items.
//
// Duplicate artifacts for one session are a data-integrity inconsistency:
// the newest by modification time wins and the rest surface as warnings so
// every session id appears in the plan exactly once.
//
// Output is sorted by session id ascending for deterministic reporting;
// input ordering carries no meaning.
func Plan(sessions []catalog.SessionRecord, artifacts []catalog.ArtifactRecord, opts ...Option) ([]Item, []Warning) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	byID, warnings := indexArtifacts(artifacts)

	items := make([]Item, 0, len(sessions)+len(byID))
	seen := make(map[string]bool, len(sessions))
	for _, sess := range sessions {
		if seen[sess.SessionID] {
			warnings = append(warnings, Warning{
				SessionID: sess.SessionID,
				Message:   "duplicate session record ignored",
			})
			continue
		}
		seen[sess.SessionID] = true
		items = append(items, decide(sess, byID[sess.SessionID], o))
	}

	for id, art := range byID {
		if seen[id] {
			continue
		}
		items = append(items, Item{
			SessionID: id,
			Action:    ActionReportOrphan,
			Reason:    fmt.Sprintf("artifact %s has no matching session", art.ArtifactPath),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].SessionID < items[j].SessionID })
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].SessionID != warnings[j].SessionID {
			return warnings[i].SessionID < warnings[j].SessionID
		}
		return warnings[i].Message < warnings[j].Message
	})
	return items, warnings
}

// decide maps one session and its (possibly absent) artifact to an action.
func decide(sess catalog.SessionRecord, art *catalog.ArtifactRecord, o options) Item {
	switch {
	case art == nil:
		return Item{sess.SessionID, ActionCreate, "no artifact exists"}
	case art.Status != catalog.StatusComplete:
		return Item{sess.SessionID, ActionRefresh, fmt.Sprintf("artifact is %s", art.Status)}
	case art.SourceFingerprint != sess.Fingerprint:
		return Item{sess.SessionID, ActionRefresh, "raw data changed since artifact was written"}
	case o.force:
		return Item{sess.SessionID, ActionRefresh, "forced refresh"}
	default:
		return Item{sess.SessionID, ActionSkip, "artifact is complete and up to date"}
	}
}

// indexArtifacts keys artifacts by session id with newest-wins resolution.
// Ties on modification time break on artifact path so the winner does not
// depend on catalog enumeration order.
func indexArtifacts(artifacts []catalog.ArtifactRecord) (map[string]*catalog.ArtifactRecord, []Warning) {
	byID := make(map[string]*catalog.ArtifactRecord, len(artifacts))
	var warnings []Warning
	for i := range artifacts {
		art := &artifacts[i]
		prev, ok := byID[art.SessionID]
		if !ok {
			byID[art.SessionID] = art
			continue
		}
		winner, loser := prev, art
		if art.ModTime.After(prev.ModTime) ||
			(art.ModTime.Equal(prev.ModTime) && art.ArtifactPath > prev.ArtifactPath) {
			winner, loser = art, prev
		}
		byID[art.SessionID] = winner
		warnings = append(warnings, Warning{
			SessionID: art.SessionID,
			Message: fmt.Sprintf("duplicate artifact %s superseded by %s",
				loser.ArtifactPath, winner.ArtifactPath),
		})
	}
	return byID, warnings
}

// Summary aggregates plan items by action.
type Summary struct {
	Create  int `json:"create"`
	Refresh int `json:"refresh"`
	Skip    int `json:"skip"`
	Orphans int `json:"orphans"`
}

// Summarize counts plan items per action.
func Summarize(items []Item) Summary {
	var s Summary
	for _, it := range items {
		switch it.Action {
		case ActionCreate:
			s.Create++
		case ActionRefresh:
			s.Refresh++
		case ActionSkip:
			s.Skip++
		case ActionReportOrphan:
			s.Orphans++
		}
	}
	return s
}

// Total returns the number of items summarized.
func (s Summary) Total() int {
	return s.Create + s.Refresh + s.Skip + s.Orphans
}
