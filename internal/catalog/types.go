package catalog

import (
	"time"
)

// Modality identifies one raw data stream recorded during a session.
type Modality string

const (
	// ModalityBehavior is the raw DAQ behavior recording.
	ModalityBehavior Modality = "behavior"
	// ModalityImaging is the mesoscope imaging stack.
	ModalityImaging Modality = "imaging"
	// ModalityVideos are the behavior camera videos.
	ModalityVideos Modality = "videos"
	// ModalityTracking is the pose-estimation output (body/face/eye keypoints).
	ModalityTracking Modality = "tracking"
	// ModalityPupil is the pupil-fitting output.
	ModalityPupil Modality = "pupil"
)

// SessionType categorizes a session by its experimental protocol.
type SessionType string

const (
	SessionTask    SessionType = "task"
	SessionResting SessionType = "rest"
	SessionSensory SessionType = "ss"
)

// KnownSessionTypes lists the session types a source directory may contain.
var KnownSessionTypes = []SessionType{SessionTask, SessionResting, SessionSensory}

// SessionRecord is an immutable snapshot of one raw experiment session.
//
// Records are produced by ScanSessions and never mutated afterwards. The
// fingerprint is an opaque comparable value over the session's raw files;
// two scans of unchanged data yield the same fingerprint.
type SessionRecord struct {
	// SessionID is the stable unique key, "<animal>_<YYMMDD>_<type>",
	// NFC-normalized so scans from differently-normalizing filesystems
	// compare equal.
	SessionID string

	Animal string
	Date   time.Time
	Type   SessionType

	// SourcePath is the session's raw-data directory.
	SourcePath string

	// Fingerprint summarizes the raw-data state for staleness detection.
	Fingerprint string

	// Modalities lists the data streams present in the session directory,
	// sorted for deterministic comparison.
	Modalities []Modality
}

// HasModality reports whether the session directory contains the given stream.
func (s SessionRecord) HasModality(m Modality) bool {
	for _, have := range s.Modalities {
		if have == m {
			return true
		}
	}
	return false
}

// ArtifactStatus describes the trustworthiness of a packaged artifact.
type ArtifactStatus string

const (
	// StatusComplete means the artifact and its sidecar were written and
	// renamed into place by a successful packaging run.
	StatusComplete ArtifactStatus = "complete"
	// StatusPartial means the artifact is missing its sidecar or is a
	// leftover temporary file from an interrupted write.
	StatusPartial ArtifactStatus = "partial"
	// StatusCorrupt means the sidecar exists but cannot be parsed.
	StatusCorrupt ArtifactStatus = "corrupt"
)

// ArtifactRecord is an immutable snapshot of one packaged NWB output.
type ArtifactRecord struct {
	// SessionID links the artifact back to the session it was built from.
	SessionID string

	ArtifactPath string

	// SourceFingerprint is the session fingerprint recorded when the
	// artifact was written. Empty for partial or corrupt artifacts.
	SourceFingerprint string

	Status ArtifactStatus

	// ModTime orders duplicate artifacts for the same session (newest wins).
	ModTime time.Time
}
