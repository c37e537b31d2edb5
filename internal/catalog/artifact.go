package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ArtifactExt is the extension of packaged session files.
	ArtifactExt = ".nwb"
	// SidecarSuffix is appended to an artifact path to name its metadata
	// sidecar, e.g. "m12_240115_task.nwb.meta.json".
	SidecarSuffix = ".meta.json"
	// TempInfix marks in-progress writes, e.g. "m12_240115_task.nwb.tmp-<runid>".
	TempInfix = ".tmp-"
)

// Sidecar is the metadata written next to each artifact on a successful
// packaging run. The NWB payload itself is opaque to this tool, so the
// creation-time fingerprint has to live outside it.
type Sidecar struct {
	SessionID         string    `json:"session_id"`
	SourceFingerprint string    `json:"source_fingerprint"`
	WrittenAt         time.Time `json:"written_at"`
	RunID             string    `json:"run_id,omitempty"`
}

// SidecarPath returns the sidecar path for an artifact path.
func SidecarPath(artifactPath string) string {
	return artifactPath + SidecarSuffix
}

// ReadSidecar loads and parses an artifact's sidecar.
func ReadSidecar(artifactPath string) (Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(artifactPath))
	if err != nil {
		return Sidecar{}, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return Sidecar{}, fmt.Errorf("parse sidecar for %s: %w", artifactPath, err)
	}
	return sc, nil
}

// WriteSidecar marshals the sidecar to path.
func WriteSidecar(path string, sc Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ScanArtifacts enumerates packaged outputs under root.
//
// Expected layout: <root>/<animal>/<session-id>.nwb plus sidecar. An artifact
// without a readable sidecar is reported as partial; an artifact whose
// sidecar fails to parse is corrupt. Leftover temp files from interrupted
// writes surface as partial records so the planner schedules a refresh.
//
// Returns ErrStorageUnavailable (wrapped) if root cannot be read. A missing
// root is treated as an empty catalog (first run against a fresh output
// store), not an error.
func ScanArtifacts(root string) ([]ArtifactRecord, error) {
	animals, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: output root %s: %v", ErrStorageUnavailable, root, err)
	}

	var artifacts []ArtifactRecord
	for _, animalEntry := range animals {
		if !animalEntry.IsDir() {
			continue
		}
		animalDir := filepath.Join(root, animalEntry.Name())
		entries, err := os.ReadDir(animalDir)
		if err != nil {
			return nil, fmt.Errorf("%w: output dir %s: %v", ErrStorageUnavailable, animalDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			rec, ok, err := classifyArtifact(animalDir, entry.Name())
			if err != nil {
				return nil, err
			}
			if ok {
				artifacts = append(artifacts, rec)
			}
		}
	}
	return artifacts, nil
}

// classifyArtifact builds an ArtifactRecord from one output-directory entry.
// Sidecar files themselves are not records; everything else resolves to a
// complete, partial, or corrupt artifact.
func classifyArtifact(dir, name string) (ArtifactRecord, bool, error) {
	path := filepath.Join(dir, name)

	// Interrupted write: "<id>.nwb.tmp-<runid>".
	if idx := strings.Index(name, ArtifactExt+TempInfix); idx > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return ArtifactRecord{}, false, fmt.Errorf("%w: stat %s: %v", ErrStorageUnavailable, path, err)
		}
		return ArtifactRecord{
			SessionID:    normalizeID(name[:idx]),
			ArtifactPath: path,
			Status:       StatusPartial,
			ModTime:      info.ModTime(),
		}, true, nil
	}

	if strings.HasSuffix(name, SidecarSuffix) || !strings.HasSuffix(name, ArtifactExt) {
		return ArtifactRecord{}, false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return ArtifactRecord{}, false, fmt.Errorf("%w: stat %s: %v", ErrStorageUnavailable, path, err)
	}
	rec := ArtifactRecord{
		SessionID:    normalizeID(strings.TrimSuffix(name, ArtifactExt)),
		ArtifactPath: path,
		ModTime:      info.ModTime(),
	}

	sc, err := ReadSidecar(path)
	switch {
	case err == nil:
		rec.Status = StatusComplete
		rec.SourceFingerprint = sc.SourceFingerprint
	case os.IsNotExist(err):
		rec.Status = StatusPartial
	default:
		rec.Status = StatusCorrupt
	}
	return rec, true, nil
}
