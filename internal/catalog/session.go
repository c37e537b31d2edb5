package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// sessionDateLayout is the YYMMDD format used in session directory names
// and in CLI date filters.
const sessionDateLayout = "060102"

// modalityDirs maps well-known session subdirectories to modalities.
var modalityDirs = map[string]Modality{
	"behavior": ModalityBehavior,
	"imaging":  ModalityImaging,
	"videos":   ModalityVideos,
	"tracking": ModalityTracking,
	"pupil":    ModalityPupil,
}

// Filter restricts a session scan. Zero-value fields match everything.
type Filter struct {
	// Animals limits the scan to the named animals.
	Animals []string
	// From and To bound the session date (inclusive); zero means open.
	From time.Time
	To   time.Time
	// Types limits the scan to the named session types.
	Types []SessionType
}

// Matches reports whether the session passes the filter.
func (f Filter) Matches(s SessionRecord) bool {
	if len(f.Animals) > 0 {
		found := false
		for _, a := range f.Animals {
			if a == s.Animal {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && s.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.Date.After(f.To) {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == s.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ParseFilter builds a Filter from CLI-style strings: comma-separated animal
// and type lists, YYMMDD date bounds. Empty strings leave the field open.
func ParseFilter(animals, from, to, types string) (Filter, error) {
	var f Filter
	if animals != "" {
		for _, a := range strings.Split(animals, ",") {
			f.Animals = append(f.Animals, strings.TrimSpace(a))
		}
	}
	if from != "" {
		t, err := time.Parse(sessionDateLayout, from)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid --from date %q: expected YYMMDD", from)
		}
		f.From = t
	}
	if to != "" {
		t, err := time.Parse(sessionDateLayout, to)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid --to date %q: expected YYMMDD", to)
		}
		f.To = t
	}
	if types != "" {
		for _, raw := range strings.Split(types, ",") {
			st := SessionType(strings.TrimSpace(raw))
			if !isKnownSessionType(st) {
				return Filter{}, fmt.Errorf("invalid session type %q: must be one of %v", raw, KnownSessionTypes)
			}
			f.Types = append(f.Types, st)
		}
	}
	return f, nil
}

func isKnownSessionType(t SessionType) bool {
	for _, known := range KnownSessionTypes {
		if known == t {
			return true
		}
	}
	return false
}

// ScanSessions enumerates raw sessions under root, applying the filter.
//
// Expected layout: <root>/<animal>/<animal>_<YYMMDD>_<type>/. Directories
// that do not follow the naming convention are skipped (logged at debug
// level), not treated as errors. Returned order is not significant; the
// reconciliation engine sorts by session id before emitting a plan.
//
// Returns ErrStorageUnavailable (wrapped) if root cannot be read.
func ScanSessions(root string, filter Filter) ([]SessionRecord, error) {
	animals, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: session root %s: %v", ErrStorageUnavailable, root, err)
	}

	var sessions []SessionRecord
	for _, animalEntry := range animals {
		if !animalEntry.IsDir() {
			continue
		}
		animalDir := filepath.Join(root, animalEntry.Name())
		entries, err := os.ReadDir(animalDir)
		if err != nil {
			return nil, fmt.Errorf("%w: animal dir %s: %v", ErrStorageUnavailable, animalDir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			rec, ok := parseSessionDir(animalDir, entry.Name())
			if !ok {
				slog.Debug("skipping non-session directory", "dir", filepath.Join(animalDir, entry.Name()))
				continue
			}
			if !filter.Matches(rec) {
				continue
			}
			fp, err := FingerprintDir(rec.SourcePath)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
			rec.Fingerprint = fp
			rec.Modalities = detectModalities(rec.SourcePath)
			sessions = append(sessions, rec)
		}
	}
	return sessions, nil
}

// parseSessionDir interprets a directory name as "<animal>_<YYMMDD>_<type>".
// Animal names may themselves contain underscores, so the date and type are
// taken from the right.
func parseSessionDir(animalDir, name string) (SessionRecord, bool) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return SessionRecord{}, false
	}
	st := SessionType(parts[len(parts)-1])
	if !isKnownSessionType(st) {
		return SessionRecord{}, false
	}
	date, err := time.Parse(sessionDateLayout, parts[len(parts)-2])
	if err != nil {
		return SessionRecord{}, false
	}
	animal := strings.Join(parts[:len(parts)-2], "_")
	if animal == "" {
		return SessionRecord{}, false
	}
	return SessionRecord{
		SessionID:  normalizeID(name),
		Animal:     animal,
		Date:       date,
		Type:       st,
		SourcePath: filepath.Join(animalDir, name),
	}, true
}

// detectModalities reports which well-known data streams are present as
// non-empty subdirectories of the session directory.
func detectModalities(sessionDir string) []Modality {
	var present []Modality
	for dir, m := range modalityDirs {
		entries, err := os.ReadDir(filepath.Join(sessionDir, dir))
		if err != nil || len(entries) == 0 {
			continue
		}
		present = append(present, m)
	}
	sort.Slice(present, func(i, j int) bool { return present[i] < present[j] })
	return present
}
