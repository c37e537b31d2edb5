package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSessionFixture lays out <root>/<animal>/<id>/ with the given modality
// subdirectories, each containing one dummy file.
func writeSessionFixture(t *testing.T, root, animal, id string, modalities ...string) string {
	t.Helper()
	dir := filepath.Join(root, animal, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, m := range modalities {
		sub := filepath.Join(dir, m)
		require.NoError(t, os.MkdirAll(sub, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "data.bin"), []byte(m), 0o644))
	}
	return dir
}

func TestScanSessions_Layout(t *testing.T) {
	root := t.TempDir()
	writeSessionFixture(t, root, "m12", "m12_240115_task", "behavior", "imaging")
	writeSessionFixture(t, root, "m12", "m12_240116_rest", "behavior")
	writeSessionFixture(t, root, "m07", "m07_240201_ss", "imaging")

	sessions, err := ScanSessions(root, Filter{})
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	byID := map[string]SessionRecord{}
	for _, s := range sessions {
		byID[s.SessionID] = s
	}

	task, ok := byID["m12_240115_task"]
	require.True(t, ok)
	assert.Equal(t, "m12", task.Animal)
	assert.Equal(t, SessionTask, task.Type)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), task.Date)
	assert.Equal(t, []Modality{ModalityBehavior, ModalityImaging}, task.Modalities)
	assert.NotEmpty(t, task.Fingerprint)

	rest := byID["m12_240116_rest"]
	assert.Equal(t, SessionResting, rest.Type)
	assert.True(t, rest.HasModality(ModalityBehavior))
	assert.False(t, rest.HasModality(ModalityImaging))
}

func TestScanSessions_SkipsNonConformingDirs(t *testing.T) {
	root := t.TempDir()
	writeSessionFixture(t, root, "m12", "m12_240115_task", "behavior")
	// Wrong type suffix, malformed date, and a stray file.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "m12", "m12_240115_bogus"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "m12", "m12_9999_task"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	sessions, err := ScanSessions(root, Filter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "m12_240115_task", sessions[0].SessionID)
}

func TestScanSessions_MissingRootIsFatal(t *testing.T) {
	_, err := ScanSessions(filepath.Join(t.TempDir(), "nope"), Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestScanSessions_UnderscoreAnimalName(t *testing.T) {
	root := t.TempDir()
	writeSessionFixture(t, root, "vgat_3", "vgat_3_240115_task", "behavior")

	sessions, err := ScanSessions(root, Filter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "vgat_3", sessions[0].Animal)
	assert.Equal(t, SessionTask, sessions[0].Type)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("m12, m07", "240101", "240131", "task,rest")
	require.NoError(t, err)
	assert.Equal(t, []string{"m12", "m07"}, f.Animals)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), f.To)
	assert.Equal(t, []SessionType{SessionTask, SessionResting}, f.Types)
}

func TestParseFilter_Errors(t *testing.T) {
	_, err := ParseFilter("", "2024-01-01", "", "")
	assert.Error(t, err)

	_, err = ParseFilter("", "", "", "sleep")
	assert.Error(t, err)
}

func TestFilter_Matches(t *testing.T) {
	rec := SessionRecord{
		Animal: "m12",
		Date:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Type:   SessionTask,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty matches", Filter{}, true},
		{"animal match", Filter{Animals: []string{"m12"}}, true},
		{"animal mismatch", Filter{Animals: []string{"m07"}}, false},
		{"in date range", Filter{From: date(2024, 1, 1), To: date(2024, 1, 31)}, true},
		{"before range", Filter{From: date(2024, 2, 1)}, false},
		{"after range", Filter{To: date(2024, 1, 14)}, false},
		{"boundary inclusive", Filter{From: date(2024, 1, 15), To: date(2024, 1, 15)}, true},
		{"type match", Filter{Types: []SessionType{SessionTask}}, true},
		{"type mismatch", Filter{Types: []SessionType{SessionResting}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestScanSessions_FilterApplied(t *testing.T) {
	root := t.TempDir()
	writeSessionFixture(t, root, "m12", "m12_240115_task", "behavior")
	writeSessionFixture(t, root, "m07", "m07_240115_task", "behavior")

	sessions, err := ScanSessions(root, Filter{Animals: []string{"m07"}})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "m07", sessions[0].Animal)
}
