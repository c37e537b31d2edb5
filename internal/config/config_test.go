package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, []string{"behavior"}, cfg.RequiredModalities)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nwbpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session_root: /data/sessions
output_root: /data/nwb
converter: /usr/local/bin/bdbc-convert
converter_args: ["--downsampled"]
history_db: /data/nwbpack-history.db
concurrency: 4
required_modalities: [behavior, imaging]
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/sessions", cfg.SessionRoot)
	assert.Equal(t, "/data/nwb", cfg.OutputRoot)
	assert.Equal(t, "/usr/local/bin/bdbc-convert", cfg.Converter)
	assert.Equal(t, []string{"--downsampled"}, cfg.ConverterArgs)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []catalog.Modality{catalog.ModalityBehavior, catalog.ModalityImaging}, cfg.Required())
}

func TestLoadFile_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nwbpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sesion_root: /oops\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_EmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nwbpack.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Concurrency)
}

func TestResolve_DefaultsWhenNothingSet(t *testing.T) {
	cfg, err := Resolve("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nwbpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_root: /from-file\nconcurrency: 2\n"), 0o644))

	cfg, err := Resolve(path, envMap(map[string]string{
		EnvSessionRoot: "/from-env",
		EnvConcurrency: "8",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/from-env", cfg.SessionRoot)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestResolve_BadConcurrencyEnv(t *testing.T) {
	_, err := Resolve("", envMap(map[string]string{EnvConcurrency: "many"}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.SessionRoot = "/data/sessions"
	cfg.OutputRoot = "/data/nwb"
	cfg.Converter = "/bin/convert"

	assert.NoError(t, cfg.Validate(true))

	noConverter := cfg
	noConverter.Converter = ""
	assert.Error(t, noConverter.Validate(true))
	assert.NoError(t, noConverter.Validate(false), "find-missing runs without a converter")

	noRoots := Default()
	err := noRoots.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session root")
	assert.Contains(t, err.Error(), "output root")

	badMod := cfg
	badMod.RequiredModalities = []string{"telepathy"}
	assert.Error(t, badMod.Validate(true))

	badConc := cfg
	badConc.Concurrency = 0
	assert.Error(t, badConc.Validate(true))
}
