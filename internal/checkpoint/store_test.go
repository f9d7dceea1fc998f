package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"koosseis/internal"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "results.json"), filepath.Join(dir, "failed.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestPersistAndLoad(t *testing.T) {
	s, dir := openTemp(t)

	results := []internal.Success{{
		ID:              "Tüür_Flöödikontsert",
		Composer:        "Erkki-Sven Tüür",
		Title:           "Flöödikontsert",
		WorkID:          "Tüür_Flöödikontsert",
		OriginalText:    "flööt & orkester",
		Instrumentation: json.RawMessage(`{"category":"orchestra"}`),
	}}
	failed := []internal.Failure{{ID: "x", Title: "Ooper", Kind: internal.FailureNoCandidate, Error: "no instrumentation text extracted"}}
	require.NoError(t, s.Persist(results, failed))

	blob, err := os.ReadFile(filepath.Join(dir, "results.json"))
	require.NoError(t, err)
	assert.Contains(t, string(blob), "flööt & orkester")
	assert.True(t, strings.HasPrefix(string(blob), "[\n  {"))

	gotResults, gotFailed, err := s.Load()
	require.NoError(t, err)
	require.Len(t, gotResults, 1)
	assert.Equal(t, "Tüür_Flöödikontsert", gotResults[0].ID)
	assert.JSONEq(t, `{"category":"orchestra"}`, string(gotResults[0].Instrumentation))
	assert.Equal(t, failed, gotFailed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), e.Name())
	}
}

func TestPersistEmptyWritesArrays(t *testing.T) {
	s, dir := openTemp(t)
	require.NoError(t, s.Persist(nil, nil))

	blob, err := os.ReadFile(filepath.Join(dir, "failed.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(blob))
}

func TestPersistOverwrites(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.Persist([]internal.Success{{ID: "a"}, {ID: "b"}}, nil))
	require.NoError(t, s.Persist([]internal.Success{{ID: "c"}}, nil))

	results, failed, err := s.Load()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
	assert.Empty(t, failed)
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	results, failed, err := Read(filepath.Join(dir, "nope.json"), filepath.Join(dir, "nada.json"))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, failed)
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))
	_, _, err := Read(path, filepath.Join(dir, "failed.json"))
	assert.Error(t, err)
}

func TestOpenIsExclusive(t *testing.T) {
	s, dir := openTemp(t)

	_, err := Open(filepath.Join(dir, "results.json"), filepath.Join(dir, "failed.json"))
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, s.Close())
	again, err := Open(filepath.Join(dir, "results.json"), filepath.Join(dir, "failed.json"))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestPersistFailsWhenDirectoryVanishes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "out")
	s, err := Open(filepath.Join(sub, "results.json"), filepath.Join(sub, "failed.json"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.RemoveAll(sub))
	assert.Error(t, s.Persist(nil, nil))
}

func TestPersistWritesFailuresBeforeResults(t *testing.T) {
	s, dir := openTemp(t)
	require.NoError(t, s.Persist([]internal.Success{{ID: "a"}}, nil))

	// A directory in place of results.json makes the second rename fail.
	resultsPath := filepath.Join(dir, "results.json")
	require.NoError(t, os.Remove(resultsPath))
	require.NoError(t, os.MkdirAll(filepath.Join(resultsPath, "blocker"), 0o755))

	err := s.Persist([]internal.Success{{ID: "a"}}, []internal.Failure{{ID: "b", Kind: internal.FailureParse, Error: "bad json"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write results")

	_, failed, err := Read(filepath.Join(dir, "missing.json"), filepath.Join(dir, "failed.json"))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)
}
