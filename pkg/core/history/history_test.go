package history_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelospk/osdfxp/pkg/core/history"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestStore(t *testing.T) (*history.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := history.NewStore(dir, quietLogger())
	require.NoError(t, err)
	return s, dir
}

func TestStore_Initialization(t *testing.T) {
	s, dir := setupTestStore(t)
	assert.Empty(t, s.List())
	assert.Equal(t, filepath.Join(dir, "history.json"), s.Path())
}

func TestStore_AddAndPersist(t *testing.T) {
	s, dir := setupTestStore(t)

	first, err := s.Add(history.Entry{Source: "a.srt", Filename: "a.dfxp", OutputPath: "/tmp/a.dfxp", Cues: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = s.Add(history.Entry{Source: "opensubtitles:777", Language: "en", Filename: "b.dfxp", Offset: 1500 * time.Millisecond})
	require.NoError(t, err)

	entries := s.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "b.dfxp", entries[0].Filename, "newest first")
	assert.Equal(t, "a.dfxp", entries[1].Filename)

	reloaded, err := history.NewStore(dir, quietLogger())
	require.NoError(t, err)
	got := reloaded.List()
	require.Len(t, got, 2)
	assert.Equal(t, 1500*time.Millisecond, got[0].Offset)
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, 3, got[1].Cues)
}

func TestStore_ListReturnsCopy(t *testing.T) {
	s, _ := setupTestStore(t)
	_, err := s.Add(history.Entry{Filename: "a.dfxp"})
	require.NoError(t, err)

	entries := s.List()
	entries[0].Filename = "changed"
	assert.Equal(t, "a.dfxp", s.List()[0].Filename)
}

func TestStore_RemoveAndClear(t *testing.T) {
	s, _ := setupTestStore(t)
	a, err := s.Add(history.Entry{Filename: "a.dfxp"})
	require.NoError(t, err)
	_, err = s.Add(history.Entry{Filename: "b.dfxp"})
	require.NoError(t, err)

	removed, err := s.Remove(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.dfxp", removed.Filename)
	require.Len(t, s.List(), 1)
	_, err = s.Remove(a.ID)
	assert.Error(t, err)

	require.NoError(t, s.Clear())
	assert.Empty(t, s.List())
	assert.NoError(t, s.Clear())
}

func TestStore_RemoveByPrefix(t *testing.T) {
	s, dir := setupTestStore(t)
	for _, id := range []string{"abc123", "abd456", "xyz789"} {
		_, err := s.Add(history.Entry{ID: id, Filename: id + ".dfxp"})
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		id     string
		errMsg string
	}{
		{"Ambiguous prefix", "ab", "matches several entries"},
		{"Unknown id", "nope", "no history entry"},
		{"Empty id", "", "empty history id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Remove(tt.id)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
	require.Len(t, s.List(), 3)

	removed, err := s.Remove("abd")
	require.NoError(t, err)
	assert.Equal(t, "abd456", removed.ID)

	reloaded, err := history.NewStore(dir, quietLogger())
	require.NoError(t, err)
	ids := []string{}
	for _, e := range reloaded.List() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"xyz789", "abc123"}, ids)
}

func TestStore_BoundedLength(t *testing.T) {
	s, _ := setupTestStore(t)
	for i := 0; i < history.MaxEntries+5; i++ {
		_, err := s.Add(history.Entry{Filename: "x.dfxp"})
		require.NoError(t, err)
	}
	assert.Len(t, s.List(), history.MaxEntries)
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte("{not json"), 0644))

	s, err := history.NewStore(dir, quietLogger())
	require.NoError(t, err, "a corrupt file is logged, not fatal")
	assert.Empty(t, s.List())
	assert.Error(t, s.Load())
}

func TestStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), nil, 0644))

	s, err := history.NewStore(dir, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, s.List())
}
