package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"weibocrawl/pkg/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), logger.NewNopLogger())
}

func TestLoadMissing(t *testing.T) {
	m := newTestManager(t)

	j, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.False(t, m.Exists())
}

func TestJournalLifecycle(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Begin([]string{"2", "1"}))
	assert.True(t, m.Exists())

	require.NoError(t, m.RecordProfile("2", ProfileSaved, 200, nil))
	require.NoError(t, m.RecordProfile("1", ProfileFailed, 403, errors.New("ok=0")))
	require.NoError(t, m.RecordPosts("2", PostsEntry{Pages: 3, Saved: 20, Skipped: 1, Stop: "not_ok"}))
	require.NoError(t, m.Finish(true))

	j, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, j)

	assert.Equal(t, currentVersion, j.Version)
	assert.True(t, j.Completed)
	require.NotNil(t, j.FinishedAt)
	assert.Equal(t, []string{"2", "1"}, j.AccountIDs())

	assert.Equal(t, ProfileSaved, j.Accounts["2"].Profile)
	assert.Equal(t, "ok=0", j.Accounts["1"].ProfileError)
	assert.Equal(t, 403, j.Accounts["1"].ProfileStatus)
	require.NotNil(t, j.Accounts["2"].Posts)
	assert.Equal(t, 20, j.Accounts["2"].Posts.Saved)
	assert.Equal(t, "not_ok", j.Accounts["2"].Posts.Stop)
	assert.Nil(t, j.Accounts["1"].Posts)

	_, err = os.Stat(m.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestBeginReplacesPreviousRun(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Begin([]string{"1"}))
	require.NoError(t, m.RecordProfile("1", ProfileSaved, 200, nil))
	require.NoError(t, m.Finish(true))

	require.NoError(t, m.Begin([]string{"3"}))

	j, err := m.Load()
	require.NoError(t, err)
	assert.False(t, j.Completed)
	assert.Nil(t, j.FinishedAt)
	assert.Equal(t, []string{"3"}, j.AccountIDs())
}

func TestRecordUnknownAccountAppends(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Begin(nil))
	require.NoError(t, m.RecordPosts("9", PostsEntry{Stop: "max_pages"}))

	j, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, j.AccountIDs())
}

func TestRecordBeforeBegin(t *testing.T) {
	m := newTestManager(t)

	assert.Error(t, m.RecordProfile("1", ProfileSaved, 200, nil))
	assert.Error(t, m.Finish(false))
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644))

	_, err := NewManager(dir, logger.NewNopLogger()).Load()
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Begin([]string{"1"}))
	require.NoError(t, m.Delete())
	assert.False(t, m.Exists())
	assert.NoError(t, m.Delete())
}
