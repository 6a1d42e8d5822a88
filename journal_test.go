package bloomstore

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalAppendAndReplay(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	j, err := OpenJournal(setupTestLogger(), dir, true)
	require.NoError(t, err, "Failed to open journal")

	records := []Record{
		{UserID: 1, ItemIDs: []int64{1, 2, 3}},
		{UserID: -7, ItemIDs: []int64{-1, 1 << 40}},
		{UserID: 2, ItemIDs: []int64{0}},
	}
	for i, rec := range records {
		idx, err := j.Append(rec)
		require.NoError(t, err, "Append should succeed")
		assert.Equal(t, uint64(i+1), idx)
	}
	require.NoError(t, j.Close())

	j, err = OpenJournal(setupTestLogger(), dir, true)
	require.NoError(t, err, "Failed to reopen journal")
	defer j.Close()
	assert.Equal(t, uint64(len(records)), j.LastAppended())

	var got []Record
	n, err := j.Replay(func(rec Record) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(records), n)
	assert.Equal(t, records, got)
}

func TestJournalEmptyReplay(t *testing.T) {
	j, err := OpenJournal(nil, t.TempDir(), true)
	require.NoError(t, err)
	defer j.Close()

	n, err := j.Replay(func(Record) error {
		t.Fatal("no records expected")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJournalReplayStopsOnCallbackError(t *testing.T) {
	j, err := OpenJournal(nil, t.TempDir(), true)
	require.NoError(t, err)
	defer j.Close()

	for i := int64(0); i < 3; i++ {
		_, err := j.Append(Record{UserID: i, ItemIDs: []int64{i}})
		require.NoError(t, err)
	}

	stop := errors.New("stop")
	n, err := j.Replay(func(rec Record) error {
		if rec.UserID == 1 {
			return stop
		}
		return nil
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, n)
}

func TestJournalClosed(t *testing.T) {
	j, err := OpenJournal(nil, t.TempDir(), true)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "Close should be idempotent")

	_, err = j.Append(Record{UserID: 1, ItemIDs: []int64{1}})
	assert.True(t, errors.Is(err, ErrJournalClosed))
	_, err = j.Replay(func(Record) error { return nil })
	assert.True(t, errors.Is(err, ErrJournalClosed))
}

func TestFeatureStoreRecoversFromJournal(t *testing.T) {
	opts := DefaultOptions()
	opts.FilterSize = 800
	opts.HashFunctions = 10
	opts.JournalDir = t.TempDir()
	opts.JournalNoSync = true

	s, err := Open(setupTestLogger(), opts)
	require.NoError(t, err)
	for user := int64(0); user < 10; user++ {
		require.NoError(t, s.Add(user, itemRange(user, 10)))
	}
	want := make(map[int64][]int64)
	for user := int64(0); user < 12; user++ {
		want[user] = s.Retrieve(user)
	}
	before := s.Stats()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	reopened, err := Open(setupTestLogger(), opts)
	require.NoError(t, err)
	defer reopened.Close()

	for user, items := range want {
		assert.Equal(t, items, reopened.Retrieve(user), "user %d", user)
	}
	after := reopened.Stats()
	assert.Equal(t, before.UniverseSize, after.UniverseSize)
	assert.Equal(t, before.FillRatio, after.FillRatio)
	assert.Equal(t, before.PairsAdded, after.PairsAdded)
	assert.True(t, after.JournalingEnabled)
	assert.Equal(t, uint64(10), after.JournalLastIndex)
}

func TestOpenFailsOnCorruptJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(setupTestLogger(), dir, true)
	require.NoError(t, err)
	_, err = j.Append(Record{UserID: 1, ItemIDs: []int64{1}})
	require.NoError(t, err)
	// truncated varint after a valid user tag
	require.NoError(t, j.log.Write(2, []byte{0x08, 0x80}))
	require.NoError(t, j.Close())

	opts := DefaultOptions()
	opts.FilterSize = 256
	opts.HashFunctions = 3
	opts.JournalDir = dir
	opts.JournalNoSync = true

	s, err := Open(setupTestLogger(), opts)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
	assert.Contains(t, err.Error(), "journal index 2")

	// the failed open released the journal
	j, err = OpenJournal(nil, dir, true)
	require.NoError(t, err, "Journal should be reopenable")
	assert.Equal(t, uint64(2), j.LastAppended())
	require.NoError(t, j.Close())
}

func TestFeatureStoreAddFailsWhenJournalClosed(t *testing.T) {
	j, err := OpenJournal(nil, t.TempDir(), true)
	require.NoError(t, err)
	s := newTestStore(t, 256, 3)
	WithJournal(j)(s)
	require.NoError(t, j.Close())

	err = s.Add(1, []int64{1})
	assert.True(t, errors.Is(err, ErrJournalClosed), "got %v", err)
	assert.Zero(t, s.Stats().UniverseSize, "Nothing should be applied")
	assert.Empty(t, s.Retrieve(1))
}
