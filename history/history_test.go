package history

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"whisgo/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T, kv store.KV) *Store {
	t.Helper()
	s := New(kv)
	s.now = fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return s
}

func TestAddNewestFirst(t *testing.T) {
	s := newStore(t, store.NewMemory())
	s.Add("hello")
	s.Add("world")

	got := s.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, "world", got[0].Text)
	assert.Equal(t, "hello", got[1].Text)

	latest, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, "world", latest.Text)
}

func TestAddCapsAtMax(t *testing.T) {
	s := newStore(t, store.NewMemory())
	for i := 0; i < 25; i++ {
		s.Add(fmt.Sprintf("t%d", i))
	}

	got := s.Entries()
	require.Len(t, got, MaxEntries)
	assert.Equal(t, "t24", got[0].Text)
	assert.Equal(t, "t5", got[MaxEntries-1].Text)
}

func TestAddFields(t *testing.T) {
	s := newStore(t, store.NewMemory())
	e := s.Add("memo")

	assert.Equal(t, "2024-03-01T12:00:01.000Z", e.Timestamp)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC).UnixMilli(), e.ID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC), e.Time())
}

func TestAddSameMillisecondUniqueIDs(t *testing.T) {
	s := New(store.NewMemory())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := s.Add("a")
	b := s.Add("b")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPersistsAcrossInstances(t *testing.T) {
	kv := store.NewMemory()
	s := newStore(t, kv)
	s.Add("hello")
	s.Add("world")

	reloaded := New(kv)
	assert.Equal(t, s.Entries(), reloaded.Entries())

	raw, ok, err := kv.Get(store.KeyHistory)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[
		{"id":1709294402000,"text":"world","timestamp":"2024-03-01T12:00:02.000Z"},
		{"id":1709294401000,"text":"hello","timestamp":"2024-03-01T12:00:01.000Z"}
	]`, raw)
}

func TestLoadCorruptStartsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"malformed", `[{"id":1,`},
		{"object", `{"id":1}`},
		{"wrong field types", `[{"id":"x","text":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := store.NewMemory()
			require.NoError(t, kv.Set(store.KeyHistory, tt.value))
			s := New(kv)
			assert.Empty(t, s.Entries())

			s.Add("fresh")
			assert.Len(t, New(kv).Entries(), 1)
		})
	}
}

func TestLoadTruncatesOversizedList(t *testing.T) {
	kv := store.NewMemory()
	var many []Transcription
	for i := 0; i < 30; i++ {
		many = append(many, Transcription{ID: int64(100 - i), Text: fmt.Sprint(i)})
	}
	require.NoError(t, store.SaveJSON(kv, store.KeyHistory, many))
	assert.Len(t, New(kv).Entries(), MaxEntries)
}

func TestClear(t *testing.T) {
	kv := store.NewMemory()
	s := newStore(t, kv)
	s.Add("a")
	s.Clear()

	assert.Empty(t, s.Entries())
	_, ok := s.Latest()
	assert.False(t, ok)
	raw, _, _ := kv.Get(store.KeyHistory)
	assert.Equal(t, "[]", raw)
}

func TestGet(t *testing.T) {
	s := newStore(t, store.NewMemory())
	s.Add("old")
	s.Add("new")

	e, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "new", e.Text)
	e, err = s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "old", e.Text)

	_, err = s.Get(3)
	assert.Error(t, err)
	_, err = s.Get(0)
	assert.Error(t, err)
}

type failingKV struct{ store.KV }

func (failingKV) Set(string, string) error { return errors.New("disk full") }

func TestSaveFailureIsSwallowed(t *testing.T) {
	s := newStore(t, failingKV{store.NewMemory()})
	e := s.Add("kept in memory")
	assert.Equal(t, "kept in memory", e.Text)
	assert.Len(t, s.Entries(), 1)
}
