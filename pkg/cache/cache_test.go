package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prompteval/prompteval/pkg/provider"
)

func testEntry(content string) *Entry {
	return &Entry{
		Response: &provider.Response{
			Content:    content,
			StopReason: "stop",
			Usage:      provider.Usage{InputTokens: 10, OutputTokens: 5},
		},
		CreatedAt: time.Now(),
	}
}

func TestKey_Deterministic(t *testing.T) {
	req := &provider.Request{
		System:   "be brief",
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
	}

	k1 := Key("openai:gpt-4o-mini", req)
	k2 := Key("openai:gpt-4o-mini", req)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)
}

func TestKey_Distinguishes(t *testing.T) {
	base := &provider.Request{Messages: []provider.Message{{Role: "user", Content: "hi"}}}

	k := Key("openai:gpt-4o-mini", base)
	assert.NotEqual(t, k, Key("anthropic:claude-3-5-haiku-20241022", base),
		"same request to a different provider must get its own key")

	other := &provider.Request{Messages: []provider.Message{{Role: "user", Content: "hi!"}}}
	assert.NotEqual(t, k, Key("openai:gpt-4o-mini", other))

	warm := &provider.Request{
		Messages:    []provider.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.7,
	}
	assert.NotEqual(t, k, Key("openai:gpt-4o-mini", warm),
		"model parameters are part of the key")
}

func TestMemory_RoundTrip(t *testing.T) {
	m, err := NewMemory(10, time.Hour)
	require.NoError(t, err)
	defer m.Close()

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("k1", testEntry("hello"))
	got, ok := m.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Response.Content)
	assert.Equal(t, 10, got.Response.Usage.InputTokens)
}

func TestMemory_TTLExpiry(t *testing.T) {
	m, err := NewMemory(10, 20*time.Millisecond)
	require.NoError(t, err)

	m.Set("k1", testEntry("stale soon"))
	_, ok := m.Get("k1")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = m.Get("k1")
	assert.False(t, ok, "expired entry should miss")
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	m, err := NewMemory(10, 0)
	require.NoError(t, err)

	e := testEntry("forever")
	e.CreatedAt = time.Now().Add(-24 * time.Hour)
	m.Set("old", e)

	_, ok := m.Get("old")
	assert.True(t, ok)
}

func TestMemory_Eviction(t *testing.T) {
	m, err := NewMemory(2, time.Hour)
	require.NoError(t, err)

	m.Set("a", testEntry("a"))
	m.Set("b", testEntry("b"))
	m.Set("c", testEntry("c"))

	_, okA := m.Get("a")
	_, okC := m.Get("c")
	assert.False(t, okA, "oldest entry should be evicted")
	assert.True(t, okC)
}

func TestDisk_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, time.Hour)
	require.NoError(t, err)
	defer d.Close()

	_, ok := d.Get("deadbeef")
	assert.False(t, ok)

	d.Set("deadbeef", testEntry("persisted"))
	got, ok := d.Get("deadbeef")
	require.True(t, ok)
	assert.Equal(t, "persisted", got.Response.Content)

	// A fresh handle on the same directory sees the entry.
	d2, err := NewDisk(dir, time.Hour)
	require.NoError(t, err)
	got, ok = d2.Get("deadbeef")
	require.True(t, ok)
	assert.Equal(t, "persisted", got.Response.Content)
}

func TestDisk_CorruptEntryRemoved(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, time.Hour)
	require.NoError(t, err)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := d.Get("bad")
	assert.False(t, ok)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "corrupt entry file should be deleted")
}

func TestDisk_TTLExpiry(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 20*time.Millisecond)
	require.NoError(t, err)

	d.Set("k", testEntry("stale soon"))
	time.Sleep(40 * time.Millisecond)

	_, ok := d.Get("k")
	assert.False(t, ok)

	_, err = os.Stat(filepath.Join(dir, "k.json"))
	assert.True(t, os.IsNotExist(err), "expired entry file should be deleted")
}

func TestDisk_Clear(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, time.Hour)
	require.NoError(t, err)

	d.Set("a", testEntry("a"))
	d.Set("b", testEntry("b"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	require.NoError(t, d.Clear())

	_, okA := d.Get("a")
	_, okB := d.Get("b")
	assert.False(t, okA)
	assert.False(t, okB)

	// Non-entry files are left alone.
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestNoop(t *testing.T) {
	n := NewNoop()
	n.Set("k", testEntry("ignored"))
	_, ok := n.Get("k")
	assert.False(t, ok)
	assert.NoError(t, n.Close())
}

func TestNew_BackendSelection(t *testing.T) {
	dir := t.TempDir()

	c, err := New(Options{Enabled: true, Backend: "memory", MaxEntries: 10})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(Options{Enabled: true, Backend: "disk", Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &Disk{}, c)

	c, err = New(Options{Enabled: true, Backend: "noop"})
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, c)

	c, err = New(Options{Enabled: false, Backend: "disk", Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, c, "disabled cache is always a noop")

	_, err = New(Options{Enabled: true, Backend: "tape"})
	assert.Error(t, err)
}
