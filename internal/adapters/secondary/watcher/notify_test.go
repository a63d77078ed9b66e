package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

func writeDeck(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func waitEvent(t *testing.T, events <-chan ports.FileChangeEvent) ports.FileChangeEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ports.FileChangeEvent{}
	}
}

func assertQuiet(t *testing.T, events <-chan ports.FileChangeEvent, wait time.Duration) {
	t.Helper()
	select {
	case event := <-events:
		t.Fatalf("unexpected %s event for %s", event.Type, event.Path)
	case <-time.After(wait):
	}
}

func TestNotifyWatcher_New(t *testing.T) {
	w := NewNotifyWatcher(500*time.Millisecond, nil)
	assert.Equal(t, 500*time.Millisecond, w.debounce)
	assert.NotNil(t, w.logger)
	assert.NoError(t, w.Stop(), "stop before watch is a no-op")
}

func TestNotifyWatcher_Modified(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.md")
	writeDeck(t, deck, "# One")

	w := NewNotifyWatcher(0, nil)
	defer func() { _ = w.Stop() }()

	events, err := w.Watch(context.Background(), deck)
	require.NoError(t, err)

	writeDeck(t, deck, "# One\n\nWith $x^2$")

	event := waitEvent(t, events)
	assert.Equal(t, ports.Modified, event.Type)
	assert.Equal(t, deck, event.Path)
}

func TestNotifyWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.md")
	writeDeck(t, deck, "# One")

	w := NewNotifyWatcher(0, nil)
	defer func() { _ = w.Stop() }()

	events, err := w.Watch(context.Background(), deck)
	require.NoError(t, err)

	// Editors save by writing a temporary file and renaming it over the deck
	tmp := filepath.Join(dir, ".deck.md.swp")
	writeDeck(t, tmp, "# One\n\nSaved atomically")
	require.NoError(t, os.Rename(tmp, deck))

	event := waitEvent(t, events)
	assert.Equal(t, ports.Modified, event.Type)
	assert.Equal(t, deck, event.Path)
}

func TestNotifyWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.md")
	writeDeck(t, deck, "# One")

	w := NewNotifyWatcher(0, nil)
	defer func() { _ = w.Stop() }()

	events, err := w.Watch(context.Background(), deck)
	require.NoError(t, err)

	writeDeck(t, filepath.Join(dir, "notes.txt"), "unrelated")
	assertQuiet(t, events, 200*time.Millisecond)
}

func TestNotifyWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.md")
	writeDeck(t, deck, "# One")

	w := NewNotifyWatcher(150*time.Millisecond, nil)
	defer func() { _ = w.Stop() }()

	events, err := w.Watch(context.Background(), deck)
	require.NoError(t, err)

	writeDeck(t, deck, "# One\n\nfirst draft")
	writeDeck(t, deck, "# One\n\nsecond draft, longer")
	writeDeck(t, deck, "# One\n\nthird and final draft")

	event := waitEvent(t, events)
	assert.Equal(t, ports.Modified, event.Type)
	assertQuiet(t, events, 400*time.Millisecond)
}

func TestNotifyWatcher_CreatedAndDeleted(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.md")
	local := filepath.Join(dir, "texdeck.toml")
	writeDeck(t, deck, "# One")

	w := NewNotifyWatcher(0, nil)
	defer func() { _ = w.Stop() }()

	events, err := w.Watch(context.Background(), deck, local)
	require.NoError(t, err)

	writeDeck(t, local, "[layout]\n")
	event := waitEvent(t, events)
	assert.Equal(t, ports.Created, event.Type)
	assert.Equal(t, local, event.Path)

	require.NoError(t, os.Remove(local))
	event = waitEvent(t, events)
	assert.Equal(t, ports.Deleted, event.Type)
}

func TestNotifyWatcher_TouchWithoutChange(t *testing.T) {
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.md")
	writeDeck(t, deck, "# Same")

	w := NewNotifyWatcher(0, nil)
	defer func() { _ = w.Stop() }()

	state, err := scan(deck)
	require.NoError(t, err)
	w.store(deck, state)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(deck, future, future))

	_, changed, err := w.check(deck)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestNotifyWatcher_Errors(t *testing.T) {
	w := NewNotifyWatcher(0, nil)

	_, err := w.Watch(context.Background())
	assert.Error(t, err)

	_, err = w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestNotifyWatcher_StopClosesEvents(t *testing.T) {
	deck := filepath.Join(t.TempDir(), "deck.md")
	writeDeck(t, deck, "# One")

	w := NewNotifyWatcher(0, nil)
	events, err := w.Watch(context.Background(), deck)
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "second stop is a no-op")

	_, ok := <-events
	assert.False(t, ok)
}

func TestNotifyWatcher_ContextCancel(t *testing.T) {
	deck := filepath.Join(t.TempDir(), "deck.md")
	writeDeck(t, deck, "# One")

	w := NewNotifyWatcher(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := w.Watch(ctx, deck)
	require.NoError(t, err)

	cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop blocked after context cancel")
	}
}

func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "modified", ports.Modified.String())
	assert.Equal(t, "created", ports.Created.String())
	assert.Equal(t, "deleted", ports.Deleted.String())
	assert.Equal(t, "unknown", ports.ChangeType(42).String())
}
