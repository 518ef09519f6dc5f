package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	var calls atomic.Int32
	w := New(path, func() { calls.Add(1) }, zerolog.Nop()).WithDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("version: 1\n# edit\n"), 0o600))
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst collapses into one reload")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New("/nonexistent/dir/seed.yaml", func() {}, zerolog.Nop())
	assert.Error(t, w.Watch(context.Background()))
}
