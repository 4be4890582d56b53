package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerAppliesOnChange(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "compose.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("services: {}\n"), 0o644))

	var applies atomic.Int32
	applied := make(chan struct{}, 8)
	runner := New([]string{manifest}, func(ctx context.Context) error {
		applies.Add(1)
		applied <- struct{}{}
		return nil
	})
	runner.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	// Give the watcher a moment to arm before touching the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(manifest, []byte("services: {} # changed\n"), 0o644))

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a re-apply after the manifest changed")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, applies.Load(), int32(1))
}

func TestRunnerDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "compose.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("a\n"), 0o644))

	var applies atomic.Int32
	runner := New([]string{manifest}, func(ctx context.Context) error {
		applies.Add(1)
		return nil
	})
	runner.SetDebounce(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	// A burst of writes inside the quiet period coalesces into one apply.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(manifest, []byte("b\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(600 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, int32(1), applies.Load())
}

func TestRunnerIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "compose.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("a\n"), 0o644))

	var applies atomic.Int32
	runner := New([]string{manifest}, func(ctx context.Context) error {
		applies.Add(1)
		return nil
	})
	runner.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, int32(0), applies.Load())
}
