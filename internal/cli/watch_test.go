package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/desflat/internal/testutil"
)

const testDebounce = 50 * time.Millisecond

func startWatcher(t *testing.T, paths []string, build func() error) (chan struct{}, context.CancelFunc, chan error) {
	t.Helper()
	builds := make(chan struct{}, 16)
	w := &Watcher{
		Paths:    paths,
		Debounce: testDebounce,
		Logger:   zerolog.Nop(),
		Build: func(context.Context) error {
			defer func() { builds <- struct{}{} }()
			return build()
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(cancel)
	return builds, cancel, done
}

func waitBuild(t *testing.T, builds chan struct{}) {
	t.Helper()
	select {
	case <-builds:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a build")
	}
}

func assertNoBuild(t *testing.T, builds chan struct{}) {
	t.Helper()
	select {
	case <-builds:
		t.Fatal("unexpected build")
	case <-time.After(3 * testDebounce):
	}
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "plant.des")
	require.NoError(t, os.WriteFile(model, []byte("a"), 0644))

	builds, cancel, done := startWatcher(t, []string{model}, func() error { return nil })
	waitBuild(t, builds)

	require.NoError(t, os.WriteFile(model, []byte("b"), 0644))
	waitBuild(t, builds)

	testutil.WriteFile(t, dir, "notes.md", "x")
	assertNoBuild(t, builds)

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_DirectoryArgument(t *testing.T) {
	dir := t.TempDir()
	builds, cancel, done := startWatcher(t, []string{dir}, func() error { return nil })
	waitBuild(t, builds)

	testutil.WriteFile(t, dir, "new.des", "a")
	waitBuild(t, builds)

	testutil.WriteFile(t, dir, "notes.md", "x")
	assertNoBuild(t, builds)

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_KeepsWatchingAfterFailure(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "plant.des")
	require.NoError(t, os.WriteFile(model, []byte("a"), 0644))

	calls := 0
	builds, cancel, done := startWatcher(t, []string{model}, func() error {
		calls++
		if calls == 1 {
			return errors.New("broken model")
		}
		return nil
	})
	waitBuild(t, builds)

	require.NoError(t, os.WriteFile(model, []byte("b"), 0644))
	waitBuild(t, builds)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, calls)
}

func TestWatcher_MissingPath(t *testing.T) {
	w := &Watcher{
		Paths:  []string{filepath.Join(t.TempDir(), "missing.des")},
		Build:  func(context.Context) error { return nil },
		Logger: zerolog.Nop(),
	}
	err := w.Run(context.Background())
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestWatchCommand_InitialBuild(t *testing.T) {
	want, err := os.ReadFile("../harness/testdata/scenarios/golden/shared_event.golden")
	require.NoError(t, err)

	// A cancelled context stops the watcher right after the first build.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{sharedModel})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Equal(t, string(want), out.String())
}

func TestWatchCommand_OutputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "flat.des")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errOut := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{sharedModel, "-o", output})
	require.NoError(t, cmd.ExecuteContext(ctx))

	assert.Contains(t, errOut.String(), "✓ Wrote "+output)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plant automaton M2:")
}
