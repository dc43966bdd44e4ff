package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"doc/Type/Str.rakudoc", false},
		{"doc/Type/.Str.rakudoc.swp", true},
		{"doc/Type/Str.rakudoc~", true},
		{"doc/Type/#Str.rakudoc#", true},
		{"doc/.git", true},
		{"doc/Type/Str.swx", true},
		{"README.md", false},
	}
	for _, tt := range tests {
		if got := ShouldIgnore(tt.path); got != tt.want {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRunDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Type"), 0o755))

	w, err := New(root, 100*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer w.Close()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { calls.Add(1) })
	}()

	for _, name := range []string{"Type/Str.rakudoc", "Type/Int.rakudoc", "Intro.rakudoc"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("=TITLE x\n"), 0o644))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestRunIgnoresHiddenFiles(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer w.Close()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func(context.Context) { calls.Add(1) })

	require.NoError(t, os.WriteFile(filepath.Join(root, ".Str.rakudoc.swp"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), time.Second, slog.Default())
	require.Error(t, err)
}
