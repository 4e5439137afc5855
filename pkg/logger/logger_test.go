package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	appLog := filepath.Join(dir, "app.log")
	errLog := filepath.Join(dir, "error.log")

	l, err := NewLogger(
		WithLevel("debug"),
		WithOutputPaths([]string{appLog}),
		WithErrorPaths([]string{errLog}),
	)
	require.NoError(t, err)

	l.Info("job queued", String("jobId", "j1"))
	l.Error("job failed", String("jobId", "j1"))
	require.NoError(t, l.Sync())

	app, err := os.ReadFile(appLog)
	require.NoError(t, err)
	assert.Contains(t, string(app), "job queued")
	assert.Contains(t, string(app), "job failed")

	errs, err := os.ReadFile(errLog)
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "job queued")
	assert.Contains(t, string(errs), "job failed")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"), WithOutputPaths([]string{"stdout"}), WithErrorPaths(nil))
	assert.Error(t, err)
}

func TestTestLogger_ChildrenShareEntries(t *testing.T) {
	l := NewTestLogger()
	child := l.Named("extraction").With(String("jobId", "j1"))

	child.Warn("document failed")
	l.Info("root")

	entries := l.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "extraction", entries[0].Logger)
	assert.Equal(t, "jobId", entries[0].Fields[0].Key)
	assert.Equal(t, []string{"document failed"}, l.Messages("WARN"))
	assert.NoError(t, child.Sync())
}

func TestFromContext(t *testing.T) {
	l := NewTestLogger()
	ctx := WithJobID(WithRequestID(context.Background(), "r1"), "j1")

	FromContext(ctx, l).Info("hello")
	FromContext(context.Background(), l).Info("bare")

	entries := l.GetEntries()
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Fields, 2)
	assert.Empty(t, entries[1].Fields)
}
