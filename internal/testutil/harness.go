package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/scheduler"
)

// LogsEnv makes harnesses print captured logs when set to "true".
const LogsEnv = "RULEGRID_TEST_LOGS"

// Context returns a context with a 5s deadline and a debug logger writing
// to a buffer. The buffer is dumped after the test when LogsEnv is set.
func Context(t *testing.T) context.Context {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, cancel := context.WithTimeout(ctxlog.WithLogger(context.Background(), logger), 5*time.Second)
	t.Cleanup(func() {
		cancel()
		DumpLogs(t, buf)
	})
	return ctx
}

// DumpLogs writes buf to the test log when LogsEnv is set.
func DumpLogs(t *testing.T, buf *SafeBuffer) {
	t.Helper()
	if os.Getenv(LogsEnv) == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
	}
}

// WriteFiles writes files below root. Names are slash separated and may
// contain directories.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// Workspace creates a temporary build root holding files.
func Workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	WriteFiles(t, root, files)
	return root
}

// NewScheduler installs modules, lets setup declare extra queries, and
// compiles the result into a scheduler.
func NewScheduler(t *testing.T, setup func(r *registry.Registry), modules ...registry.Module) *scheduler.Scheduler {
	t.Helper()
	r := registry.New()
	r.Install(modules...)
	if setup != nil {
		setup(r)
	}
	rg, err := rulegraph.Compile(context.Background(), r)
	require.NoError(t, err)
	return scheduler.New(rg)
}
