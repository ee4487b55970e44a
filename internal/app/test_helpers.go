package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing over a
// temporary build root holding files. Logs are captured at debug level.
func SetupAppTest(t *testing.T, files map[string]string, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	cfg, err := NewConfig(Config{
		Root:     testutil.Workspace(t, files),
		LogLevel: "debug",
	})
	require.NoError(t, err)

	logBuffer := &testutil.SafeBuffer{}
	testApp := NewApp(logBuffer, cfg, modules...)

	t.Cleanup(func() {
		require.NoError(t, testApp.Close())
		testutil.DumpLogs(t, logBuffer)
	})

	return testApp, logBuffer
}
