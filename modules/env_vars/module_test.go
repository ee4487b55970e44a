package env_vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/scheduler"
	"github.com/vk/rulegrid/internal/testutil"
)

func TestNewRequest_Canonical(t *testing.T) {
	assert.Equal(t, NewRequest("B", "A"), NewRequest("A", "B", "A"))
	assert.Equal(t, []string{"A", "B"}, NewRequest("B", "A", "B").Names)
}

func newEnvScheduler(t *testing.T, environ func() []string) *scheduler.Scheduler {
	t.Helper()
	return testutil.NewScheduler(t, func(r *registry.Registry) {
		registry.Query[EnvironmentVars](r, registry.Type[EnvironmentVarsRequest](r))
	}, &Module{Environ: environ})
}

func TestEnvironmentVars(t *testing.T) {
	// --- Arrange ---
	ctx := testutil.Context(t)
	s := newEnvScheduler(t, func() []string {
		return []string{"HOME=/home/dev", "EMPTY=", "EQ=a=b", "OTHER=x"}
	})

	// --- Act ---
	got, err := scheduler.Run[EnvironmentVars](ctx, s, NewRequest("HOME", "EMPTY", "EQ", "UNSET"))

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, EnvironmentVars{"HOME": "/home/dev", "EMPTY": "", "EQ": "a=b"}, got)
}

func TestEnvironmentVars_MemoizedPerRequest(t *testing.T) {
	// --- Arrange ---
	ctx := testutil.Context(t)
	calls := &testutil.Counter{}
	s := newEnvScheduler(t, func() []string {
		calls.Inc("environ")
		return []string{"A=1", "B=2"}
	})

	// --- Act ---
	for range 3 {
		_, err := scheduler.Run[EnvironmentVars](ctx, s, NewRequest("B", "A"))
		require.NoError(t, err)
	}
	_, err := scheduler.Run[EnvironmentVars](ctx, s, NewRequest("A"))

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 2, calls.Get("environ"), "one read per distinct request")
}
