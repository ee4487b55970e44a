package app_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/app"
)

var workspace = map[string]string{
	"BUILD": `
target "base" {
  description = "shared"
  tags        = ["core"]
}
`,
	"pkg/BUILD": `
library "core" {
  extends      = "//:base"
  sources      = ["core.go"]
  dependencies = [":util"]
}

files "util" {
  sources = ["util.go"]
}
`,
	"pkg/sub/BUILD": `
target "leaf" {}
`,
	"notes/README": "not a declaration file",
}

func run(t *testing.T, a *app.App, name string, specs ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	err := a.Run(ctx, app.Command{Name: name, Specs: specs}, &out)
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestRun_List(t *testing.T) {
	testCases := []struct {
		name  string
		specs []string
		want  []string
	}{
		{
			name:  "single address",
			specs: []string{"pkg:core"},
			want:  []string{"pkg:core"},
		},
		{
			name:  "directory",
			specs: []string{"pkg:"},
			want:  []string{"pkg:core", "pkg:util"},
		},
		{
			name:  "recursive directory",
			specs: []string{"pkg::"},
			want:  []string{"pkg:core", "pkg:util", "pkg/sub:leaf"},
		},
		{
			name:  "whole workspace",
			specs: []string{"::"},
			want:  []string{"//:base", "pkg:core", "pkg:util", "pkg/sub:leaf"},
		},
		{
			name:  "duplicates keep first position",
			specs: []string{"pkg:util", "pkg:", "//:base"},
			want:  []string{"pkg:util", "pkg:core", "//:base"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			a, _ := app.SetupAppTest(t, workspace)

			// --- Act ---
			out, err := run(t, a, app.CmdList, tc.specs...)

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, tc.want, lines(out))
		})
	}
}

func TestRun_Show(t *testing.T) {
	a, _ := app.SetupAppTest(t, workspace)

	out, err := run(t, a, app.CmdShow, "pkg:core")

	require.NoError(t, err)
	assert.Contains(t, out, "# pkg:core\n")
	assert.Contains(t, out, `library "core"`)
	assert.Contains(t, out, `"shared"`, "inherited from //:base")
	assert.Contains(t, out, `"pkg:util"`, "dependencies are canonical")
}

func TestRun_Deps(t *testing.T) {
	a, _ := app.SetupAppTest(t, workspace)

	out, err := run(t, a, app.CmdDeps, "pkg:core")

	require.NoError(t, err)
	assert.Equal(t, []string{"pkg:core", "pkg:util"}, lines(out))
}

func TestRun_Dot(t *testing.T) {
	a, _ := app.SetupAppTest(t, workspace)

	out, err := run(t, a, app.CmdDot, "pkg:util")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph products {"))
	assert.Contains(t, out, "hydrate_struct")
}

func TestRun_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		command string
		specs   []string
		wantErr string
	}{
		{
			name:    "missing record",
			command: app.CmdShow,
			specs:   []string{"pkg:nope"},
			wantErr: "The address pkg:nope does not exist.",
		},
		{
			name:    "directory without declarations",
			command: app.CmdList,
			specs:   []string{"notes:"},
			wantErr: "Directory 'notes' does not contain any declaration files.",
		},
		{
			name:    "malformed address",
			command: app.CmdList,
			specs:   []string{"pkg:bad name"},
			wantErr: `invalid address "pkg:bad name"`,
		},
		{
			name:    "unknown command",
			command: "explode",
			specs:   []string{"pkg:core"},
			wantErr: `unknown command "explode"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := app.SetupAppTest(t, workspace)

			_, err := run(t, a, tc.command, tc.specs...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRun_LogsLifecycle(t *testing.T) {
	a, logs := app.SetupAppTest(t, workspace)

	_, err := run(t, a, app.CmdList, "pkg:core")

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "🚀 Starting.")
	assert.Contains(t, logs.String(), "🏁 Finished.")
}

func TestRun_WatchStopsWithContext(t *testing.T) {
	// --- Arrange ---
	a, _ := app.SetupAppTest(t, workspace)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var out bytes.Buffer

	// --- Act ---
	err := a.Run(ctx, app.Command{Name: app.CmdWatch, Specs: []string{"pkg:core"}}, &out)

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, out.String(), "pkg:core")
}
