package hydration_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/fsutil"
	"github.com/vk/rulegrid/internal/hcl"
	"github.com/vk/rulegrid/internal/hydration"
	"github.com/vk/rulegrid/internal/scheduler"
	"github.com/vk/rulegrid/internal/store"
	"github.com/vk/rulegrid/internal/testutil"
	"github.com/vk/rulegrid/modules/env_vars"
	"github.com/vk/rulegrid/modules/targets"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
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

  options {
    race  = env.RACE == "1"
    flags = ["-v"]
  }
}

library "util" {
  sources = ["util.go"]
}
`,
	"merge/BUILD": `
library "a" {
  abstract = true
  a        = 1
  b        = 2
  l        = [0]
}

library "m1" {
  abstract = true
  l        = [1]
}

library "m2" {
  abstract = true
  l        = [2]
  labels   = { x = "1" }
}

library "child" {
  extends = ":a"
  merges  = [":m1", ":m2"]
  b       = 3
  labels  = { y = "2" }
}
`,
	"sugg/BUILD": `
target "present" {}
`,
	"orphan/BUILD": `
target "o" {
  extends = ":gone"
}
`,
	"empty/README.md": "no declarations here",
	"cycle/BUILD": `
target "a" {
  extends = ":b"
}

target "b" {
  extends = ":a"
}

target "self" {
  extends = ":self"
}
`,
	"mismatch/BUILD": `
library "lib" {
  sources = ["x.go"]
}

target "narrow" {
  extends = ":lib"
}

files "badsources" {
  sources = 3
}

target "bogus" {
  bogus = 1
}

target "inlinelib" {
  extends "library" {
    sources = ["x.go"]
  }
}

target "inlinewidget" {
  merges "widget" {}
}
`,
	"inline/BUILD": `
files "srcs" {
  sources = ["a.go"]

  extends {
    description = "inline parent"
    tags        = ["gen"]
  }
}

files "typed" {
  sources = ["b.go"]

  extends "target" {
    description = "typed parent"
  }
}
`,
	"refs/BUILD": `
library "core" {
  sources = ["core.go"]
}

files "assets" {
  sources = ["logo.png"]
}

binary "app" {
  main      = ":core"
  libraries = ["//pkg:util", ":core"]
  resources = { static = ":assets" }
}

binary "child" {
  extends = ":app"
  tags    = ["child"]
}

binary "wrongmain" {
  main = ":assets"
}

binary "wronglist" {
  main      = ":core"
  libraries = [":core", ":assets"]
}

binary "wrongshape" {
  main = [":core"]
}

binary "dangling" {
  main = ":nothere"
}
`,
	"dup/BUILD":       `target "x" {}`,
	"dup/x.build.hcl": `target "x" {}`,
	"invalid/BUILD": `
files "nosrc" {}

files "template" {
  abstract = true
}
`,
	"unknown/BUILD": `widget "w" {}`,
}

type harness struct {
	root  string
	sched *scheduler.Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := testutil.Workspace(t, workspace)

	kinds := hydration.NewKinds()
	targets.RegisterKinds(kinds)

	sched := testutil.NewScheduler(t, nil,
		&fsutil.Module{Root: root, Store: store.NewMemoryStore()},
		&env_vars.Module{Environ: func() []string { return []string{"RACE=1"} }},
		&hydration.Module{Kinds: kinds},
	)
	return &harness{root: root, sched: sched}
}

func (h *harness) hydrate(t *testing.T, spec string) (hydration.HydratedStruct, error) {
	t.Helper()
	return scheduler.Run[hydration.HydratedStruct](testutil.Context(t), h.sched, address.MustParse(spec))
}

func toInt(t *testing.T, v cty.Value) int {
	t.Helper()
	var i int
	require.NoError(t, gocty.FromCtyValue(v, &i))
	return i
}

func TestHydrate_LibraryExtendingTarget(t *testing.T) {
	// --- Arrange ---
	h := newHarness(t)

	// --- Act ---
	hs, err := h.hydrate(t, "pkg:core")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, targets.KindLibrary, hs.Kind)
	assert.Equal(t, []address.Address{address.New("pkg", "util")}, hs.Dependencies)

	lib, ok := hs.Object.(*targets.Library)
	require.True(t, ok, "object is %T", hs.Object)
	want := &targets.Library{
		Target: targets.Target{
			Name:         "core",
			Description:  "shared",
			Tags:         []string{"core"},
			Dependencies: []string{"pkg:util"},
		},
		Sources: []string{"core.go"},
		Options: &targets.LibraryOptions{Race: true, Flags: []string{"-v"}},
	}
	if diff := cmp.Diff(want, lib, ctyValueComparer, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("hydrated library mismatch (-want +got):\n%s", diff)
	}
}

var ctyValueComparer = cmp.Comparer(func(a, b cty.Value) bool {
	return a.RawEquals(b)
})

func TestHydrate_ExtendsAndMerges(t *testing.T) {
	h := newHarness(t)

	hs, err := h.hydrate(t, "merge:child")

	require.NoError(t, err)
	fields := hs.Record.Fields
	assert.Equal(t, 1, toInt(t, fields["a"]))
	assert.Equal(t, 3, toInt(t, fields["b"]), "the child wins over its parent")

	var l []int
	for _, v := range fields["l"].AsValueSlice() {
		l = append(l, toInt(t, v))
	}
	assert.Equal(t, []int{0, 1, 2}, l, "lists concatenate in merge order")

	labels := fields["labels"].AsValueMap()
	assert.Equal(t, "1", labels["x"].AsString())
	assert.Equal(t, "2", labels["y"].AsString())

	assert.False(t, hs.Record.Abstract, "abstract is not inherited")
	assert.Nil(t, hs.Record.Extends)
	assert.Empty(t, hs.Record.Merges)

	lib := hs.Object.(*targets.Library)
	assert.ElementsMatch(t, []string{"a", "b", "l", "labels"}, keys(lib.Extra))
}

func keys(m map[string]cty.Value) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestHydrate_InlineExtends(t *testing.T) {
	h := newHarness(t)

	hs, err := h.hydrate(t, "inline:srcs")

	require.NoError(t, err)
	files := hs.Object.(*targets.Files)
	assert.Equal(t, "inline parent", files.Description)
	assert.Equal(t, []string{"gen"}, files.Tags)
	assert.Equal(t, []string{"a.go"}, files.Sources)
}

func TestHydrate_InlineExtendsWithKind(t *testing.T) {
	h := newHarness(t)

	hs, err := h.hydrate(t, "inline:typed")

	require.NoError(t, err)
	files := hs.Object.(*targets.Files)
	assert.Equal(t, "typed parent", files.Description)
	assert.Equal(t, []string{"b.go"}, files.Sources)
}

func TestHydrate_References(t *testing.T) {
	testCases := []struct {
		name string
		spec string
		tags []string
	}{
		{name: "declared", spec: "refs:app"},
		{name: "inherited", spec: "refs:child", tags: []string{"child"}},
	}

	h := newHarness(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Act ---
			hs, err := h.hydrate(t, tc.spec)

			// --- Assert ---
			require.NoError(t, err)
			bin, ok := hs.Object.(*targets.Binary)
			require.True(t, ok, "object is %T", hs.Object)
			assert.Equal(t, tc.tags, bin.Tags)

			require.NotNil(t, bin.Main)
			assert.Equal(t, "core", bin.Main.Name)
			assert.Equal(t, []string{"core.go"}, bin.Main.Sources)

			require.Len(t, bin.Libraries, 2)
			assert.Equal(t, "util", bin.Libraries[0].Name)
			assert.Same(t, bin.Main, bin.Libraries[1], "one record hydrates to one object")

			require.Contains(t, bin.Resources, "static")
			assert.Equal(t, []string{"logo.png"}, bin.Resources["static"].Sources)

			assert.Equal(t, "refs:core", hs.Record.Fields["main"].AsString())
			assert.Empty(t, hs.Dependencies, "references are not dependencies")
		})
	}
}

func TestHydrate_DanglingReference(t *testing.T) {
	h := newHarness(t)

	_, err := h.hydrate(t, "refs:dangling")

	var resolve *hydration.ResolveError
	require.ErrorAs(t, err, &resolve)
	assert.Equal(t, address.New("refs", "nothere"), resolve.Address)
}

func TestHydrate_ResolveErrors(t *testing.T) {
	testCases := []struct {
		name            string
		spec            string
		wantSuggestions []string
		wantNoFiles     bool
		wantMessage     string
	}{
		{
			name:            "missing name suggests neighbours",
			spec:            "sugg:missing",
			wantSuggestions: []string{"present"},
			wantMessage:     "The address sugg:missing does not exist.\n\nThe name 'missing' is not defined in the directory 'sugg'. Did you mean one of these names?\n\n  * :present",
		},
		{
			name:        "directory without declaration files",
			spec:        "empty:x",
			wantNoFiles: true,
			wantMessage: "Directory 'empty' does not contain any declaration files.",
		},
		{
			name:        "missing directory",
			spec:        "nowhere:x",
			wantNoFiles: true,
			wantMessage: "Directory 'nowhere' does not contain any declaration files.",
		},
		{
			name:            "missing ancestor",
			spec:            "orphan:o",
			wantSuggestions: []string{"o"},
			wantMessage:     "The address orphan:gone does not exist.\n\nThe name 'gone' is not defined in the directory 'orphan'. Did you mean one of these names?\n\n  * :o",
		},
	}

	h := newHarness(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.hydrate(t, tc.spec)

			var resolveErr *hydration.ResolveError
			require.ErrorAs(t, err, &resolveErr)
			assert.Equal(t, tc.wantNoFiles, resolveErr.NoFiles)
			assert.Equal(t, tc.wantSuggestions, resolveErr.Suggestions)
			assert.Equal(t, tc.wantMessage, resolveErr.Error())
		})
	}
}

func TestHydrate_InheritanceCycle(t *testing.T) {
	h := newHarness(t)

	for _, spec := range []string{"cycle:a", "cycle:self"} {
		t.Run(spec, func(t *testing.T) {
			_, err := h.hydrate(t, spec)

			var cycle *scheduler.CycleError
			require.ErrorAs(t, err, &cycle)
			assert.Contains(t, err.Error(), "cycle")
		})
	}
}

func TestHydrate_TypeMismatch(t *testing.T) {
	testCases := []struct {
		name     string
		spec     string
		contains string
	}{
		{name: "ancestor of an unrelated kind", spec: "mismatch:narrow", contains: "cannot inherit from mismatch:lib of kind 'library'"},
		{name: "field of the wrong type", spec: "mismatch:badsources", contains: `field "sources"`},
		{name: "undeclared field", spec: "mismatch:bogus", contains: "does not support field(s): bogus"},
		{name: "inline ancestor of an unrelated kind", spec: "mismatch:inlinelib", contains: "cannot inherit from inline library record of kind 'library'"},
		{name: "inline ancestor of an unknown kind", spec: "mismatch:inlinewidget", contains: "kind 'widget' is not registered"},
		{name: "reference to the wrong kind", spec: "refs:wrongmain", contains: `field "main" cannot reference refs:assets of kind 'files'`},
		{name: "list reference to the wrong kind", spec: "refs:wronglist", contains: `field "libraries" cannot reference refs:assets of kind 'files'`},
		{name: "reference of the wrong shape", spec: "refs:wrongshape", contains: `field "main": expected string`},
	}

	h := newHarness(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.hydrate(t, tc.spec)

			var mismatch *hydration.ResolvedTypeMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, address.MustParse(tc.spec), mismatch.Address)
			assert.Contains(t, mismatch.Error(), tc.contains)
		})
	}
}

func TestHydrate_FamilyErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.hydrate(t, "dup:x")
	var dup *hydration.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"dup/BUILD", "dup/x.build.hcl"}, dup.Files)

	_, err = h.hydrate(t, "unknown:w")
	var unknown *hydration.UnknownKindError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "widget", unknown.Kind)
	assert.Equal(t, []string{"binary", "files", "library", "target"}, unknown.Known)
}

func TestHydrate_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.hydrate(t, "invalid:nosrc")
	var invalid *hydration.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "at least one source")

	hs, err := h.hydrate(t, "invalid:template")
	require.NoError(t, err, "abstract records are not validated")
	assert.True(t, hs.Record.Abstract)
}

func TestAddresses(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.Context(t)

	addrs, err := scheduler.Run[hydration.Addresses](ctx, h.sched, hydration.Dir("pkg"))
	require.NoError(t, err)
	assert.Equal(t, hydration.Addresses{address.New("pkg", "core"), address.New("pkg", "util")}, addrs)

	_, err = scheduler.Run[hydration.Addresses](ctx, h.sched, hydration.Dir("empty"))
	var resolveErr *hydration.ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.True(t, resolveErr.NoFiles)
}

func TestHydratedStructs_PreservesOrder(t *testing.T) {
	h := newHarness(t)

	all, err := scheduler.Run[hydration.HydratedStructs](testutil.Context(t), h.sched, hydration.Addresses{
		address.New("pkg", "util"),
		address.New("", "base"),
	})

	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "util", all[0].Address.TargetName)
	assert.Equal(t, "base", all[1].Address.TargetName)
}

func TestTransitiveHydratedStructs(t *testing.T) {
	h := newHarness(t)

	tr, err := scheduler.Run[hydration.TransitiveHydratedStructs](testutil.Context(t), h.sched, hydration.Addresses{
		address.New("pkg", "core"),
	})

	require.NoError(t, err)
	require.Len(t, tr.Roots, 1)
	var closure []string
	for _, hs := range tr.Closure {
		closure = append(closure, hs.Address.String())
	}
	assert.Equal(t, []string{"pkg:core", "pkg:util"}, closure)
}

func TestHydrate_Memoized(t *testing.T) {
	h := newHarness(t)

	_, err := h.hydrate(t, "pkg:core")
	require.NoError(t, err)
	size := h.sched.GraphLen()

	_, err = h.hydrate(t, "pkg:core")
	require.NoError(t, err)
	assert.Equal(t, size, h.sched.GraphLen())
}

func TestHydrate_RefreshedAfterFileChange(t *testing.T) {
	// --- Arrange ---
	h := newHarness(t)
	before, err := h.hydrate(t, "pkg:util")
	require.NoError(t, err)

	// --- Act ---
	updated := `library "util" {
  sources = ["util.go", "extra.go"]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "pkg", "BUILD"), []byte(updated), 0o644))
	removed := h.sched.InvalidateFiles("pkg/BUILD")
	after, err := h.hydrate(t, "pkg:util")

	// --- Assert ---
	require.NoError(t, err)
	assert.Positive(t, removed)
	assert.Equal(t, []string{"util.go"}, before.Object.(*targets.Library).Sources)
	assert.Equal(t, []string{"util.go", "extra.go"}, after.Object.(*targets.Library).Sources)

	_, err = h.hydrate(t, "pkg:core")
	var resolveErr *hydration.ResolveError
	assert.True(t, errors.As(err, &resolveErr), "pkg:core was removed")
}

func TestHydratedStruct_Render(t *testing.T) {
	h := newHarness(t)

	hs, err := h.hydrate(t, "pkg:core")
	require.NoError(t, err)

	assert.Contains(t, string(hs.Render()), `library "core" {`)

	reparsed, err := hcl.NewParser().Parse("rendered.hcl", hs.Render(), nil)
	require.NoError(t, err)
	require.Len(t, reparsed, 1)
	assert.Equal(t, "core", reparsed[0].Name)
	assert.Equal(t, "shared", reparsed[0].Fields["description"].AsString())
	assert.Equal(t, []string{"pkg:util"}, reparsed[0].Dependencies)
	assert.Nil(t, reparsed[0].Extends, "inheritance is already folded in")
}
