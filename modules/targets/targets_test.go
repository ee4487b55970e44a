package targets

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/hydration"
)

func TestRegisterKinds(t *testing.T) {
	k := hydration.NewKinds()

	RegisterKinds(k)

	assert.Equal(t, []string{KindBinary, KindFiles, KindLibrary, KindTarget}, k.Names())
	assert.Equal(t, reflect.TypeFor[Library](), k[KindLibrary])
	assert.Equal(t, reflect.TypeFor[Binary](), k[KindBinary])
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		obj     interface{ Validate() error }
		wantErr string
	}{
		{name: "plain target", obj: &Target{Name: "t", Tags: []string{"a", "b"}}},
		{name: "empty tag", obj: &Target{Tags: []string{""}}, wantErr: "tags must not be empty strings"},
		{name: "repeated tag", obj: &Target{Tags: []string{"a", "a"}}, wantErr: `tag "a" is repeated`},
		{name: "files with sources", obj: &Files{Sources: []string{"a.go"}}},
		{name: "files without sources", obj: &Files{}, wantErr: "files need at least one source"},
		{name: "files inherit tag checks", obj: &Files{Target: Target{Tags: []string{""}}, Sources: []string{"a.go"}}, wantErr: "tags must not be empty"},
		{name: "library", obj: &Library{Sources: []string{"b.go", "a.go"}}},
		{name: "binary", obj: &Binary{Main: &Library{}}},
		{name: "binary without main", obj: &Binary{}, wantErr: "binary needs a main library"},
		{name: "library repeated source", obj: &Library{Sources: []string{"b.go", "a.go", "b.go"}}, wantErr: `source "b.go" is listed twice`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.obj.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
