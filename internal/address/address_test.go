// internal/address/address_test.go
package address

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_String(t *testing.T) {
	testCases := []struct {
		name        string
		addr        Address
		expectedStr string
	}{
		{name: "nested", addr: New("src/lib", "core"), expectedStr: "src/lib:core"},
		{name: "root", addr: New("", "tools"), expectedStr: "//:tools"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStr, tc.addr.String())
		})
	}
}

func TestAddress_RoundTrip(t *testing.T) {
	specs := []string{
		"src/lib:core",
		"//:tools",
		"a-b/c_d:e.f",
	}

	for _, spec := range specs {
		t.Run(spec, func(t *testing.T) {
			addr, err := Parse(spec, "")
			require.NoError(t, err)
			assert.Equal(t, spec, addr.String())

			again, err := Parse(addr.String(), "elsewhere")
			require.NoError(t, err)
			assert.Equal(t, addr, again)
		})
	}
}

func TestAddress_Reference(t *testing.T) {
	testCases := []struct {
		addr     Address
		dir      string
		expected string
	}{
		{addr: New("src", "a"), dir: "src", expected: ":a"},
		{addr: New("src/lib", "lib"), dir: "src", expected: "src/lib"},
		{addr: New("src/lib", "core"), dir: "src", expected: "src/lib:core"},
		{addr: New("", "tools"), dir: "src", expected: "//:tools"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			ref := tc.addr.Reference(tc.dir)
			assert.Equal(t, tc.expected, ref)

			back, err := Parse(ref, tc.dir)
			require.NoError(t, err)
			assert.Equal(t, tc.addr, back)
		})
	}
}

func TestCompare(t *testing.T) {
	addrs := []Address{New("b", "a"), New("a", "z"), New("a", "b"), New("", "x")}
	slices.SortFunc(addrs, Compare)
	assert.Equal(t, []Address{New("", "x"), New("a", "b"), New("a", "z"), New("b", "a")}, addrs)
	assert.True(t, Address{}.IsZero())
	assert.Equal(t, "//", New("", "x").Namespace())
}
