package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringsConverges(t *testing.T) {
	// Collapsing doubled letters converges in a few passes.
	step := func(s string) string { return strings.ReplaceAll(s, "aa", "a") }
	got, err := Strings("aaaaaaaa", step, 10, ErrorAtCap)
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestStringsStopAtCap(t *testing.T) {
	// Growing string never converges; StopAtCap returns silently.
	step := func(s string) string { return s + "x" }
	got, err := Strings("x", step, 5, StopAtCap)
	require.NoError(t, err)
	assert.Equal(t, "xxxxxx", got)
}

func TestStringsErrorAtCap(t *testing.T) {
	step := func(s string) string { return s + "x" }
	_, err := Strings("x", step, 5, ErrorAtCap)
	var nc *ErrNoConvergence
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, 5, nc.Cap)
}

func TestFixpointIdempotentStep(t *testing.T) {
	step := func(n int) int {
		if n > 0 {
			return n - 1
		}
		return 0
	}
	got, err := Fixpoint(3, step, func(a, b int) bool { return a == b }, 10, ErrorAtCap)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
