package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlainParameters(t *testing.T) {
	tbl, err := Build(`$x; y$`, "")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	x, ok := tbl.Lookup("x")
	require.True(t, ok)
	assert.True(t, x.Commuting)
	assert.Equal(t, RoleParameter, x.Role)
}

func TestBuildIndexExpansion(t *testing.T) {
	tbl, err := Build(`$x_s; (s, up, down)$`, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"x_down", "x_up"}, tbl.Parameters())
	_, ok := tbl.Lookup("x_s")
	assert.False(t, ok, "template itself must not be registered")
}

func TestIndexLetterNeedsWholeSegment(t *testing.T) {
	// "s" declared as an index must not expand inside the segment "sum" or
	// match the base letter of "s_k".
	tbl, err := Build(`$x_sum; s_k; (s, up, down)$`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s_k", "x_sum"}, tbl.Parameters())
}

func TestNonCommutingMarkers(t *testing.T) {
	tbl, err := Build(`$k$`, `$(c_s^\dagger, NC); (c_s, NC), (s,\uparrow,\downarrow)$`)
	require.NoError(t, err)

	assert.Equal(t, []string{"k"}, tbl.Parameters())
	assert.ElementsMatch(t,
		[]string{"c_uparrow_dag", "c_downarrow_dag", "c_uparrow", "c_downarrow"},
		tbl.Functions())

	for _, name := range tbl.Functions() {
		spec, ok := tbl.Lookup(name)
		require.True(t, ok)
		assert.False(t, spec.Commuting, "%s must be non-commuting", name)
	}
}

func TestMultiIndexCartesianExpansion(t *testing.T) {
	tbl, err := Build(
		`$R_i; R_j, (c_{m,n}^{\dagger}, NC);(c_{m,n}, NC);(m,R_i,R_j);(n,\uparrow,\downarrow)$`,
		`$t_n; (n,\uparrow,\downarrow)$`)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"R_i", "R_j",
		"c_R_i_uparrow", "c_R_i_downarrow", "c_R_j_uparrow", "c_R_j_downarrow",
		"c_R_i_uparrow_dag", "c_R_i_downarrow_dag", "c_R_j_uparrow_dag", "c_R_j_downarrow_dag",
	}, tbl.Parameters())
	assert.ElementsMatch(t, []string{"t_uparrow", "t_downarrow"}, tbl.Functions())

	op, ok := tbl.Lookup("c_R_i_uparrow_dag")
	require.True(t, ok)
	assert.False(t, op.Commuting)

	hop, ok := tbl.Lookup("t_uparrow")
	require.True(t, ok)
	assert.True(t, hop.Commuting)
}

func TestFirstOccurrenceWins(t *testing.T) {
	tbl, err := Build(`$x; x$`, "")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestMalformedDeclaration(t *testing.T) {
	_, err := Build(`$x; (broken$`, "")
	var se *Error
	require.ErrorAs(t, err, &se)
}

func TestEmptyDeclarations(t *testing.T) {
	tbl, err := Build("", "")
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}
