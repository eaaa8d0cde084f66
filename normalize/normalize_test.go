package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fraction to division",
			in:   `\frac{1}{2}`,
			want: `(1)/(2)`,
		},
		{
			name: "nested fraction",
			in:   `\frac{\frac{1}{2}}{3}`,
			want: `((1)/(2))/(3)`,
		},
		{
			name: "square root",
			in:   `\sqrt{3*x}`,
			want: `(3*x)**(1/2)`,
		},
		{
			name: "indexed radical",
			in:   `\sqrt[3]{x}`,
			want: `(x)**(1/(3))`,
		},
		{
			name: "inverse trig via power",
			in:   `\sin^{-1}(x)/x`,
			want: `asin(x)/x`,
		},
		{
			name: "arctan spelling",
			in:   `\arctan(x)`,
			want: `atan(x)`,
		},
		{
			name: "squared trig restored after application",
			in:   `\sin^2(x)`,
			want: `sin(x)^2`,
		},
		{
			name: "bare e is Euler",
			in:   `e^{-1}`,
			want: `E^(-1)`,
		},
		{
			name: "coefficient times exponential",
			in:   `Be^{4}`,
			want: `B*E^(4)`,
		},
		{
			name: "pi and cdot",
			in:   `2\pi\cdot x`,
			want: `2pi* x`,
		},
		{
			name: "sizing commands deleted",
			in:   `\left(\frac{1}{2}\right)`,
			want: `((1)/(2))`,
		},
		{
			name: "implicit log application",
			in:   `1-x\ln x`,
			want: `1-x  ln(x)`,
		},
		{
			name: "operator expectation brackets deleted",
			in:   `\langle c_\uparrow^\dagger(k) c_\uparrow(k) \rangle`,
			want: ` c_uparrow_dag(k) c_uparrow(k) `,
		},
		{
			name: "implicit application after inverse rewrite",
			in:   `\sin^{-1} x`,
			want: `asin(x)`,
		},
		{
			name: "hyperbolic function not split at its prefix",
			in:   `\sinh x`,
			want: ` sinh(x)`,
		},
		{
			name: "Gamma renamed",
			in:   `\Gamma(x)`,
			want: `gamma(x)`,
		},
		{
			name: "brace exponent parenthesized",
			in:   `x^{4/7}`,
			want: `x^(4/7)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Normalization must be a no-op on its own output.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		`\frac{1}{2}`,
		`\sqrt{\frac{4\pi}{x(5-\sqrt{5})}}`,
		`\sin^{-1}(x)/x`,
		`\sin^2(x)`,
		`y = \frac{24\pi\sqrt{2\pi}}{36\pi^{2}+\pi^{4}+48}x^{-1/2}e^{x}`,
		`c_\uparrow^\dagger(k) c_\uparrow(k)`,
		`(2*\sqrt{3*x} + 3*\sqrt{x})/(2x*\sqrt{3*x})`,
		`x^(2)`,
		`36pi^(2)+pi^(4)`,
	}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err, "input %q", in)
		twice, err := Normalize(once)
		require.NoError(t, err, "re-normalizing %q", once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	_, err := Normalize("   ")
	var ne *Error
	require.ErrorAs(t, err, &ne)

	// Everything deleted leaves nothing to parse.
	_, err = Normalize(`\left\right`)
	require.ErrorAs(t, err, &ne)
}

func TestReplaceUnicode(t *testing.T) {
	assert.Equal(t, `\sqrt x`, ReplaceUnicode("√ x"))
	assert.Equal(t, `2\cdot 3`, ReplaceUnicode("2× 3"))
	assert.Contains(t, ReplaceUnicode("\n│ 42 │"), `\boxed{ 42 }`)
}

func TestCanonicalizeScripts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dagger after subscript", `c_i^\dagger`, `c_i_dag`},
		{"dagger before subscript", `c^\dagger_i`, `c_i_dag`},
		{"braced dagger", `c_i^{\dagger}`, `c_i_dag`},
		{"greek subscript", `c_\uparrow`, `c_uparrow`},
		{"multi subscript", `c_{R_i,\uparrow}^{\dagger}`, `c_R_i_uparrow_dag`},
		{"duplicate subscript collapses", `x_{i,i}`, `x_i`},
		{"prime folds", `f'`, `f_prime`},
		{"double prime kept", `f''`, `f_prime_prime`},
		{"real exponent reattached", `x^2`, `x^{2}`},
		{"braced exponent untouched", `x^{2}`, `x^{2}`},
		{"parenthesized exponent untouched", `pi^(2)`, `pi^(2)`},
		{"parenthesized exponent expression", `x^(1/2)+y`, `x^(1/2)+y`},
		{"undecorated passthrough", `\frac{1}{2}`, `\frac{1}{2}`},
		{"subscript then exponent", `x_s^2`, `x_s^{2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalizeScripts(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CanonicalizeScripts(got), "must be idempotent")
		})
	}
}
