package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVars_Expand(t *testing.T) {
	v := NewVars(map[string]string{"BUILD_NUMBER": "42", "WORKSPACE": "/ws"})

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"braced", "1.0.${BUILD_NUMBER}", "1.0.42"},
		{"bare", "$WORKSPACE/build", "/ws/build"},
		{"no placeholders", "Release", "Release"},
		{"dollar escape", "cost $$5", "cost $5"},
		{"trailing dollar", "abc$", "abc$"},
		{"non-name after dollar", "a$-b", "a$-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Expand(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVars_ExpandUndefined(t *testing.T) {
	v := NewVars(nil)
	_, err := v.Expand("${MISSING}-$ALSO")
	require.ErrorIs(t, err, ErrUndefined)
	assert.Contains(t, err.Error(), "MISSING")
	assert.Contains(t, err.Error(), "ALSO")
}

func TestVars_ExpandLenient(t *testing.T) {
	v := NewVars(map[string]string{"A": "1"})
	assert.Equal(t, "1-${B}-$C", v.ExpandLenient("${A}-${B}-$C"))
	assert.Equal(t, "${unterminated", v.ExpandLenient("${unterminated"))
}

func TestVars_Macro(t *testing.T) {
	build := ""
	v := NewVars(map[string]string{"XCODE_BUILD_NUMBER": "shadowed"}).
		WithMacro("XCODE_BUILD_NUMBER", func() string { return build })

	got, err := v.Expand("v${XCODE_BUILD_NUMBER}")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	build = "2.1 (40)"
	got, err = v.Expand("v${XCODE_BUILD_NUMBER}")
	require.NoError(t, err)
	assert.Equal(t, "v2.1 (40)", got)
}

func TestFromEnviron(t *testing.T) {
	v := FromEnviron([]string{"B=2", "A=1=x", "broken", "=nokey"})
	val, ok := v.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "1=x", val)
	assert.Equal(t, []string{"A=1=x", "B=2"}, v.Environ())
}

// Jenkins-style macros have no shell operators; these forms stay literal.
func TestVars_ExpandKeepsShellOperatorsLiteral(t *testing.T) {
	v := NewVars(map[string]string{"BUILD": "7", "WORKSPACE": "/ws"})

	assert.Equal(t, "${BUILD:-1}", v.ExpandLenient("${BUILD:-1}"))
	assert.Equal(t, "${#BUILD}", v.ExpandLenient("${#BUILD}"))
	assert.Equal(t, "/ws/out-7", v.ExpandLenient("$WORKSPACE/out-$BUILD"))
	assert.Equal(t, "7-${BUILD", v.ExpandLenient("${BUILD}-${BUILD"))

	_, err := v.Expand("${BUILD:-1}")
	require.ErrorIs(t, err, ErrUndefined)
}

type failing struct{}

func (failing) Expand(string) (string, error) { return "", ErrUndefined }

func TestLenient(t *testing.T) {
	assert.Equal(t, "${X}", Lenient(failing{}, "${X}"))
	assert.Equal(t, "ok-${X}", Lenient(NewVars(map[string]string{"Y": "ok"}), "$Y-${X}"))
}
