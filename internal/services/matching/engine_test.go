package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1", want: "1"},
		{in: "1.0", want: "1"},
		{in: "  42  ", want: "42"},
		{in: "1.000", want: "1"},
		{in: "0012", want: "0012"},
		{in: "0012.0", want: "0012"},
		{in: "1E3", want: "1E3"},
		{in: "1e3", want: "1e3"},
		{in: "-1.0", want: "-1.0"},
		{in: "+5", want: "+5"},
		{in: "1.", want: "1."},
		{in: ".0", want: ".0"},
		{in: "A1.0", want: "A1.0"},
		{in: "8501015009087", want: "8501015009087"},
		{in: "1.5", want: "1.5"},
		{in: "EMP-01", want: "EMP-01"},
		{in: "emp-01", want: "emp-01"},
		{in: "NaN", want: "NaN"},
		{in: "1.0.0", want: "1.0.0"},
		{in: "", want: ""},
		{in: "   ", want: ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeKey(tc.in), "NormalizeKey(%q)", tc.in)
	}
}

func TestIndex_Lookup(t *testing.T) {
	idx := NewIndex([]string{"a", "b", "a", "", "c", "a"})

	assert.Equal(t, []int{0, 2, 5}, idx.Lookup("a"))
	assert.Equal(t, []int{1}, idx.Lookup("b"))
	assert.Nil(t, idx.Lookup("missing"))
	assert.Nil(t, idx.Lookup(""))
	assert.Equal(t, 3, idx.Len())
}
