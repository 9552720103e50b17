package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestdedupeTrimmed(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "only blanks", input: []string{"", "  "}, expected: nil},
		{name: "order kept", input: []string{" b ", "a", "b"}, expected: []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, dedupeTrimmed(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, SplitList("k1:9092, k2:9092,,k1:9092"))
	assert.Nil(t, SplitList(""))
}
