package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimToSize(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
	}{
		{"short text untouched", "hello world", 100},
		{"no limit", strings.Repeat("a ", 5000), 0},
		{"paragraphs", strings.Repeat("Sentence one is here. Sentence two follows.\n\n", 200), 500},
		{"single long word", strings.Repeat("x", 3000), 120},
		{"multibyte", strings.Repeat("量子コンピュータ ", 400), 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimToSize(tt.text, tt.maxChars)
			if tt.maxChars <= 0 || utf8.RuneCountInString(tt.text) <= tt.maxChars {
				assert.Equal(t, tt.text, got)
				return
			}
			assert.NotEmpty(t, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.maxChars)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestSplitText(t *testing.T) {
	ts := NewRecursiveCharacterTextSplitter(50, 0)
	chunks, err := ts.SplitText(strings.Repeat("word ", 40))
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 50)
	}
}
