package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter wraps the langchaingo text splitter
type TextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewRecursiveCharacterTextSplitter creates a new recursive character text splitter
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return &TextSplitter{splitter: ts}
}

// SplitText splits text into chunks
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	return ts.splitter.SplitText(text)
}

// TrimToSize keeps whole leading chunks of text until adding the next one
// would exceed maxChars. A first chunk that is itself too long is cut on a
// rune boundary.
func TrimToSize(text string, maxChars int) string {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return text
	}

	chunkSize := min(maxChars, 1000)
	chunks, err := NewRecursiveCharacterTextSplitter(chunkSize, 0).SplitText(text)
	if err != nil || len(chunks) == 0 {
		return cut(text, maxChars)
	}

	var sb strings.Builder
	used := 0
	for _, c := range chunks {
		n := len([]rune(c))
		if used > 0 {
			n++
		}
		if used+n > maxChars {
			break
		}
		if used > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(c)
		used += n
	}

	if used == 0 {
		return cut(chunks[0], maxChars)
	}
	return sb.String()
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
