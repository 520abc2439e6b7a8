package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type query struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []query
	}{
		{
			name: "valid array",
			text: `[{"query":"a","researchGoal":"b"}]`,
			want: []query{{Query: "a", ResearchGoal: "b"}},
		},
		{
			name: "not json",
			text: "not json",
			want: []query{},
		},
		{
			name: "fenced empty array",
			text: "```json\n[]\n```",
			want: []query{},
		},
		{
			name: "prose around array",
			text: "Here are the queries:\n[{\"query\":\"x\",\"researchGoal\":\"y\"}]\nGood luck!",
			want: []query{{Query: "x", ResearchGoal: "y"}},
		},
		{
			name: "single quotes",
			text: `[{'query':'a','researchGoal':'b'}]`,
			want: []query{{Query: "a", ResearchGoal: "b"}},
		},
		{
			name: "bare keys",
			text: `[{query: "a", researchGoal: "b"}]`,
			want: []query{{Query: "a", ResearchGoal: "b"}},
		},
		{
			name: "bare keys and single quotes",
			text: "```\n[{query: 'a', researchGoal: 'b'}]\n```",
			want: []query{{Query: "a", ResearchGoal: "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStructured(tt.text, []query{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStructuredObject(t *testing.T) {
	type review struct {
		Queries []string `json:"queries"`
		Done    bool     `json:"done"`
	}

	got := ParseStructured("Result: {\"queries\": [\"q1\"], \"done\": true} -- end", review{})
	assert.Equal(t, review{Queries: []string{"q1"}, Done: true}, got)

	def := review{Done: true}
	assert.Equal(t, def, ParseStructured("{broken", def))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "[1]", StripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, "[1]", StripCodeFence("```\n[1]\n```"))
	assert.Equal(t, "[1]", StripCodeFence("  [1]  "))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSON(`noise {"a":1} noise`))
	assert.Equal(t, `[1,[2]]`, ExtractJSON(`x [1,[2]] y`))
	assert.Equal(t, "plain", ExtractJSON("plain"))
}

func TestQuoteBareKeys(t *testing.T) {
	assert.Equal(t, `{"a": 1, "b_2": "x"}`, QuoteBareKeys(`{a: 1, b_2: "x"}`))
	assert.Equal(t, `{"a": 1}`, QuoteBareKeys(`{"a": 1}`))
}
