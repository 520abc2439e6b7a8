package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Line prefixes and tags prompt builders use so the mock can answer in kind.
const (
	MarkerTopic          = "Topic:"
	MarkerQuery          = "Query:"
	MarkerLearningsOpen  = "<learnings>"
	MarkerLearningsClose = "</learnings>"
)

var (
	topicLine = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(MarkerTopic) + `\s*(.+)$`)
	queryLine = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(MarkerQuery) + `\s*(.+)$`)
)

// MockProvider returns deterministic responses that depend only on the
// capability's purpose and the prompt text, never on kind or model.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Invoke(ctx context.Context, c Capability, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ProviderError{Provider: KindMock, Err: err}
	}

	switch c.Purpose {
	case PurposeQueries:
		return mockQueries(extract(topicLine, prompt, "the topic")), nil
	case PurposeSynthesis:
		return mockFindings(extract(queryLine, prompt, "the query")), nil
	case PurposeReview:
		return "[]", nil
	case PurposeReport:
		return mockReport(extract(topicLine, prompt, "the topic"), learningsBlock(prompt)), nil
	default:
		return "Mock response: " + truncate(strings.TrimSpace(prompt), 80), nil
	}
}

func mockQueries(topic string) string {
	type query struct {
		Query        string `json:"query"`
		ResearchGoal string `json:"researchGoal"`
	}
	queries := []query{
		{Query: topic + " fundamentals", ResearchGoal: "Establish the core concepts behind " + topic},
		{Query: topic + " recent advances", ResearchGoal: "Identify the latest developments in " + topic},
		{Query: topic + " open challenges", ResearchGoal: "Understand the unsolved problems in " + topic},
	}
	data, _ := json.Marshal(queries)
	return string(data)
}

func mockFindings(query string) string {
	return strings.Join([]string{
		fmt.Sprintf("Sources on %q agree on a shared set of core definitions.", query),
		fmt.Sprintf("Recent work on %q reports measurable progress over earlier approaches.", query),
		fmt.Sprintf("Open questions about %q remain around scalability and cost.", query),
	}, "\n")
}

func mockReport(topic string, learnings []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report: %s\n\n", topic)
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "This report consolidates %d findings gathered while researching %s.\n\n", len(learnings), topic)
	sb.WriteString("## Key Findings\n\n")
	if len(learnings) == 0 {
		sb.WriteString("No findings were collected.\n")
	}
	for _, l := range learnings {
		fmt.Fprintf(&sb, "- %s\n", l)
	}
	return sb.String()
}

func learningsBlock(prompt string) []string {
	start := strings.Index(prompt, MarkerLearningsOpen)
	end := strings.LastIndex(prompt, MarkerLearningsClose)
	if start < 0 || end <= start {
		return nil
	}
	var out []string
	for _, line := range strings.Split(prompt[start+len(MarkerLearningsOpen):end], "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func extract(re *regexp.Regexp, prompt, fallback string) string {
	m := re.FindStringSubmatch(prompt)
	if len(m) < 2 || strings.TrimSpace(m[1]) == "" {
		return fallback
	}
	return strings.TrimSpace(m[1])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
