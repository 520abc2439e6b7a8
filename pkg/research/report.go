package research

import (
	"fmt"
	"regexp"
	"strings"
)

var listMarker = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s+`)

// parseFindings splits newline-delimited model output into findings,
// dropping list markers, headings and blank lines.
func parseFindings(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func fallbackFinding(q Query) string {
	return fmt.Sprintf("No verified findings could be extracted for the query %q.", q.Query)
}

// degradedReport is used when the final report call fails: an error notice
// followed by the learning set as a numbered list.
func degradedReport(topic string, learnings []string, cause error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Report: %s\n\n", topic)
	if cause != nil {
		fmt.Fprintf(&sb, "> The final report could not be generated (%v). The collected findings are listed below.\n\n", cause)
	} else {
		sb.WriteString("> The final report could not be generated. The collected findings are listed below.\n\n")
	}
	sb.WriteString("## Findings\n\n")
	if len(learnings) == 0 {
		sb.WriteString("No findings were collected.\n")
	}
	for i, l := range learnings {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, l)
	}
	return sb.String()
}

// errorReport is returned when the run cannot proceed at all.
func errorReport(topic string, cause error) string {
	if strings.TrimSpace(topic) == "" {
		topic = "(no topic)"
	}
	return fmt.Sprintf("# Research Report: %s\n\nResearch could not be completed: %v\n", topic, cause)
}

func appendSources(report string, sources []string) string {
	if len(sources) == 0 {
		return report
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(report, "\n"))
	sb.WriteString("\n\n## Sources\n\n")
	for _, u := range sources {
		fmt.Fprintf(&sb, "- %s\n", u)
	}
	return sb.String()
}
