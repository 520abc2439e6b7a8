package research

import (
	"fmt"
	"strings"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
)

// maxContentChars bounds the search content placed in one synthesis prompt.
const maxContentChars = 25000

const querySchema = `Respond with a JSON array only, no prose. Each element has the shape:
{"query": "<search engine query>", "researchGoal": "<what this query should find out and how to dig deeper>"}`

func systemPreamble(language string) string {
	return fmt.Sprintf(`You are an expert researcher. Be highly organized, accurate and thorough.
Treat the user as a domain expert. Mark speculation clearly.
Write everything in %s.`, language)
}

func queriesPrompt(req Request, numQueries int) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble(req.Language))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%s %s\n", clients.MarkerTopic, req.Topic)
	if req.Options.Requirement != "" {
		fmt.Fprintf(&sb, "Additional requirement: %s\n", req.Options.Requirement)
	}
	fmt.Fprintf(&sb, "\nGenerate up to %d distinct search queries to research the topic. Make each query specific and avoid overlap between them.\n\n", numQueries)
	sb.WriteString(querySchema)
	return sb.String()
}

func synthesisPrompt(req Request, q Query, results []search.Result) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble(req.Language))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%s %s\n", clients.MarkerTopic, req.Topic)
	fmt.Fprintf(&sb, "%s %s\n", clients.MarkerQuery, q.Query)
	if q.ResearchGoal != "" {
		fmt.Fprintf(&sb, "Research goal: %s\n", q.ResearchGoal)
	}

	budget := maxContentChars / max(len(results), 1)
	sb.WriteString("\nSearch results:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "<content source=%q>\n%s\n</content>\n", r.URL, splitter.TrimToSize(r.Content, budget))
	}

	sb.WriteString(`
Extract up to 3 learnings from the search results. Each learning must be one concise, information-dense sentence
that includes concrete entities, numbers and dates where available. Write one learning per line with no numbering,
bullets or extra commentary.`)
	return sb.String()
}

func reviewPrompt(req Request, s *Session, learnings []string) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble(req.Language))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%s %s\n", clients.MarkerTopic, req.Topic)
	if req.Options.Requirement != "" {
		fmt.Fprintf(&sb, "Additional requirement: %s\n", req.Options.Requirement)
	}
	fmt.Fprintf(&sb, "Iteration: %d of %d\n\n", s.CurrentIteration, s.MaxIterations)
	writeLearnings(&sb, learnings)

	sb.WriteString(`
Decide whether more research is needed to cover the topic comprehensively. If it is, propose up to 3 new search
queries that fill the gaps in the learnings above without repeating earlier queries. If the learnings are sufficient,
return an empty array [].

`)
	sb.WriteString(querySchema)
	return sb.String()
}

func reportPrompt(req Request, learnings []string, followUps []Query) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble(req.Language))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%s %s\n", clients.MarkerTopic, req.Topic)
	if req.Options.Requirement != "" {
		fmt.Fprintf(&sb, "Additional requirement: %s\n", req.Options.Requirement)
	}
	if req.Options.DetailLevel != "" {
		fmt.Fprintf(&sb, "Level of detail: %s\n", req.Options.DetailLevel)
	}
	if req.Options.ReportStyleHint != "" {
		fmt.Fprintf(&sb, "Report style: %s\n", req.Options.ReportStyleHint)
	}
	sb.WriteString("\n")
	writeLearnings(&sb, learnings)

	if len(followUps) > 0 {
		sb.WriteString("\nDirections considered during research:\n")
		for _, q := range followUps {
			fmt.Fprintf(&sb, "- %s\n", q.Query)
		}
	}

	sb.WriteString(`
Write a final report on the topic in Markdown using all the learnings above. Start with a level one heading,
include a short summary, then organize the findings into sections. Be as detailed as the learnings allow.
Do not invent sources; a source list is appended separately.`)
	return sb.String()
}

func writeLearnings(sb *strings.Builder, learnings []string) {
	sb.WriteString(clients.MarkerLearningsOpen)
	sb.WriteString("\n")
	for _, l := range learnings {
		fmt.Fprintf(sb, "- %s\n", l)
	}
	sb.WriteString(clients.MarkerLearningsClose)
	sb.WriteString("\n")
}
