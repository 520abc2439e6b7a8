package research

import (
	"strings"
	"sync"
	"time"

	"github.com/mikeboe/deep-research/pkg/clients"
)

// Query is a search query paired with what it is meant to find out.
type Query struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
}

// Options tune a single research run.
type Options struct {
	MaxResultsPerQuery int           `json:"maxResultsPerQuery,omitempty"`
	Requirement        string        `json:"requirement,omitempty"`
	DetailLevel        string        `json:"detailLevel,omitempty"`
	ReportStyleHint    string        `json:"reportStyleHint,omitempty"`
	Parallel           bool          `json:"parallel,omitempty"`
	Timeout            time.Duration `json:"timeout,omitempty"`
}

// Request is the input to Engine.Run.
type Request struct {
	Topic    string `json:"topic"`
	Language string `json:"language,omitempty"`
	// Provider is a provider kind name; empty uses the configured default.
	Provider string `json:"provider,omitempty"`
	// Model overrides the provider's default model.
	Model         string  `json:"model,omitempty"`
	SearchBackend string  `json:"searchBackend,omitempty"`
	MaxIterations int     `json:"maxIterations,omitempty"`
	Options       Options `json:"options"`
}

// State is a step of the research loop.
type State int

const (
	StateGeneratingQueries State = iota
	StateSearching
	StateSynthesizing
	StateReviewing
	StateFinalizingReport
	StateDone
)

func (s State) String() string {
	switch s {
	case StateGeneratingQueries:
		return "generating_queries"
	case StateSearching:
		return "searching"
	case StateSynthesizing:
		return "synthesizing"
	case StateReviewing:
		return "reviewing"
	case StateFinalizingReport:
		return "finalizing_report"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a point-in-time view of a session, handed to progress hooks.
type Snapshot struct {
	State            State    `json:"state"`
	Topic            string   `json:"topic"`
	CurrentIteration int      `json:"currentIteration"`
	MaxIterations    int      `json:"maxIterations"`
	Learnings        int      `json:"learnings"`
	Sources          int      `json:"sources"`
	Queries          []string `json:"queries,omitempty"`
}

// Session is the state of one research run. Learnings and visited URLs are
// append-only and safe for concurrent use.
type Session struct {
	Topic            string
	Language         string
	Provider         clients.ProviderKind
	CurrentIteration int
	MaxIterations    int

	mu        sync.Mutex
	state     State
	learnings []string
	visited   []string
	seen      map[string]bool
	queries   []string
	followUps []Query
}

func newSession(topic, language string, kind clients.ProviderKind, maxIterations int) *Session {
	return &Session{
		Topic:            topic,
		Language:         language,
		Provider:         kind,
		CurrentIteration: 1,
		MaxIterations:    maxIterations,
		seen:             make(map[string]bool),
	}
}

// AddLearnings appends non-blank findings in order.
func (s *Session) AddLearnings(items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range items {
		if l = strings.TrimSpace(l); l != "" {
			s.learnings = append(s.learnings, l)
		}
	}
}

// Learnings returns a copy of the learning set.
func (s *Session) Learnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.learnings...)
}

// AddSources records result URLs, ignoring ones already seen.
func (s *Session) AddSources(urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range urls {
		if u == "" || s.seen[u] {
			continue
		}
		s.seen[u] = true
		s.visited = append(s.visited, u)
	}
}

// Sources returns visited URLs in first-seen order.
func (s *Session) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

func (s *Session) recordQueries(qs []Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		s.queries = append(s.queries, q.Query)
	}
}

func (s *Session) ranQuery(q string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, prev := range s.queries {
		if strings.EqualFold(prev, q) {
			return true
		}
	}
	return false
}

func (s *Session) addFollowUps(qs []Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followUps = append(s.followUps, qs...)
}

func (s *Session) FollowUps() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Query(nil), s.followUps...)
}

func (s *Session) nextIteration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentIteration++
}

func (s *Session) setState(st State) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return Snapshot{
		State:            st,
		Topic:            s.Topic,
		CurrentIteration: s.CurrentIteration,
		MaxIterations:    s.MaxIterations,
		Learnings:        len(s.learnings),
		Sources:          len(s.visited),
		Queries:          append([]string(nil), s.queries...),
	}
}
