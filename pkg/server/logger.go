package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/database"
)

// DBLogHandler is a slog.Handler that writes records to the research_logs
// table of one job.
type DBLogHandler struct {
	DB    *database.PostgresDB
	JobID uuid.UUID
	Level slog.Leveler

	attrs  []slog.Attr
	groups []string
}

func NewDBLogHandler(db *database.PostgresDB, jobID uuid.UUID, level slog.Leveler) *DBLogHandler {
	return &DBLogHandler{
		DB:    db,
		JobID: jobID,
		Level: level,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.Level == nil {
		return true
	}
	return level >= h.Level.Level()
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	metaJSON, err := json.Marshal(h.metadata(r))
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO research_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Detached from the caller so log lines survive request cancellation.
	_, err = h.DB.Pool.Exec(context.WithoutCancel(ctx), query, h.JobID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

// metadata merges handler attributes and record attributes into one map,
// nesting record attributes under the open groups.
func (h *DBLogHandler) metadata(r slog.Record) map[string]any {
	root := make(map[string]any)
	for _, a := range h.attrs {
		addAttr(root, a)
	}

	target := root
	for _, g := range h.groups {
		next, ok := target[g].(map[string]any)
		if !ok {
			next = make(map[string]any)
			target[g] = next
		}
		target = next
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(target, a)
		return true
	})
	return root
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		target := m
		if a.Key != "" {
			sub, ok := m[a.Key].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				m[a.Key] = sub
			}
			target = sub
		}
		for _, ga := range a.Value.Group() {
			addAttr(target, ga)
		}
		return
	}
	switch v := a.Value.Any().(type) {
	case error:
		m[a.Key] = v.Error()
	case time.Duration:
		m[a.Key] = v.String()
	default:
		m[a.Key] = v
	}
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	if len(h.groups) == 0 {
		h2.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
		return &h2
	}
	// Attributes added inside a group nest under it.
	grouped := slog.Attr{Key: h.groups[len(h.groups)-1], Value: slog.GroupValue(attrs...)}
	for i := len(h.groups) - 2; i >= 0; i-- {
		grouped = slog.Attr{Key: h.groups[i], Value: slog.GroupValue(grouped)}
	}
	h2.attrs = append(append([]slog.Attr(nil), h.attrs...), grouped)
	return &h2
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}
