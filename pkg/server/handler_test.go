package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	created []CreateJobRequest
	jobs    map[uuid.UUID]*Job
	pingErr error
}

func (f *fakeJobs) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	f.created = append(f.created, req)
	job := &Job{ID: uuid.New(), Topic: req.Topic, Status: StatusPending, CreatedAt: time.Now()}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobs) ListJobs(ctx context.Context) ([]Job, error) { return nil, nil }

func (f *fakeJobs) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	return nil, nil
}

func (f *fakeJobs) Ping(ctx context.Context) error { return f.pingErr }

func newTestRouter(f *fakeJobs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f).RegisterRoutes(r)
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateJobValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"valid", map[string]any{"topic": "Quantum computing", "maxIterations": 2, "provider": "mock"}, http.StatusCreated},
		{"missing topic", map[string]any{"language": "German"}, http.StatusBadRequest},
		{"bad provider", map[string]any{"topic": "x y", "provider": "cohere"}, http.StatusBadRequest},
		{"too many iterations", map[string]any{"topic": "x y", "maxIterations": 50}, http.StatusBadRequest},
		{"bad backend", map[string]any{"topic": "x y", "searchBackend": "bing"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeJobs{jobs: map[uuid.UUID]*Job{}}
			w := do(newTestRouter(f), http.MethodPost, "/api/research", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestCreateJobMapsRequest(t *testing.T) {
	f := &fakeJobs{jobs: map[uuid.UUID]*Job{}}
	w := do(newTestRouter(f), http.MethodPost, "/api/research", map[string]any{
		"topic":          "Solid state batteries",
		"parallel":       true,
		"timeoutSeconds": 120,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, f.created, 1)

	req := f.created[0].ResearchRequest()
	assert.Equal(t, "Solid state batteries", req.Topic)
	assert.True(t, req.Options.Parallel)
	assert.Equal(t, 2*time.Minute, req.Options.Timeout)
}

func TestGetJob(t *testing.T) {
	f := &fakeJobs{jobs: map[uuid.UUID]*Job{}}
	r := newTestRouter(f)

	job, _ := f.CreateJob(context.Background(), CreateJobRequest{Topic: "t"})

	w := do(r, http.MethodGet, "/api/research/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/research/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/research/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEndpointsReturnEmptyArrays(t *testing.T) {
	r := newTestRouter(&fakeJobs{jobs: map[uuid.UUID]*Job{}})

	w := do(r, http.MethodGet, "/api/research", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(r, http.MethodGet, "/api/research/"+uuid.NewString()+"/logs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHealthz(t *testing.T) {
	f := &fakeJobs{jobs: map[uuid.UUID]*Job{}}
	r := newTestRouter(f)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", nil).Code)

	f.pingErr = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/healthz", nil).Code)
}

func TestDBLogHandlerMetadata(t *testing.T) {
	var h slog.Handler = NewDBLogHandler(nil, uuid.New(), slog.LevelInfo)
	h = h.WithAttrs([]slog.Attr{slog.String("job_id", "j1")})
	h = h.WithGroup("search")
	h = h.WithAttrs([]slog.Attr{slog.String("backend", "tavily")})

	r := slog.NewRecord(time.Now(), slog.LevelWarn, "Search failed", 0)
	r.AddAttrs(slog.Any("error", errors.New("boom")), slog.Duration("wait", 2*time.Second))

	meta := h.(*DBLogHandler).metadata(r)
	assert.Equal(t, "j1", meta["job_id"])
	assert.Equal(t, map[string]any{
		"backend": "tavily",
		"error":   "boom",
		"wait":    "2s",
	}, meta["search"])

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, logLevel("nonsense"))
}
