package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// JobService is what the HTTP handler needs from the job store.
type JobService interface {
	CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error)
	Ping(ctx context.Context) error
}

// Service persists research jobs in PostgreSQL and runs each one in its own
// goroutine.
type Service struct {
	DB  *database.PostgresDB
	Cfg *config.Config

	wg sync.WaitGroup
}

func NewService(db *database.PostgresDB, cfg *config.Config) *Service {
	return &Service{
		DB:  db,
		Cfg: cfg,
	}
}

type Job struct {
	ID        uuid.UUID       `json:"id"`
	Topic     string          `json:"topic"`
	Status    string          `json:"status"`
	Report    *string         `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Config    json.RawMessage `json:"config"`
	State     json.RawMessage `json:"state,omitempty"`
}

type CreateJobRequest struct {
	Topic              string `json:"topic" binding:"required,min=2,max=500"`
	Language           string `json:"language" binding:"omitempty,max=40"`
	Provider           string `json:"provider" binding:"omitempty,oneof=google gemini openai anthropic claude mock"`
	Model              string `json:"model" binding:"omitempty,max=100"`
	SearchBackend      string `json:"searchBackend" binding:"omitempty,oneof=tavily brave arxiv mock"`
	MaxIterations      int    `json:"maxIterations" binding:"omitempty,min=1,max=10"`
	MaxResultsPerQuery int    `json:"maxResultsPerQuery" binding:"omitempty,min=1,max=20"`
	Requirement        string `json:"requirement" binding:"omitempty,max=2000"`
	DetailLevel        string `json:"detailLevel" binding:"omitempty,max=100"`
	ReportStyleHint    string `json:"reportStyleHint" binding:"omitempty,max=200"`
	Parallel           bool   `json:"parallel"`
	TimeoutSeconds     int    `json:"timeoutSeconds" binding:"omitempty,min=10,max=7200"`
}

// ResearchRequest converts the HTTP payload into an engine request.
func (r CreateJobRequest) ResearchRequest() research.Request {
	return research.Request{
		Topic:         r.Topic,
		Language:      r.Language,
		Provider:      r.Provider,
		Model:         r.Model,
		SearchBackend: r.SearchBackend,
		MaxIterations: r.MaxIterations,
		Options: research.Options{
			MaxResultsPerQuery: r.MaxResultsPerQuery,
			Requirement:        r.Requirement,
			DetailLevel:        r.DetailLevel,
			ReportStyleHint:    r.ReportStyleHint,
			Parallel:           r.Parallel,
			Timeout:            time.Duration(r.TimeoutSeconds) * time.Second,
		},
	}
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	researchReq := req.ResearchRequest()
	configJSON, err := json.Marshal(researchReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, topic, status, config)
		VALUES ($1, $2, $3, $4)
		RETURNING id, topic, status, created_at, updated_at, config
	`

	job := &Job{}
	err = s.DB.Pool.QueryRow(ctx, query, jobID, req.Topic, StatusPending, configJSON).Scan(
		&job.ID, &job.Topic, &job.Status, &job.CreatedAt, &job.UpdatedAt, &job.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Start background worker
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runWorker(job.ID, researchReq)
	}()

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, topic, status, report, created_at, updated_at, config, state
		FROM research_jobs
		WHERE id = $1
	`
	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Topic, &job.Status, &job.Report, &job.CreatedAt, &job.UpdatedAt, &job.Config, &job.State,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `
		SELECT id, topic, status, created_at, updated_at, config, state
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Topic, &job.Status, &job.CreatedAt, &job.UpdatedAt, &job.Config, &job.State); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

// FailInterruptedJobs marks jobs left pending or running by a previous
// process as failed. Jobs are not resumable.
func (s *Service) FailInterruptedJobs(ctx context.Context) (int64, error) {
	tag, err := s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = $1, updated_at = NOW() WHERE status IN ($2, $3)",
		StatusFailed, StatusPending, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Wait blocks until all running workers have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runWorker(jobID uuid.UUID, req research.Request) {
	ctx := context.Background()

	// Update status to running
	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", jobID, StatusRunning)

	// Configure engine with DB logger
	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID, logLevel(s.Cfg.LogLevel))).With("job_id", jobID.String())

	engine := research.NewEngine(s.Cfg)
	engine.Logger = dbLogger

	// Hook for state persistence
	engine.OnStateUpdate = func(snap research.Snapshot) {
		stateJSON, err := json.Marshal(snap)
		if err != nil {
			dbLogger.Error("Failed to marshal state", "error", err)
			return
		}

		_, err = s.DB.Pool.Exec(context.Background(),
			"UPDATE research_jobs SET state = $2, updated_at = NOW() WHERE id = $1",
			jobID, stateJSON)

		if err != nil {
			dbLogger.Error("Failed to save state to DB", "error", err)
		}
	}

	report := engine.Run(ctx, req)

	// Update job with report
	_, err := s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = $3, report = $2, updated_at = NOW() WHERE id = $1",
		jobID, report, StatusCompleted)

	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
		s.failJob(ctx, jobID)
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID) {
	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", jobID, StatusFailed)
}

func logLevel(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}
