package orchestrator

import (
	"time"

	"rodinstudio/internal/domain"
)

// State is the lifecycle position of a session.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateResolving  State = "resolving"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Progress is what a progress indicator renders. Indeterminate holds while no
// job list has been seen yet.
type Progress struct {
	Completed     int     `json:"completed"`
	Total         int     `json:"total"`
	Percent       float64 `json:"percent"`
	Indeterminate bool    `json:"indeterminate"`
}

// Snapshot is a read-only copy of a session's observable fields.
type Snapshot struct {
	ID                   string                `json:"id"`
	State                State                 `json:"state"`
	Epoch                uint64                `json:"epoch"`
	IsLoading            bool                  `json:"is_loading"`
	IsPolling            bool                  `json:"is_polling"`
	Error                *domain.UserError     `json:"error"`
	ModelURL             string                `json:"model_url"`
	DownloadURL          string                `json:"download_url"`
	IsDefaultModel       bool                  `json:"is_default_model"`
	JobStatuses          []domain.JobStatus    `json:"job_statuses"`
	Progress             Progress              `json:"progress"`
	EstimatedTimeSeconds int                   `json:"estimated_time_seconds"`
	ElapsedTimeSeconds   int                   `json:"elapsed_time_seconds"`
	StartedAt            *time.Time            `json:"started_at,omitempty"`
	FinishedAt           *time.Time            `json:"finished_at,omitempty"`
	TaskUUID             string                `json:"task_uuid,omitempty"`
	Files                []domain.ArtifactFile `json:"files,omitempty"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Terminal reports whether the lifecycle has stopped on its own.
func (s Snapshot) Terminal() bool {
	return s.State == StateReady || s.State == StateFailed
}

// sessionState is the mutable record behind a Snapshot.
type sessionState struct {
	state       State
	loading     bool
	polling     bool
	err         error
	modelURL    string
	downloadURL string
	isDefault   bool
	jobs        []domain.JobStatus
	agg         domain.AggregateState
	estimate    int
	startedAt   time.Time
	finishedAt  time.Time
	taskUUID    string
	files       []domain.ArtifactFile
	updatedAt   time.Time
}

func idleState(placeholder string, now time.Time) sessionState {
	return sessionState{
		state:     StateIdle,
		modelURL:  placeholder,
		isDefault: placeholder != "",
		agg:       domain.AggregateState{Phase: domain.PhaseNotStarted},
		updatedAt: now,
	}
}
