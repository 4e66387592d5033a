package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusDegraded  RunStatus = "degraded" // items returned, persist or analytics failed
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun records one pipeline invocation for a query.
type ScrapeRun struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Query         string     `json:"query" db:"query"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	NodesFound    int        `json:"nodes_found" db:"nodes_found"`
	ItemsValid    int        `json:"items_valid" db:"items_valid"`
	ItemsRejected int        `json:"items_rejected" db:"items_rejected"`
	ErrorMessage  string     `json:"error_message" db:"error_message"`
}
