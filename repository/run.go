package repository

import (
	"context"
	"errors"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunSucceeded  RunStatus = "success"
	RunFailed     RunStatus = "error"
)

// Run is the ledger entry for one background research request.
type Run struct {
	ID            string           `json:"id"`
	Query         string           `json:"query"`
	Email         string           `json:"email"`
	Status        RunStatus        `json:"status"`
	Message       string           `json:"message,omitempty"`
	Report        string           `json:"report,omitempty"`
	Sources       []ScoredDocument `json:"sources,omitempty"`
	TotalFetched  int              `json:"total_fetched"`
	RelevantCount int              `json:"relevant_count"`
	Warnings      []string         `json:"warnings,omitempty"`
	Delivered     bool             `json:"delivered"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type RunRepo interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
}
