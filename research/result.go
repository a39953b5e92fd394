package research

import (
	"errors"

	"deskresearch/repository"
)

var (
	ErrNoEvidence = errors.New("no evidence found")
	ErrEncoding   = errors.New("embedding failed")
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindNoEvidence     ErrorKind = "no_evidence"
	KindEncodingFailed ErrorKind = "encoding_failed"
	KindInternal       ErrorKind = "internal"
)

// Result is the outcome of one pipeline run. Sources is never nil.
type Result struct {
	RunID         string                      `json:"run_id"`
	Status        Status                      `json:"status"`
	Kind          ErrorKind                   `json:"error_kind,omitempty"`
	Message       string                      `json:"message,omitempty"`
	Report        string                      `json:"report,omitempty"`
	Sources       []repository.ScoredDocument `json:"sources"`
	TotalFetched  int                         `json:"total_fetched"`
	RelevantCount int                         `json:"relevant_count"`
	Warnings      []string                    `json:"warnings,omitempty"`
}

func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
