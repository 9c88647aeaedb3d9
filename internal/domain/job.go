package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Stage enumerates the independent processing pipelines that run against a
// photographed seed packet.
type Stage string

const (
	StageResearch  Stage = "research"
	StageGuide     Stage = "guide"
	StageCharacter Stage = "character"
)

// JobStatus enumerates job lifecycle states. The canonical casing is
// upper-case; ParseStatus tolerates any casing found in stored records.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// ParseStatus normalizes a stored status value to its canonical form.
// Unknown values map to PENDING so that a half-written record still renders
// as a non-terminal job instead of breaking the polling contract.
func ParseStatus(raw string) JobStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatusProcessing):
		return StatusProcessing
	case string(StatusCompleted):
		return StatusCompleted
	case string(StatusFailed):
		return StatusFailed
	default:
		return StatusPending
	}
}

// IsTerminal reports whether the status is final. Terminal jobs never
// transition again.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the central trackable unit of asynchronous work.
type Job struct {
	ID        string
	Stage     Stage
	Status    JobStatus
	Message   string
	Result    json.RawMessage
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobView is the polling contract shared by every status endpoint so a single
// client polling loop works for research, guide, character and unified jobs.
type JobView struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// View renders the job in the polling contract shape. Result is only exposed
// for completed jobs and the error string only for failed ones.
func (j *Job) View() JobView {
	v := JobView{
		ID:        j.ID,
		Status:    j.Status,
		Message:   j.Message,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	switch j.Status {
	case StatusCompleted:
		v.Result = j.Result
	case StatusFailed:
		v.Error = j.Error
	}
	return v
}
