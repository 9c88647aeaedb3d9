package domain

import "time"

// UnifiedJob references the three sibling stage jobs started by one unified
// request. Research may be absent when the caller skipped it. It carries no
// status of its own; the overall status is computed from the children at read
// time so there is no second source of truth to drift.
type UnifiedJob struct {
	ID          string
	ResearchID  string
	GuideID     string
	CharacterID string
	CreatedAt   time.Time
}

// ChildIDs returns the IDs of the children that exist, in stage order.
func (u *UnifiedJob) ChildIDs() []string {
	ids := make([]string, 0, 3)
	if u.ResearchID != "" {
		ids = append(ids, u.ResearchID)
	}
	if u.GuideID != "" {
		ids = append(ids, u.GuideID)
	}
	if u.CharacterID != "" {
		ids = append(ids, u.CharacterID)
	}
	return ids
}

// AggregateStatus folds child statuses into the composite view: any failure
// wins, completion requires every present child, and a single in-flight child
// keeps the whole unified job in PROCESSING.
func AggregateStatus(children []JobStatus) JobStatus {
	if len(children) == 0 {
		return StatusPending
	}
	completed := 0
	processing := false
	for _, s := range children {
		switch s {
		case StatusFailed:
			return StatusFailed
		case StatusCompleted:
			completed++
		case StatusProcessing:
			processing = true
		}
	}
	if completed == len(children) {
		return StatusCompleted
	}
	if processing || completed > 0 {
		return StatusProcessing
	}
	return StatusPending
}
