package filestate

import (
	"fmt"
	"strings"
)

// Status is the processing state of a file record.
type Status string

const (
	// StatusUnprocessed marks a record whose ingest has not finished.
	StatusUnprocessed Status = "unprocessed"
	// StatusToLoad marks a record that is ready to be claimed by a watcher.
	StatusToLoad Status = "to_load"
	// StatusProcessing marks a record claimed by a dispatch cycle.
	StatusProcessing Status = "processing"
	// StatusStandard marks a record that is ready for use.
	StatusStandard Status = "std"
	// StatusToDelete marks a record superseded by its derived outputs.
	StatusToDelete Status = "to_delete"
	// StatusFailed marks a record whose pipeline raised a non-recoverable error.
	StatusFailed Status = "failed"
)

var allStatuses = []Status{
	StatusUnprocessed,
	StatusToLoad,
	StatusProcessing,
	StatusStandard,
	StatusToDelete,
	StatusFailed,
}

var transitions = map[Status][]Status{
	StatusUnprocessed: {StatusToLoad},
	StatusToLoad:      {StatusProcessing},
	StatusProcessing:  {StatusStandard, StatusFailed, StatusToDelete},
}

// All returns every known status in lifecycle order.
func All() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Parse converts a status name into a Status.
func Parse(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown file status %q", value)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, status := range allStatuses {
		if status == s {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether from → to is a legal transition. Unknown
// statuses and illegal pairs return false.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the statuses reachable from s in one transition.
func Next(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	return s.Valid() && len(transitions[s]) == 0
}

// IsPipelineOutcome reports whether a pipeline may finish a claimed record
// with s after it succeeds.
func IsPipelineOutcome(s Status) bool {
	return s == StatusStandard || s == StatusToDelete
}

// Terminal lists the statuses a pipeline may be configured to finish with.
func Terminal() []Status {
	return []Status{StatusStandard, StatusToDelete}
}
