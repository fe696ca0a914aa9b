package domain

import (
	"fmt"
	"strings"
)

// ConflictStrategy decides what an import does with a schedule that
// overlaps existing ones.
type ConflictStrategy string

const (
	// ConflictSkip drops the incoming schedule and counts it as failed.
	ConflictSkip ConflictStrategy = "SKIP"
	// ConflictReplace deletes the overlapping schedules and inserts the new one.
	ConflictReplace ConflictStrategy = "REPLACE"
	// ConflictKeepBoth inserts the new schedule next to the existing ones.
	ConflictKeepBoth ConflictStrategy = "KEEP_BOTH"
)

// ParseConflictStrategy accepts the strategy name in any case; "-" and "_"
// are interchangeable. An empty string means SKIP.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch ConflictStrategy(norm) {
	case "":
		return ConflictSkip, nil
	case ConflictSkip, ConflictReplace, ConflictKeepBoth:
		return ConflictStrategy(norm), nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q", s)
	}
}

// ImportResult summarizes an import batch.
type ImportResult struct {
	SuccessCount int
	FailedCount  int
	// Conflicts holds the incoming schedules that overlapped existing ones.
	Conflicts []*Schedule
	// Imported holds the schedules that were persisted.
	Imported []*Schedule
}

// Total returns the number of decoded schedules the batch handled.
func (r ImportResult) Total() int {
	return r.SuccessCount + r.FailedCount
}

// SyncResult summarizes one subscription sync.
type SyncResult struct {
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	AddedCount     int    `json:"added_count"`
	UpdatedCount   int    `json:"updated_count"`
	RemovedCount   int    `json:"removed_count"`
	Error          string `json:"error,omitempty"`
}

// FailedSync builds an unsuccessful result with zero counts.
func FailedSync(subscriptionID, reason string) SyncResult {
	return SyncResult{SubscriptionID: subscriptionID, Error: reason}
}
