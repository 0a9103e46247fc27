package store

import "time"

// Insight is the storage representation of an AI analysis, shaped for the
// JSON API and SSE stream.
type Insight struct {
	Summary     string    `json:"summary"`
	RootCause   string    `json:"root_cause"`
	Remediation string    `json:"remediation"`
	ModelUsed   string    `json:"model_used"`
	TokensUsed  int       `json:"tokens_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// Snapshot is the latest known state of one watched issue.
type Snapshot struct {
	// IssueID identifies the issue.
	IssueID string `json:"issue_id"`

	// SessionID is the polling session that produced the snapshot.
	SessionID string `json:"session_id,omitempty"`

	// State is "pending", "ready" or "unavailable".
	State string `json:"state"`

	// Attempt is the number of poll ticks spent so far.
	Attempt int `json:"attempt"`

	// Insight is set once State is "ready".
	Insight *Insight `json:"insight"`

	// UpdatedAt is when the snapshot was produced.
	UpdatedAt time.Time `json:"updated_at"`

	// Removed is set on the notification sent when an issue stops being
	// watched. Stored snapshots never carry it.
	Removed bool `json:"removed,omitempty"`
}

// Store holds snapshots and lets subscribers follow changes.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update stores a snapshot keyed by IssueID and notifies subscribers.
	Update(snap Snapshot)

	// Get returns the snapshot for issueID.
	Get(issueID string) (Snapshot, bool)

	// GetAll returns every snapshot ordered by IssueID.
	GetAll() []Snapshot

	// Delete removes the snapshot for issueID and notifies subscribers with
	// a Removed snapshot. Reports whether anything was removed.
	Delete(issueID string) bool

	// Subscribe returns a buffered channel receiving every change.
	// Caller must call Unsubscribe when done.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
