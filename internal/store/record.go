package store

import (
	"time"

	"github.com/rshade/bulkops/internal/engine"
)

// Status is the lifecycle of a persisted run.
type Status string

// Run statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further step may run.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// Record is one persisted run.
type Record struct {
	ID      string         `json:"id"`
	Request engine.Request `json:"request"`
	State   engine.State   `json:"state"`
	Status  Status         `json:"status"`
	// LastError holds the error of the last failed step; the state is still
	// the one from the last successful step.
	LastError string `json:"last_error,omitempty"`
	Steps     int    `json:"steps"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
	TTLSeconds int       `json:"ttl_seconds,omitempty"`
}

// NewRecord wraps a freshly submitted run.
func NewRecord(req engine.Request, state engine.State, ttlSeconds int) *Record {
	now := time.Now().UTC()
	r := &Record{
		ID:         req.ID,
		Request:    req,
		State:      state,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		TTLSeconds: ttlSeconds,
	}
	r.Touch()
	return r
}

// Touch marks the record as updated now and extends its expiry.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now().UTC()
	if r.TTLSeconds > 0 {
		r.ExpiresAt = r.UpdatedAt.Add(time.Duration(r.TTLSeconds) * time.Second)
	} else {
		r.ExpiresAt = time.Time{}
	}
}

// IsExpired reports whether the record outlived its TTL. Records without a
// TTL never expire.
func (r *Record) IsExpired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}

// Age returns the time since the run was submitted.
func (r *Record) Age() time.Duration {
	return time.Since(r.CreatedAt)
}

// TimeUntilExpiration returns the time left before the record expires, or 0.
func (r *Record) TimeUntilExpiration() time.Duration {
	if r.ExpiresAt.IsZero() {
		return 0
	}
	return max(time.Until(r.ExpiresAt), 0)
}
