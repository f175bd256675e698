package domain

import "time"

type UserID string

// SystemUserID is the creator recorded on sessions produced by matching.
const SystemUserID UserID = "system"

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
	RoleObserver    Role = "observer"
)

// Valid reports whether r is a known session role.
func (r Role) Valid() bool {
	switch r {
	case RoleInterviewer, RoleCandidate, RoleObserver:
		return true
	}
	return false
}

// Decided reports whether r is one of the two interview roles.
func (r Role) Decided() bool {
	return r == RoleInterviewer || r == RoleCandidate
}

// Counterpart returns the opposite interview role.
func (r Role) Counterpart() Role {
	switch r {
	case RoleInterviewer:
		return RoleCandidate
	case RoleCandidate:
		return RoleInterviewer
	}
	return ""
}

type QueueStatus string

const (
	QueueWaiting QueueStatus = "waiting"
	QueueMatched QueueStatus = "matched"
	QueueExpired QueueStatus = "expired"
)

// QueueEntry is a standing request to be matched for one slot.
type QueueEntry struct {
	ID         string      `json:"id"`
	UserID     UserID      `json:"user_id"`
	Role       Role        `json:"role"`
	Profession string      `json:"profession,omitempty"`
	Language   string      `json:"language,omitempty"`
	SlotUTC    time.Time   `json:"slot_utc"`
	Status     QueueStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	// Seq breaks CreatedAt ties in insertion order.
	Seq int64 `json:"-"`
}

// QueueKey identifies one matching bucket.
type QueueKey struct {
	SlotUTC    time.Time
	Profession string
	Language   string
}

// WaitingFilter selects waiting entries. Zero fields match anything;
// Profession and Language are soft: an entry that leaves them unset
// still qualifies.
type WaitingFilter struct {
	Role       Role
	SlotUTC    time.Time
	Profession string
	Language   string
}

// Accepts applies the soft profession/language part of the filter.
func (f WaitingFilter) Accepts(e QueueEntry) bool {
	if f.Role != "" && e.Role != f.Role {
		return false
	}
	if !f.SlotUTC.IsZero() && !e.SlotUTC.Equal(f.SlotUTC) {
		return false
	}
	return softEqual(f.Profession, e.Profession) && softEqual(f.Language, e.Language)
}

// Compatible reports whether two entries can be paired by profession and language.
func Compatible(a, b QueueEntry) bool {
	return softEqual(a.Profession, b.Profession) && softEqual(a.Language, b.Language)
}

// Resolve picks the first non-empty value in priority order.
func Resolve(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func softEqual(a, b string) bool {
	return a == "" || b == "" || a == b
}

// EntryBefore reports whether a is ahead of b in FIFO order (CreatedAt, then Seq).
func EntryBefore(a, b QueueEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// JoinResult is the outcome of joining the queue.
type JoinResult struct {
	Entry    QueueEntry `json:"entry"`
	Queued   bool       `json:"queued"`
	Position int        `json:"position"`
	// Session is set when the fast-path match paired this entry.
	Session     *Session          `json:"session,omitempty"`
	Unavailable *MatchUnavailable `json:"unavailable,omitempty"`
}

// MatchUnavailable is the normal "keep waiting" outcome.
type MatchUnavailable struct {
	// SuggestedSlot is the nearest upcoming slot where a compatible counterpart waits.
	SuggestedSlot *time.Time `json:"suggested_slot,omitempty"`
}
