package domain

import "time"

type FeedbackStatus string

const (
	FeedbackNone    FeedbackStatus = "none"
	FeedbackPending FeedbackStatus = "pending"
)

// UserState is the per-user gating and profile state.
type UserState struct {
	UserID           UserID         `json:"user_id"`
	FeedbackStatus   FeedbackStatus `json:"feedback_status"`
	PendingSessionID SessionID      `json:"pending_session_id,omitempty"`
	Tools            []string       `json:"tools"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewUserState returns the state of a user never seen before.
func NewUserState(userID UserID) UserState {
	return UserState{UserID: userID, FeedbackStatus: FeedbackNone, Tools: []string{}}
}

// MarkPending gates the user on feedback for sessionID.
func (u *UserState) MarkPending(sessionID SessionID, at time.Time) {
	u.FeedbackStatus = FeedbackPending
	u.PendingSessionID = sessionID
	u.UpdatedAt = at
}

// ClearPending lifts the gate when it was raised by sessionID. It reports
// whether anything changed.
func (u *UserState) ClearPending(sessionID SessionID, at time.Time) bool {
	if u.FeedbackStatus != FeedbackPending || u.PendingSessionID != sessionID {
		return false
	}
	u.FeedbackStatus = FeedbackNone
	u.PendingSessionID = ""
	u.UpdatedAt = at
	return true
}

// Clone returns a deep copy.
func (u UserState) Clone() UserState {
	u.Tools = append([]string{}, u.Tools...)
	return u
}

// Feedback is one participant's evaluation of a session.
type Feedback struct {
	ID         string         `json:"id"`
	SessionID  SessionID      `json:"session_id"`
	FromUserID UserID         `json:"from_user_id"`
	ToUserID   UserID         `json:"to_user_id,omitempty"`
	Ratings    map[string]int `json:"ratings"`
	Comments   string         `json:"comments,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Clone returns a deep copy.
func (f Feedback) Clone() Feedback {
	ratings := make(map[string]int, len(f.Ratings))
	for k, v := range f.Ratings {
		ratings[k] = v
	}
	f.Ratings = ratings
	return f
}
