package domain

import "time"

type SessionID string

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionScheduled SessionStatus = "scheduled"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionExpired   SessionStatus = "expired"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionPending:   {SessionScheduled, SessionActive, SessionCancelled, SessionExpired},
	SessionScheduled: {SessionActive, SessionCancelled, SessionExpired},
	SessionActive:    {SessionCompleted, SessionCancelled, SessionExpired},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to SessionStatus) bool {
	for _, s := range sessionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPending, SessionScheduled, SessionActive, SessionCompleted, SessionCancelled, SessionExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return len(sessionTransitions[s]) == 0
}

type VideoLinkStatus string

const (
	VideoLinkPending VideoLinkStatus = "pending"
	VideoLinkActive  VideoLinkStatus = "active"
	VideoLinkManual  VideoLinkStatus = "manual"
	VideoLinkExpired VideoLinkStatus = "expired"
)

type Session struct {
	ID                SessionID       `json:"id"`
	InterviewerUserID UserID          `json:"interviewer_user_id,omitempty"`
	CandidateUserID   UserID          `json:"candidate_user_id,omitempty"`
	Observers         []UserID        `json:"observers"`
	Profession        string          `json:"profession,omitempty"`
	Language          string          `json:"language,omitempty"`
	SlotUTC           time.Time       `json:"slot_utc"`
	Status            SessionStatus   `json:"status"`
	RoomID            string          `json:"room_id"`
	VideoLink         string          `json:"video_link,omitempty"`
	VideoLinkStatus   VideoLinkStatus `json:"video_link_status"`
	CreatorID         UserID          `json:"creator_id"`
	StartTime         time.Time       `json:"start_time"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RoleOf returns the role userID holds in the session.
func (s *Session) RoleOf(userID UserID) (Role, bool) {
	switch {
	case userID == "":
		return "", false
	case s.InterviewerUserID == userID:
		return RoleInterviewer, true
	case s.CandidateUserID == userID:
		return RoleCandidate, true
	}
	for _, o := range s.Observers {
		if o == userID {
			return RoleObserver, true
		}
	}
	return "", false
}

// IsParticipant reports whether userID holds any role in the session.
func (s *Session) IsParticipant(userID UserID) bool {
	_, ok := s.RoleOf(userID)
	return ok
}

// CanRead reports whether userID may see the session.
func (s *Session) CanRead(userID UserID) bool {
	return s.IsParticipant(userID) || (userID != "" && s.CreatorID == userID)
}

// Holder returns the user holding role, or "" when it is free.
func (s *Session) Holder(role Role) UserID {
	switch role {
	case RoleInterviewer:
		return s.InterviewerUserID
	case RoleCandidate:
		return s.CandidateUserID
	}
	return ""
}

// Members lists interviewer, candidate and observers, skipping empty roles.
func (s *Session) Members() []UserID {
	members := make([]UserID, 0, 2+len(s.Observers))
	if s.InterviewerUserID != "" {
		members = append(members, s.InterviewerUserID)
	}
	if s.CandidateUserID != "" {
		members = append(members, s.CandidateUserID)
	}
	return append(members, s.Observers...)
}

// NeedsVideoLink reports whether a room has to be (re)provisioned.
func (s *Session) NeedsVideoLink() bool {
	switch s.VideoLinkStatus {
	case VideoLinkActive, VideoLinkManual:
		return s.VideoLink == ""
	}
	return true
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	if s.Observers != nil {
		s.Observers = append([]UserID(nil), s.Observers...)
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

// Match is the write-once audit record of a pairing.
type Match struct {
	ID            string    `json:"id"`
	CandidateID   UserID    `json:"candidate_id"`
	InterviewerID UserID    `json:"interviewer_id"`
	SlotUTC       time.Time `json:"slot_utc"`
	SessionID     SessionID `json:"session_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

const MatchStatusCreated = "created"

// RoleAssignment is one entry of a user's append-only role history.
type RoleAssignment struct {
	UserID    UserID    `json:"user_id"`
	SessionID SessionID `json:"session_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Seq       int64     `json:"-"`
}

// RoomState is the result of probing a provisioned room.
type RoomState string

const (
	RoomActive  RoomState = "active"
	RoomExpired RoomState = "expired"
)

// LinkCheck is the verdict of the link validator.
type LinkCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
