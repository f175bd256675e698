package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"supermock/internal/core/domain"
)

const sessionColumns = `id, interviewer_user_id, candidate_user_id, observers, profession, language,
	slot_utc, status, room_id, video_link, video_link_status, creator_id, start_time,
	completed_at, created_at, updated_at`

type sessionRepository struct {
	db execer
}

func (r *sessionRepository) Create(ctx context.Context, s *domain.Session) error {
	observers, err := marshalUsers(s.Observers)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(s.ID), string(s.InterviewerUserID), string(s.CandidateUserID), observers,
		s.Profession, s.Language, toMillis(s.SlotUTC), string(s.Status), s.RoomID,
		s.VideoLink, string(s.VideoLinkStatus), string(s.CreatorID), toMillis(s.StartTime),
		nullMillis(s.CompletedAt), toMillis(s.CreatedAt), toMillis(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", translate(err))
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", translate(err))
	}
	return s, nil
}

func (r *sessionRepository) Update(ctx context.Context, s *domain.Session) error {
	observers, err := marshalUsers(s.Observers)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET interviewer_user_id = ?, candidate_user_id = ?, observers = ?,
			profession = ?, language = ?, slot_utc = ?, status = ?, room_id = ?, video_link = ?,
			video_link_status = ?, creator_id = ?, start_time = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(s.InterviewerUserID), string(s.CandidateUserID), observers,
		s.Profession, s.Language, toMillis(s.SlotUTC), string(s.Status), s.RoomID, s.VideoLink,
		string(s.VideoLinkStatus), string(s.CreatorID), toMillis(s.StartTime),
		nullMillis(s.CompletedAt), toMillis(s.UpdatedAt), string(s.ID))
	if err != nil {
		return fmt.Errorf("update session: %w", translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Session, error) {
	uid := string(userID)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE interviewer_user_id = ? OR candidate_user_id = ? OR creator_id = ?
			OR EXISTS (SELECT 1 FROM json_each(sessions.observers) WHERE json_each.value = ?)
		 ORDER BY created_at DESC, id`,
		uid, uid, uid, uid)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", translate(err))
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		s                                                         domain.Session
		id, interviewer, candidate, observers, status, linkStatus string
		creator                                                   string
		slot, start, createdAt, updatedAt                         int64
		completedAt                                               sql.NullInt64
	)
	err := sc.Scan(&id, &interviewer, &candidate, &observers, &s.Profession, &s.Language,
		&slot, &status, &s.RoomID, &s.VideoLink, &linkStatus, &creator, &start,
		&completedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(observers), &s.Observers); err != nil {
		return nil, fmt.Errorf("decode observers of %s: %w", id, err)
	}
	s.ID = domain.SessionID(id)
	s.InterviewerUserID = domain.UserID(interviewer)
	s.CandidateUserID = domain.UserID(candidate)
	s.Status = domain.SessionStatus(status)
	s.VideoLinkStatus = domain.VideoLinkStatus(linkStatus)
	s.CreatorID = domain.UserID(creator)
	s.SlotUTC = fromMillis(slot)
	s.StartTime = fromMillis(start)
	s.CompletedAt = fromNullMillis(completedAt)
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	return &s, nil
}

func marshalUsers(users []domain.UserID) (string, error) {
	if users == nil {
		users = []domain.UserID{}
	}
	b, err := json.Marshal(users)
	if err != nil {
		return "", fmt.Errorf("encode users: %w", err)
	}
	return string(b), nil
}

type matchRepository struct {
	db execer
}

func (r *matchRepository) Create(ctx context.Context, m *domain.Match) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO matches (id, candidate_id, interviewer_id, slot_utc, session_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.CandidateID), string(m.InterviewerID), toMillis(m.SlotUTC),
		string(m.SessionID), m.Status, toMillis(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert match: %w", translate(err))
	}
	return nil
}

func (r *matchRepository) GetBySession(ctx context.Context, sessionID domain.SessionID) (*domain.Match, error) {
	var (
		m                           domain.Match
		candidate, interviewer, sid string
		slot, createdAt             int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, candidate_id, interviewer_id, slot_utc, session_id, status, created_at
		 FROM matches WHERE session_id = ?`, string(sessionID)).
		Scan(&m.ID, &candidate, &interviewer, &slot, &sid, &m.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", translate(err))
	}

	m.CandidateID = domain.UserID(candidate)
	m.InterviewerID = domain.UserID(interviewer)
	m.SessionID = domain.SessionID(sid)
	m.SlotUTC = fromMillis(slot)
	m.CreatedAt = fromMillis(createdAt)
	return &m, nil
}

type roleHistoryRepository struct {
	db execer
}

func (r *roleHistoryRepository) Append(ctx context.Context, a *domain.RoleAssignment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO role_assignments (user_id, session_id, role, created_at) VALUES (?, ?, ?, ?)`,
		string(a.UserID), string(a.SessionID), string(a.Role), toMillis(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("append role: %w", translate(err))
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read role seq: %w", err)
	}
	a.Seq = seq
	return nil
}

func (r *roleHistoryRepository) LastDecided(ctx context.Context, userID domain.UserID, exclude domain.SessionID) (*domain.RoleAssignment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT seq, user_id, session_id, role, created_at FROM role_assignments
		 WHERE user_id = ? AND session_id <> ? AND role IN ('interviewer', 'candidate')
		 ORDER BY seq DESC LIMIT 1`,
		string(userID), string(exclude))

	a, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last decided role: %w", translate(err))
	}
	return &a, nil
}

func (r *roleHistoryRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.RoleAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, user_id, session_id, role, created_at FROM role_assignments
		 WHERE user_id = ? ORDER BY seq`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", translate(err))
	}
	defer rows.Close()

	var history []domain.RoleAssignment
	for rows.Next() {
		a, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, a)
	}
	return history, rows.Err()
}

func scanRole(sc scanner) (domain.RoleAssignment, error) {
	var (
		a              domain.RoleAssignment
		uid, sid, role string
		createdAt      int64
	)
	if err := sc.Scan(&a.Seq, &uid, &sid, &role, &createdAt); err != nil {
		return domain.RoleAssignment{}, err
	}
	a.UserID = domain.UserID(uid)
	a.SessionID = domain.SessionID(sid)
	a.Role = domain.Role(role)
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}
