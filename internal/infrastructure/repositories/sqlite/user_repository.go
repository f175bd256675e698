package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"supermock/internal/core/domain"
)

type userStateRepository struct {
	db execer
}

func (r *userStateRepository) Get(ctx context.Context, userID domain.UserID) (domain.UserState, error) {
	var (
		status, pending, tools string
		updatedAt              int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT feedback_status, pending_session_id, tools, updated_at FROM user_states WHERE user_id = ?`,
		string(userID)).Scan(&status, &pending, &tools, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewUserState(userID), nil
	}
	if err != nil {
		return domain.UserState{}, fmt.Errorf("get user state: %w", translate(err))
	}

	us := domain.UserState{
		UserID:           userID,
		FeedbackStatus:   domain.FeedbackStatus(status),
		PendingSessionID: domain.SessionID(pending),
		UpdatedAt:        fromMillis(updatedAt),
	}
	if err := json.Unmarshal([]byte(tools), &us.Tools); err != nil {
		return domain.UserState{}, fmt.Errorf("decode tools of %s: %w", userID, err)
	}
	return us, nil
}

func (r *userStateRepository) Save(ctx context.Context, us domain.UserState) error {
	tools := us.Tools
	if tools == nil {
		tools = []string{}
	}
	b, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("encode tools: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_states (user_id, feedback_status, pending_session_id, tools, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			feedback_status = excluded.feedback_status,
			pending_session_id = excluded.pending_session_id,
			tools = excluded.tools,
			updated_at = excluded.updated_at`,
		string(us.UserID), string(us.FeedbackStatus), string(us.PendingSessionID), string(b), toMillis(us.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save user state: %w", translate(err))
	}
	return nil
}

type feedbackRepository struct {
	db execer
}

func (r *feedbackRepository) Create(ctx context.Context, fb *domain.Feedback) error {
	ratings, err := json.Marshal(fb.Ratings)
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO feedback (id, session_id, from_user_id, to_user_id, ratings, comments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, string(fb.SessionID), string(fb.FromUserID), string(fb.ToUserID),
		string(ratings), fb.Comments, toMillis(fb.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateFeedback
		}
		return fmt.Errorf("insert feedback: %w", translate(err))
	}
	return nil
}

func (r *feedbackRepository) ListBySession(ctx context.Context, sessionID domain.SessionID) ([]domain.Feedback, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, from_user_id, to_user_id, ratings, comments, created_at
		 FROM feedback WHERE session_id = ? ORDER BY created_at, id`, string(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", translate(err))
	}
	defer rows.Close()

	var list []domain.Feedback
	for rows.Next() {
		var (
			fb                 domain.Feedback
			sid, from, to, raw string
			createdAt          int64
		)
		if err := rows.Scan(&fb.ID, &sid, &from, &to, &raw, &fb.Comments, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &fb.Ratings); err != nil {
			return nil, fmt.Errorf("decode ratings of %s: %w", fb.ID, err)
		}
		fb.SessionID = domain.SessionID(sid)
		fb.FromUserID = domain.UserID(from)
		fb.ToUserID = domain.UserID(to)
		fb.CreatedAt = fromMillis(createdAt)
		list = append(list, fb)
	}
	return list, rows.Err()
}
