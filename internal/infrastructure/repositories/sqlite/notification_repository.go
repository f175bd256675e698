package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"supermock/internal/core/domain"
)

type notificationRepository struct {
	db execer
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, payload, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.UserID), string(n.Type), string(n.Payload), string(n.Status),
		toMillis(n.CreatedAt), nullMillis(n.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", translate(err))
	}
	return nil
}

func (r *notificationRepository) ListActive(ctx context.Context, userID domain.UserID, now time.Time) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, payload, status, created_at, expires_at FROM notifications
		 WHERE user_id = ? AND status = 'active' AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC, id`,
		string(userID), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", translate(err))
	}
	defer rows.Close()

	var list []domain.Notification
	for rows.Next() {
		var (
			n                         domain.Notification
			uid, typ, payload, status string
			createdAt                 int64
			expiresAt                 sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &uid, &typ, &payload, &status, &createdAt, &expiresAt); err != nil {
			return nil, err
		}
		n.UserID = domain.UserID(uid)
		n.Type = domain.EventType(typ)
		n.Payload = []byte(payload)
		n.Status = domain.NotificationStatus(status)
		n.CreatedAt = fromMillis(createdAt)
		n.ExpiresAt = fromNullMillis(expiresAt)
		list = append(list, n)
	}
	return list, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID domain.UserID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'read' WHERE id = ? AND user_id = ?`, id, string(userID))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", translate(err))
	}
	n, err := res.RowsAffected()
	return int(n), err
}
