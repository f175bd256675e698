package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"supermock/internal/core/domain"
)

const queueColumns = `seq, id, user_id, role, profession, language, slot_utc, status, created_at`

type queueRepository struct {
	db execer
}

func (r *queueRepository) Insert(ctx context.Context, entry *domain.QueueEntry) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO queue_entries (id, user_id, role, profession, language, slot_utc, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.UserID), string(entry.Role), entry.Profession, entry.Language,
		toMillis(entry.SlotUTC), string(entry.Status), toMillis(entry.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "queue_entries.user_id") {
			return domain.ErrDuplicateEntry
		}
		return fmt.Errorf("insert queue entry: %w", translate(err))
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read queue seq: %w", err)
	}
	entry.Seq = seq
	return nil
}

func (r *queueRepository) FindWaiting(ctx context.Context, userID domain.UserID, role domain.Role, slot time.Time) (*domain.QueueEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM queue_entries
		 WHERE status = 'waiting' AND user_id = ? AND role = ? AND slot_utc = ?`,
		string(userID), string(role), toMillis(slot))

	e, err := scanQueueEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find waiting entry: %w", translate(err))
	}
	return &e, nil
}

func (r *queueRepository) ListWaiting(ctx context.Context, filter domain.WaitingFilter) ([]domain.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE status = 'waiting'`
	var args []any
	if filter.Role != "" {
		query += ` AND role = ?`
		args = append(args, string(filter.Role))
	}
	if !filter.SlotUTC.IsZero() {
		query += ` AND slot_utc = ?`
		args = append(args, toMillis(filter.SlotUTC))
	}
	query += ` ORDER BY created_at, seq`

	return r.list(ctx, query, args...)
}

func (r *queueRepository) MarkMatched(ctx context.Context, ids ...string) error {
	return r.transition(ctx, ids, domain.QueueMatched)
}

func (r *queueRepository) MarkExpired(ctx context.Context, ids ...string) error {
	return r.transition(ctx, ids, domain.QueueExpired)
}

// transition flips every id in one statement; the row count guards the
// all-or-nothing contract.
func (r *queueRepository) transition(ctx context.Context, ids []string, to domain.QueueStatus) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{string(to)}, anyArgs(ids)...)

	var known int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM queue_entries WHERE id IN (`+placeholders(len(ids))+`)`,
		args[1:]...).Scan(&known); err != nil {
		return fmt.Errorf("count queue entries: %w", translate(err))
	}
	if known != len(ids) {
		return domain.ErrEntryNotFound
	}

	var waiting int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM queue_entries WHERE status = 'waiting' AND id IN (`+placeholders(len(ids))+`)`,
		args[1:]...).Scan(&waiting); err != nil {
		return fmt.Errorf("count waiting entries: %w", translate(err))
	}
	if waiting != len(ids) {
		return fmt.Errorf("%w: %d of %d entries are not waiting", domain.ErrInvalidTransition, len(ids)-waiting, len(ids))
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = ? WHERE status = 'waiting' AND id IN (`+placeholders(len(ids))+`)`,
		args...); err != nil {
		return fmt.Errorf("update queue entries: %w", translate(err))
	}
	return nil
}

func (r *queueRepository) WaitingKeys(ctx context.Context) ([]domain.QueueKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT slot_utc, profession, language FROM queue_entries
		 WHERE status = 'waiting' ORDER BY slot_utc, profession, language`)
	if err != nil {
		return nil, fmt.Errorf("list waiting keys: %w", translate(err))
	}
	defer rows.Close()

	var keys []domain.QueueKey
	for rows.Next() {
		var (
			slot int64
			k    domain.QueueKey
		)
		if err := rows.Scan(&slot, &k.Profession, &k.Language); err != nil {
			return nil, err
		}
		k.SlotUTC = fromMillis(slot)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *queueRepository) ListStale(ctx context.Context, slotBefore time.Time) ([]domain.QueueEntry, error) {
	return r.list(ctx,
		`SELECT `+queueColumns+` FROM queue_entries
		 WHERE status = 'waiting' AND slot_utc < ? ORDER BY created_at, seq`,
		toMillis(slotBefore))
}

func (r *queueRepository) list(ctx context.Context, query string, args ...any) ([]domain.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", translate(err))
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQueueEntry(s scanner) (domain.QueueEntry, error) {
	var (
		e                domain.QueueEntry
		userID, role, st string
		slot, createdAt  int64
	)
	if err := s.Scan(&e.Seq, &e.ID, &userID, &role, &e.Profession, &e.Language, &slot, &st, &createdAt); err != nil {
		return domain.QueueEntry{}, err
	}
	e.UserID = domain.UserID(userID)
	e.Role = domain.Role(role)
	e.Status = domain.QueueStatus(st)
	e.SlotUTC = fromMillis(slot)
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}
