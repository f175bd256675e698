package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/tracing"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// DSN builds the connection string for path. ":memory:" opens a private
// in-memory database.
func DSN(path string) string {
	params := "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == ":memory:" {
		return "file::memory:?" + params
	}
	return "file:" + path + "?" + params + "&_pragma=journal_mode(WAL)"
}

// Open connects to the database at path and applies pending migrations.
func Open(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; transactions start with BEGIN IMMEDIATE.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Infow("SQLite store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "atomic", "sqlite")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		err = translate(err)
		tracing.RecordError(ctx, err)
		return err
	}

	if err := fn(ctx, newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warnw("Rollback failed", "error", rbErr)
		}
		tracing.RecordError(ctx, err)
		return err
	}

	if err := tx.Commit(); err != nil {
		err = translate(err)
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *Store) Repositories() ports.Repositories {
	return newRepositories(s.db)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func newRepositories(db execer) ports.Repositories {
	return ports.Repositories{
		Queue:         &queueRepository{db: db},
		Sessions:      &sessionRepository{db: db},
		Matches:       &matchRepository{db: db},
		RoleHistory:   &roleHistoryRepository{db: db},
		Users:         &userStateRepository{db: db},
		Feedback:      &feedbackRepository{db: db},
		Notifications: &notificationRepository{db: db},
	}
}

// translate maps driver errors onto domain sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anyArgs[T ~string](values []T) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = string(v)
	}
	return args
}
