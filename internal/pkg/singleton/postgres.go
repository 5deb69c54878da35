package singleton

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresLocker holds a session-level advisory lock on a dedicated
// connection. The lock is released when Unlock runs or the connection dies.
type PostgresLocker struct {
	db  *sql.DB
	key int64

	conn *sql.Conn
	lost chan struct{}
}

func NewPostgresLocker(db *sql.DB, token string) *PostgresLocker {
	return &PostgresLocker{db: db, key: LockKey(token), lost: make(chan struct{})}
}

func (l *PostgresLocker) TryLock(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, errors.New("advisory lock already held")
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !ok {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *PostgresLocker) Unlock(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	var released bool
	if err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&released); err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	if !released {
		return errors.New("advisory lock was not held")
	}
	return nil
}

// Lost never fires; the lock lives as long as the reserved connection.
func (l *PostgresLocker) Lost() <-chan struct{} {
	return l.lost
}
