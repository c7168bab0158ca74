package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PhoneVerse/internal/domain"
)

// CreateSession persists an issued token.
func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := s.exec(ctx, s.sb.Insert("sessions").
		Columns("session_token", "user_id", "expires_at", "created_at").
		Values(session.Token, session.UserID, s.ts(session.ExpiresAt), s.ts(time.Now())))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session for token if it has not expired at now.
func (s *Store) GetSession(ctx context.Context, token string, now time.Time) (domain.Session, error) {
	row, err := s.queryRow(ctx, s.sb.Select("session_token", "user_id", "expires_at").
		From("sessions").
		Where(sq.Eq{"session_token": token}).
		Where(sq.Gt{"expires_at": s.ts(now)}))
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := row.Scan(&session.Token, &session.UserID, &session.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

// DeleteSession revokes a token. Missing rows are not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.exec(ctx, s.sb.Delete("sessions").Where(sq.Eq{"session_token": token})); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions sweeps rows whose expiry is at or before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, s.sb.Delete("sessions").Where(sq.LtOrEq{"expires_at": s.ts(now)}))
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
