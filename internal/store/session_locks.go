package store

import (
	"context"
	"time"
)

func (s *Store) GetSessionLock(ctx context.Context, userID string) (*SessionLock, error) {
	var l SessionLock
	var superseded *string
	err := s.Pool.QueryRow(ctx, `SELECT user_id, token, session_id, issued_at, last_heartbeat, superseded_token
		FROM session_locks WHERE user_id = $1`, userID).
		Scan(&l.UserID, &l.Token, &l.SessionID, &l.IssuedAt, &l.LastHeartbeat, &superseded)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if superseded != nil {
		l.SupersededToken = *superseded
	}
	return &l, nil
}

// PutSessionLock creates or replaces the user's lock.
func (s *Store) PutSessionLock(ctx context.Context, l SessionLock) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO session_locks (user_id, token, session_id, issued_at, last_heartbeat, superseded_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			token = EXCLUDED.token,
			session_id = EXCLUDED.session_id,
			issued_at = EXCLUDED.issued_at,
			last_heartbeat = EXCLUDED.last_heartbeat,
			superseded_token = EXCLUDED.superseded_token`,
		l.UserID, l.Token, l.SessionID, timestamptzParam(l.IssuedAt), timestamptzParam(l.LastHeartbeat), textParam(l.SupersededToken))
	return err
}

// TouchSessionLock refreshes last_heartbeat when token still owns the lock.
func (s *Store) TouchSessionLock(ctx context.Context, userID, token string, at time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE session_locks SET last_heartbeat = $3 WHERE user_id = $1 AND token = $2`,
		userID, token, timestamptzParam(at))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteSessionLock(ctx context.Context, userID, token string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM session_locks WHERE user_id = $1 AND token = $2`, userID, token)
	return err
}
