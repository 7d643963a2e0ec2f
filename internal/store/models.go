package store

import "time"

// SessionLock is the durable per-user lease record.
type SessionLock struct {
	UserID          string
	Token           string
	SessionID       string
	IssuedAt        time.Time
	LastHeartbeat   time.Time
	SupersededToken string
}
