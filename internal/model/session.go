package model

import "time"

// Session is the server-side record behind a session cookie.
//
// A user has at most one Session at a time: issuing a new one replaces the
// old row, and the previous token simply stops matching anything.
type Session struct {
	Token     string    `json:"-"         db:"token"`
	UserID    string    `json:"userId"    db:"user_id"`
	IssuedAt  time.Time `json:"issuedAt"  db:"issued_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
