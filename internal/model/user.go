// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account together with its credit balance.
//
// Email is stored normalized (trimmed, lower-cased) and the column is
// COLLATE NOCASE, so lookups are case-insensitive either way.
//
// PasswordHash is a bcrypt string. It is tagged json:"-" so a User can be
// encoded into a response without leaking it.
//
// Credits is the ledger balance. It is NOT NULL in the database, so the
// "unset balance" case from older data cannot occur: a new row starts at 0
// unless the caller grants a starting amount.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	Credits      int64     `json:"credits"   db:"credits"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
