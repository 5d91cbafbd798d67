package model

import "time"

// User represents an application user record as stored in the `users`
// table. The struct is internal to the repository and service layers;
// handlers build their own response types and never serialize it, so the
// password hash cannot leak through a response body.
//
// Fields:
//
//	ID           – 32-char hex identifier generated at registration.
//	Firstname    – given name.
//	Lastname     – family name.
//	Email        – unique email address, stored as submitted.
//	PasswordHash – bcrypt hash of the password, never the password itself.
//	RegisteredAt – timestamp of registration.
type User struct {
	ID           string    // users.id
	Firstname    string    // users.firstname
	Lastname     string    // users.lastname
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	RegisteredAt time.Time // users.registered_at
}

// RevokedToken models an entry in the `revoked_tokens` table. Once a token
// string is present here it is rejected by every decode, permanently.
//
// Fields:
//
//	ID        – 32-char hex identifier of the entry.
//	Token     – the full encoded token string (unique).
//	RevokedAt – when the token was revoked.
//	ExpiresAt – natural expiry of the token; rows past it may be pruned.
type RevokedToken struct {
	ID        string     // revoked_tokens.id
	Token     string     // revoked_tokens.token
	RevokedAt time.Time  // revoked_tokens.revoked_at
	ExpiresAt *time.Time // revoked_tokens.expires_at (nullable)
}
