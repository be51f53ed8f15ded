package models

import "time"

// Session binds an opaque token to a user until ExpiresAt.
type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionView is a session joined with the owner's profile, as needed by
// every gated request.
type SessionView struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"username"`
	Account   string    `json:"account"`
	Email     string    `json:"email"`
	Points    int64     `json:"points"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (v *SessionView) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

func (v *SessionView) Profile() Profile {
	return Profile{UserName: v.UserName, Account: v.Account, Email: v.Email, Points: v.Points}
}
