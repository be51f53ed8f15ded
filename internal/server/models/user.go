// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account allowed to pass the gateway.
type User struct {
	ID           int64
	UserName     string
	Account      string
	PasswordHash string
	Email        string
	Points       int64
	CreatedAt    time.Time
	// LastLogin is zero until the first successful login.
	LastLogin time.Time
}

// Profile is the public part of a user returned by the API.
type Profile struct {
	UserName string `json:"username"`
	Account  string `json:"account"`
	Email    string `json:"email"`
	Points   int64  `json:"points"`
}

func (u *User) Profile() Profile {
	return Profile{UserName: u.UserName, Account: u.Account, Email: u.Email, Points: u.Points}
}
