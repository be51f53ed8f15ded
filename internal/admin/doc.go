// Package admin implements the administrative command line: user listing
// and creation, point adjustments, session cleanup and migrations. It talks
// to the database directly, bypassing the running gateway.
package admin
