package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionFinished   = errors.New("session is finished")
	ErrInvalidTransition = errors.New("action is not legal in the current session status")
	ErrConcurrentUpdate  = errors.New("session was modified concurrently")

	// Round errors
	ErrRoundClosed   = errors.New("round is closed")
	ErrAlreadyClosed = errors.New("round is already closed")

	// Player errors
	ErrPlayerNotFound  = errors.New("player not found")
	ErrUnauthorized    = errors.New("player is not allowed to perform this action")
	ErrInvalidNickname = errors.New("nickname must be between 1 and 32 characters")
	ErrInvalidToken    = errors.New("invalid or expired token")

	// Estimation errors
	ErrInvalidInput = errors.New("estimation must be a finite, non-negative number")

	// Catalog errors
	ErrItemNotFound  = errors.New("item not found")
	ErrCatalogEmpty  = errors.New("item catalog is empty")
	ErrInvalidLocale = errors.New("unsupported language")

	// Bot errors
	ErrUnknownStrategy = errors.New("unknown bot strategy")
)
