package domain

import "errors"

// Application-wide standard errors
var (
	// Common Resource Errors
	ErrNotFound      = errors.New("resource not found")
	ErrStoryNotFound = errors.New("story session not found")

	// Authentication Errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Turn Progression Errors
	ErrTurnInProgress   = errors.New("a turn is already being generated for this story")
	ErrStoryEnded       = errors.New("story has already ended")
	ErrUnknownOption    = errors.New("chosen option does not exist on this turn")
	ErrStaleTurn        = errors.New("story state changed while the turn was being generated")
	ErrGenerationFailed = errors.New("narrative generation failed, please retry")

	// Persistence Errors
	ErrIncompleteSession = errors.New("session is missing required narrative fields")
	ErrDuplicateResult   = errors.New("an identical game result was recorded recently")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
