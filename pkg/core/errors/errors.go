package errors

import "errors"

// Standard API-related errors
var (
	ErrUnauthorized       = errors.New("opensubtitles: unauthorized (invalid API key or token)")
	ErrForbidden          = errors.New("opensubtitles: forbidden (insufficient permissions or quota exceeded)")
	ErrNotFound           = errors.New("opensubtitles: resource not found")
	ErrRateLimited        = errors.New("opensubtitles: rate limit exceeded")
	ErrServiceUnavailable = errors.New("opensubtitles: service unavailable or internal server error")

	// Application/Flow specific errors
	ErrNotLoggedIn       = errors.New("client: not logged in")
	ErrNoCandidates      = errors.New("subtitles: no convertible subtitles found")
	ErrAmbiguousSubtitle = errors.New("subtitles: several subtitles match, pick one by file id")
	ErrEmptySubtitle     = errors.New("subtitles: decoded SRT was empty")
	ErrUnknownHandle     = errors.New("publish: unknown or revoked handle")
	ErrSessionClosed     = errors.New("session: closed")
)
