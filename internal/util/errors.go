package util

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInterviewNotFound = errors.New("interview not found")
	ErrSessionNotLive    = errors.New("interview session is not running on this server")
	ErrInvalidToken      = errors.New("invalid token")
)
