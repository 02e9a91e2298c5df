package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrUnknownSet = errors.New("no such intersection or group")
)
