package api

import "errors"

// Sentinel errors for the API layer.
var (
	ErrHubClosed   = errors.New("websocket hub closed")
	ErrSlowClient  = errors.New("websocket client too slow")
	ErrNoHijacking = errors.New("response writer does not support hijacking")
)
