package graph

import "errors"

var (
	ErrShutdown           = errors.New("graph has been shut down")
	ErrNotInitialized     = errors.New("graph not initialized")
	ErrAlreadyInitialized = errors.New("graph already initialized")
	ErrDriverRunning      = errors.New("graph is driven by its own driver")
)
