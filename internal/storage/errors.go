package storage

import "errors"

var (
	ErrCacheMiss    = errors.New("cache entry not found")
	ErrInvalidData  = errors.New("invalid data")
	ErrStorageInit  = errors.New("storage initialization failed")
	ErrNotConnected = errors.New("storage not connected")
)
