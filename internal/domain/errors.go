package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrBrowserUnavailable is returned when the rendering engine cannot be started or reached
	ErrBrowserUnavailable = errors.New("browser unavailable")

	// ErrNavigation is returned when a source page cannot be loaded
	ErrNavigation = errors.New("navigation failed")

	// ErrNoProducts is returned when a source run finishes without a single valid product
	ErrNoProducts = errors.New("no products found")

	// ErrUnknownPagination is returned for a strategy with an unsupported pagination mode
	ErrUnknownPagination = errors.New("unknown pagination mode")

	// ErrUnknownSource is returned when a source name is not registered
	ErrUnknownSource = errors.New("unknown source")
)
