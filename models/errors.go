package models

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotFound indicates that a show or episode does not exist in any
	// upstream source.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable indicates that every source able to answer the
	// request failed or is circuit-broken.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
