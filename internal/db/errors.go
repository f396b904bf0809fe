package db

import "errors"

var (
	// ErrSlugExists is returned when storing under a slug that is taken.
	ErrSlugExists = errors.New("replay with this slug already exists")
	// ErrNotFound is returned when no replay has the requested slug.
	ErrNotFound = errors.New("replay not found")
)
