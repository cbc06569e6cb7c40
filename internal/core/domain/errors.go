package domain

import "errors"

var (
	// ErrRideNotFound is returned when no snapshot exists for a ride.
	ErrRideNotFound = errors.New("ride not found")

	// ErrCanvasDestroyed is returned when a destroyed canvas is asked for its scene.
	ErrCanvasDestroyed = errors.New("canvas destroyed")

	// ErrEmptyUpdate is returned when an update sets no field.
	ErrEmptyUpdate = errors.New("update sets no field")

	// ErrSessionClosed is returned when posting to a session whose loop has stopped.
	ErrSessionClosed = errors.New("map session closed")
)
