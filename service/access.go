package service

import (
	"time"

	"predictor/config"
)

// Clock returns the current time; services take one so tests can pin it
type Clock func() time.Time

// SystemClock returns the current time in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

func (c Clock) now() time.Time {
	if c == nil {
		return SystemClock()
	}
	return c().UTC()
}

// requireUser rejects anonymous callers
func requireUser(actor Actor) error {
	if actor.UserID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// requireAdmin rejects callers that are neither flagged admin nor on the configured allow-list
func requireAdmin(actor Actor) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if actor.IsAdmin || config.Get().IsAdmin(actor.UserID) {
		return nil
	}
	return ErrAdminRequired
}
