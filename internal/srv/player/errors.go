package player

import (
	"errors"
	"fmt"
)

// Caller-facing errors. Each carries the short status users see; the wrapped
// error (if any) is for logs only.

type ConnectionError struct {
	Status string
	Err    error
}

func (e *ConnectionError) Error() string { return wrapMessage(e.Status, e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return wrapMessage(fmt.Sprintf("unable to resolve %q", e.Query), e.Err)
}
func (e *ResolutionError) Unwrap() error { return e.Err }

type StateError struct {
	Status string
}

func (e *StateError) Error() string { return e.Status }

type ValidationError struct {
	Status string
}

func (e *ValidationError) Error() string { return e.Status }

// PlaybackError is raised by a transport for a failed stream. It never reaches a
// caller: the completion bridge logs it and moves on.
type PlaybackError struct {
	GuildId string
	Track   Track
	Err     error
}

func (e *PlaybackError) Error() string {
	return wrapMessage(fmt.Sprintf("playback of %q failed in guild %s", e.Track.Title, e.GuildId), e.Err)
}
func (e *PlaybackError) Unwrap() error { return e.Err }

var (
	ErrNotConnected    = &ConnectionError{Status: "not connected"}
	ErrNoVoiceChannel  = &ConnectionError{Status: "join a voice channel first"}
	ErrNotVoiceChannel = &ConnectionError{Status: "that channel is not a voice channel"}
	ErrNothingPlaying  = &StateError{Status: "nothing is playing"}
	ErrAlreadyPaused   = &StateError{Status: "playback is already paused"}
	ErrNotPaused       = &StateError{Status: "playback is not paused"}
	ErrInvalidPosition = &ValidationError{Status: "invalid position"}
	ErrInvalidVolume   = &ValidationError{Status: "volume must be between 0 and 100"}
)

var (
	ErrSchedulerStopped = errors.New("scheduler stopped")
	ErrPoolClosed       = errors.New("resolver pool closed")
)

// Message returns the short status string for any error returned by the Controller.
func Message(err error) string {
	var connErr *ConnectionError
	var resErr *ResolutionError
	var stateErr *StateError
	var validErr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &connErr):
		return connErr.Status
	case errors.As(err, &resErr):
		if resErr.Err != nil {
			return fmt.Sprintf("no track found for %q: %v", resErr.Query, resErr.Err)
		}
		return fmt.Sprintf("no track found for %q", resErr.Query)
	case errors.As(err, &stateErr):
		return stateErr.Status
	case errors.As(err, &validErr):
		return validErr.Status
	default:
		return "internal error"
	}
}

func wrapMessage(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + ": " + err.Error()
}
