package state

import (
	"context"
)

// Names of the values shared between the restore and the save phase of a job.
const (
	PrimaryKey   = "CACHE_KEY"
	MatchedKey   = "CACHE_RESULT"
	AccessKey    = "ACCESS_KEY"
	SecretKey    = "SECRET_KEY"
	SessionToken = "SESSION_TOKEN"
)

// Store defines the contract for job-scoped scratch state. Values written in
// one phase of a job must be readable by a later phase, which may run in
// another process.
type Store interface {
	// Set stores value under name.
	Set(ctx context.Context, name, value string) error

	// Get returns the value stored under name or an empty string.
	Get(ctx context.Context, name string) (string, error)
}
