package actions

import (
	"context"
	"io"
	"os"
)

// StateStore implements state.Store on the runner's GITHUB_STATE file
// command. Values become STATE_<name> variables of the post step.
type StateStore struct {
	w      io.Writer
	file   string
	getenv func(string) string
}

func NewStateStore() *StateStore {
	return &StateStore{
		w:      os.Stdout,
		file:   os.Getenv(EnvState),
		getenv: os.Getenv,
	}
}

func (s *StateStore) Set(_ context.Context, name, value string) error {
	if s.file != "" {
		return issueFileCommand(s.file, name, value)
	}
	return issueCommand(s.w, "save-state", map[string]string{"name": name}, value)
}

func (s *StateStore) Get(_ context.Context, name string) (string, error) {
	return s.getenv("STATE_" + name), nil
}
