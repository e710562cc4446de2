package state

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var (
	json            = jsoniter.ConfigCompatibleWithStandardLibrary
	invalidNameChar = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

type (
	// FileStore implements Store using one json document per name below a
	// job directory on the local filesystem.
	FileStore struct {
		baseDir string
		mu      sync.RWMutex
	}
	entry struct {
		Name    string    `json:"name"`
		Value   string    `json:"value"`
		Written time.Time `json:"written"`
	}
)

// NewFileStore creates a filesystem-backed store for the given job.
func NewFileStore(baseDir, job string) (*FileStore, error) {
	dir := filepath.Join(baseDir, invalidNameChar.ReplaceAllString(job, "_"))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{baseDir: dir}, nil
}

func (f *FileStore) Set(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(entry{Name: name, Value: value, Written: time.Now()})
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}
	if err := os.MkdirAll(f.baseDir, 0o700); err != nil {
		return errors.Wrap(err, "failed to create state dir")
	}
	return os.WriteFile(f.path(name), data, 0o600)
}

func (f *FileStore) Get(_ context.Context, name string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path(name))
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return "", errors.Wrapf(err, "failed to decode state %s", name)
	}
	return e.Value, nil
}

// Clear removes all entries of the job and keeps the directory.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.baseDir)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(f.baseDir, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.baseDir, invalidNameChar.ReplaceAllString(name, "_")+".json")
}
