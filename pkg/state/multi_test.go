package state

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values map[string]string
	err    error
}

func (m *mapStore) Set(_ context.Context, name, value string) error {
	if m.err != nil {
		return m.err
	}
	m.values[name] = value
	return nil
}

func (m *mapStore) Get(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[name], nil
}

func TestMulti_Set(t *testing.T) {
	ctx := context.Background()
	first := &mapStore{values: map[string]string{}}
	fs, err := NewFileStore(t.TempDir(), "job-1")
	require.NoError(t, err)

	require.NoError(t, NewMulti(first, fs).Set(ctx, MatchedKey, "linux-rust"))
	assert.Equal(t, "linux-rust", first.values[MatchedKey])
	v, err := fs.Get(ctx, MatchedKey)
	require.NoError(t, err)
	assert.Equal(t, "linux-rust", v)
}

func TestMulti_Get(t *testing.T) {
	ctx := context.Background()
	// post step variables are empty outside of an action's post step
	postStep := &mapStore{values: map[string]string{}}
	fs, err := NewFileStore(t.TempDir(), "job-1")
	require.NoError(t, err)
	require.NoError(t, fs.Set(ctx, PrimaryKey, "linux-rust"))

	v, err := NewMulti(postStep, fs).Get(ctx, PrimaryKey)
	require.NoError(t, err)
	assert.Equal(t, "linux-rust", v)

	postStep.values[PrimaryKey] = "linux-go"
	v, err = NewMulti(postStep, fs).Get(ctx, PrimaryKey)
	require.NoError(t, err)
	assert.Equal(t, "linux-go", v)
}

func TestMulti_Errors(t *testing.T) {
	ctx := context.Background()
	failing := &mapStore{err: errors.New("broken")}
	ok := &mapStore{values: map[string]string{MatchedKey: "linux-"}}

	v, err := NewMulti(failing, ok).Get(ctx, MatchedKey)
	require.NoError(t, err)
	assert.Equal(t, "linux-", v)

	_, err = NewMulti(failing).Get(ctx, MatchedKey)
	require.Error(t, err)

	err = NewMulti(failing, ok).Set(ctx, MatchedKey, "linux-rust")
	require.Error(t, err)
	assert.Equal(t, "linux-rust", ok.values[MatchedKey])
}
