package state

import (
	"context"

	"go.uber.org/multierr"
)

// Multi writes every value to all stores and reads from the first store that
// has one. It lets a runner's post step state and a file store back each
// other up when only one of them reaches the save phase.
type Multi struct {
	stores []Store
}

func NewMulti(stores ...Store) *Multi {
	return &Multi{stores: stores}
}

func (m *Multi) Set(ctx context.Context, name, value string) error {
	var err error
	for _, s := range m.stores {
		err = multierr.Append(err, s.Set(ctx, name, value))
	}
	return err
}

// Get returns the first non-empty value. Read errors are only returned when
// no store had a value.
func (m *Multi) Get(ctx context.Context, name string) (string, error) {
	var err error
	for _, s := range m.stores {
		value, gerr := s.Get(ctx, name)
		if gerr != nil {
			err = multierr.Append(err, gerr)
			continue
		}
		if value != "" {
			return value, nil
		}
	}
	return "", err
}
