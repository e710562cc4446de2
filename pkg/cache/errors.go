package cache

import (
	"fmt"

	"github.com/foomo/actions-cache/pkg/config"
	"github.com/foomo/actions-cache/pkg/store"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound no object matched the key or any restore key
	ErrNotFound = errors.New("cache item not found")
	// ErrTransfer a download, upload or archive operation failed
	ErrTransfer = errors.New("transfer failed")
	// ErrTimeout a listing exceeded its deadline
	ErrTimeout = store.ErrListTimeout
	// ErrValidation required configuration is missing
	ErrValidation = config.ErrValidation

	errArchiveMissing = errors.New("archive missing after download")
)

// TransferError describes a failed transfer of an object. It matches ErrTransfer.
type TransferError struct {
	Op     string
	Object string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Object, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func (e *TransferError) Is(target error) bool {
	return target == ErrTransfer
}
