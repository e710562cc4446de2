package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DefaultListTimeout bounds a single listing.
const DefaultListTimeout = 10 * time.Second

// ErrListTimeout is returned when a listing did not finish in time.
var ErrListTimeout = errors.New("list objects timed out")

type (
	// ObjectInfo is a stored object. Name is the full object key.
	ObjectInfo struct {
		Name         string
		LastModified time.Time
		Size         int64
	}
	// ListResult is a single item of a listing stream, either an object or an error.
	ListResult struct {
		Object ObjectInfo
		Err    error
	}
	PutOptions struct {
		ContentType string
	}
	// Client defines the contract for object-store backends.
	// Implementations must be safe for concurrent use.
	Client interface {
		// ListObjects streams the objects below prefix. The channel is closed
		// once the listing is complete or after an error result.
		ListObjects(ctx context.Context, bucket, prefix string, recursive bool) <-chan ListResult

		// FGetObject downloads an object into filePath. No file is left at
		// filePath when the download fails.
		FGetObject(ctx context.Context, bucket, name, filePath string) error

		// FPutObject uploads the file at filePath.
		FPutObject(ctx context.Context, bucket, name, filePath string, opts PutOptions) error
	}
)

// List collects a recursive listing of prefix. It fails with ErrListTimeout
// when the stream neither ended nor failed within timeout.
func List(ctx context.Context, c Client, bucket, prefix string, timeout time.Duration) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	// releases a producer that is still blocked on a send after we gave up
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var ret []ObjectInfo
	stream := c.ListObjects(ctx, bucket, prefix, true)
	for {
		select {
		case res, ok := <-stream:
			if !ok {
				return ret, nil
			}
			if res.Err != nil {
				return nil, errors.Wrapf(res.Err, "failed to list %s/%s", bucket, prefix)
			}
			ret = append(ret, res.Object)
		case <-timer.C:
			return nil, errors.Wrapf(ErrListTimeout, "list objects no result after %s", timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
