package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// drivers for the supported bucket url schemes
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// BucketPlaceholder is replaced with the bucket name in blob url templates.
const BucketPlaceholder = "{bucket}"

// ErrNotExist is returned when an object does not exist.
var ErrNotExist = os.ErrNotExist

// Blob implements Client using gocloud.dev/blob.
// This supports GCS, S3, Azure, local directories and other providers.
type Blob struct {
	urlTemplate string
	buckets     map[string]*blob.Bucket
	mu          sync.Mutex
}

// NewBlob creates a blob-backed client. urlTemplate is a bucket url such as
// "gs://{bucket}" or "file:///var/cache/{bucket}"; without a placeholder every
// bucket name maps to the same bucket.
func NewBlob(urlTemplate string) *Blob {
	return &Blob{
		urlTemplate: urlTemplate,
		buckets:     map[string]*blob.Bucket{},
	}
}

// NewBlobFromBucket creates a client that serves every bucket name from bucket.
// This is useful for testing with memblob.
func NewBlobFromBucket(bucket *blob.Bucket) *Blob {
	return &Blob{
		buckets: map[string]*blob.Bucket{"": bucket},
	}
}

func (b *Blob) ListObjects(ctx context.Context, bucket, prefix string, recursive bool) <-chan ListResult {
	ret := make(chan ListResult)
	go func() {
		defer close(ret)
		send := func(res ListResult) bool {
			select {
			case ret <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		bkt, err := b.open(ctx, bucket)
		if err != nil {
			send(ListResult{Err: err})
			return
		}

		opts := &blob.ListOptions{Prefix: prefix}
		if !recursive {
			opts.Delimiter = "/"
		}
		iter := bkt.List(opts)
		for {
			obj, err := iter.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				send(ListResult{Err: err})
				return
			}
			if obj.IsDir {
				continue
			}
			if !send(ListResult{Object: ObjectInfo{Name: obj.Key, LastModified: obj.ModTime, Size: obj.Size}}) {
				return
			}
		}
	}()
	return ret
}

func (b *Blob) FGetObject(ctx context.Context, bucket, name, filePath string) error {
	bkt, err := b.open(ctx, bucket)
	if err != nil {
		return err
	}

	r, err := bkt.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return errors.Wrapf(ErrNotExist, "object %s", name)
		}
		return err
	}
	defer r.Close()

	return writeFile(filePath, r)
}

func (b *Blob) FPutObject(ctx context.Context, bucket, name, filePath string, opts PutOptions) error {
	bkt, err := b.open(ctx, bucket)
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	return bkt.Upload(ctx, name, f, &blob.WriterOptions{ContentType: opts.ContentType})
}

// Close releases all opened buckets.
func (b *Blob) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for key, bkt := range b.buckets {
		err = multierr.Append(err, bkt.Close())
		delete(b.buckets, key)
	}
	return err
}

func (b *Blob) open(ctx context.Context, bucket string) (*blob.Bucket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bkt, ok := b.buckets[""]; ok && b.urlTemplate == "" {
		return bkt, nil
	}

	url := strings.ReplaceAll(b.urlTemplate, BucketPlaceholder, bucket)
	if bkt, ok := b.buckets[url]; ok {
		return bkt, nil
	}
	bkt, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bucket %s", url)
	}
	b.buckets[url] = bkt
	return bkt, nil
}

// writeFile copies r into path via a temporary file so that no partial file
// is left behind.
func writeFile(path string, r io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
