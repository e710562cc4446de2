package fallback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/foomo/actions-cache/pkg/archive"
	"github.com/foomo/actions-cache/pkg/cache"
	"github.com/foomo/actions-cache/pkg/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultBucket is used when the fallback url selects a single bucket.
const DefaultBucket = "actions-cache"

type (
	// Blob is a fallback cache on any store.Client. Entries are namespaced by
	// a version derived from the cached paths and the compression method so
	// archives of different shape never restore into each other.
	Blob struct {
		l       *zap.Logger
		client  store.Client
		codec   cache.Codec
		bucket  string
		method  archive.Method
		tempDir string
	}
	BlobOption func(*Blob)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewBlob(l *zap.Logger, client store.Client, codec cache.Codec, opts ...BlobOption) *Blob {
	inst := &Blob{
		l:       l.Named("fallback"),
		client:  client,
		codec:   codec,
		bucket:  DefaultBucket,
		method:  archive.MethodZstd,
		tempDir: os.TempDir(),
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func BlobWithBucket(v string) BlobOption {
	return func(o *Blob) {
		o.bucket = v
	}
}

func BlobWithMethod(v archive.Method) BlobOption {
	return func(o *Blob) {
		o.method = v
	}
}

func BlobWithTempDir(v string) BlobOption {
	return func(o *Blob) {
		if v != "" {
			o.tempDir = v
		}
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Version identifies archives created from the same paths with the same method.
func Version(paths []string, m archive.Method) string {
	h := sha256.New()
	for _, p := range paths {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte("|"))
	}
	_, _ = h.Write([]byte(m))
	return hex.EncodeToString(h.Sum(nil))
}

// Restore tries the exact key first and the restore keys as prefixes after.
// It returns the key that matched or an empty string.
func (b *Blob) Restore(ctx context.Context, paths []string, key string, restoreKeys []string) (string, error) {
	version := Version(paths, b.method)
	fileName := archive.FileName(b.method)

	object, err := b.find(ctx, path.Join(version, key), func(name string) bool {
		return name == path.Join(version, key, fileName)
	})
	if err != nil {
		return "", err
	}
	matchedKey := key
	for i := 0; object == "" && i < len(restoreKeys); i++ {
		object, err = b.find(ctx, version+"/"+restoreKeys[i], func(name string) bool {
			return strings.HasSuffix(name, "/"+fileName)
		})
		if err != nil {
			return "", err
		}
		matchedKey = restoreKeys[i]
	}
	if object == "" {
		return "", nil
	}

	dir, err := b.mkTempDir()
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	archivePath := filepath.Join(dir, fileName)
	b.l.Info("downloading fallback archive", zap.String("object", object))
	if err := b.client.FGetObject(ctx, b.bucket, object, archivePath); err != nil {
		return "", errors.Wrapf(err, "failed to download %s", object)
	}
	if err := b.codec.Unpack(ctx, archivePath, b.method); err != nil {
		return "", errors.Wrapf(err, "failed to unpack %s", object)
	}
	return matchedKey, nil
}

// Save packs paths and stores them below the version and key.
func (b *Blob) Save(ctx context.Context, paths []string, key string) error {
	resolved, err := b.codec.ResolvePaths(paths)
	if err != nil {
		return err
	}

	dir, err := b.mkTempDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	archivePath, err := b.codec.Pack(ctx, dir, resolved, b.method)
	if err != nil {
		return errors.Wrap(err, "failed to create archive")
	}

	object := path.Join(Version(paths, b.method), key, archive.FileName(b.method))
	b.l.Info("uploading fallback archive", zap.String("object", object))
	if err := b.client.FPutObject(ctx, b.bucket, object, archivePath, store.PutOptions{ContentType: cache.ContentType}); err != nil {
		return errors.Wrapf(err, "failed to upload %s", object)
	}
	return nil
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// find returns the newest object below prefix accepted by match.
func (b *Blob) find(ctx context.Context, prefix string, match func(name string) bool) (string, error) {
	objects, err := store.List(ctx, b.client, b.bucket, prefix, store.DefaultListTimeout)
	if err != nil {
		return "", err
	}
	var candidates []store.ObjectInfo
	for _, o := range objects {
		if match(o.Name) {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LastModified.After(candidates[j].LastModified)
	})
	return candidates[0].Name, nil
}

func (b *Blob) mkTempDir() (string, error) {
	dir := filepath.Join(b.tempDir, "fallback-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create temp dir")
	}
	return dir, nil
}
