package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/foomo/actions-cache/pkg/archive"
	"github.com/foomo/actions-cache/pkg/config"
	"github.com/foomo/actions-cache/pkg/state"
	"github.com/foomo/actions-cache/pkg/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	// Codec packs and unpacks cache archives.
	Codec interface {
		ResolvePaths(patterns []string) ([]string, error)
		Pack(ctx context.Context, archiveDir string, paths []string, m archive.Method) (string, error)
		Unpack(ctx context.Context, archivePath string, m archive.Method) error
		List(ctx context.Context, archivePath string, m archive.Method) error
	}
	// Fallback is a secondary cache backend used when the object store fails.
	// Restore returns the matched key or an empty string on a miss.
	Fallback interface {
		Restore(ctx context.Context, paths []string, key string, restoreKeys []string) (string, error)
		Save(ctx context.Context, paths []string, key string) error
	}
	Cache struct {
		l          *zap.Logger
		cfg        config.Config
		client     store.Client
		codec      Codec
		state      state.Store
		fallback   Fallback
		resolver   *Resolver
		downloader *Downloader
	}
	Option func(*Cache)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, cfg config.Config, client store.Client, codec Codec, st state.Store, opts ...Option) *Cache {
	inst := &Cache{
		l:      l.Named("cache"),
		cfg:    cfg,
		client: client,
		codec:  codec,
		state:  st,
	}

	for _, opt := range opts {
		opt(inst)
	}

	if inst.resolver == nil {
		inst.resolver = NewResolver(l, client)
	}
	if inst.downloader == nil {
		inst.downloader = NewDownloader(l, client)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithFallback(v Fallback) Option {
	return func(o *Cache) {
		o.fallback = v
	}
}

func WithResolver(v *Resolver) Option {
	return func(o *Cache) {
		o.resolver = v
	}
}

func WithDownloader(v *Downloader) Option {
	return func(o *Cache) {
		o.downloader = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (c *Cache) logger() *zap.Logger {
	return c.l.With(zap.String("run_id", uuid.New().String()))
}

// tempDir creates a unique working directory below the runner temp dir.
func (c *Cache) tempDir() (string, error) {
	base := c.cfg.Runner.TempDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create temp dir")
	}
	return dir, nil
}

func (c *Cache) listArchive(ctx context.Context, l *zap.Logger, archivePath string) {
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	if err := c.codec.List(ctx, archivePath, c.cfg.Compression); err != nil {
		l.Debug("failed to list archive", zap.Error(err))
	}
}

func (c *Cache) fallbackEnabled(l *zap.Logger) bool {
	switch {
	case !c.cfg.UseFallback:
		l.Debug("fallback cache disabled")
		return false
	case IsRestrictedHost(c.cfg.Runner.ServerURL):
		l.Warn("fallback cache is not supported on GitHub Enterprise Server", zap.String("server_url", c.cfg.Runner.ServerURL))
		return false
	case c.fallback == nil:
		l.Warn("fallback cache enabled but no fallback backend configured")
		return false
	default:
		return true
	}
}
