package cache

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/foomo/actions-cache/pkg/archive"
	"github.com/foomo/actions-cache/pkg/config"
	"github.com/foomo/actions-cache/pkg/metrics"
	"github.com/foomo/actions-cache/pkg/state"
	"github.com/foomo/actions-cache/pkg/store"
	"github.com/foomo/actions-cache/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ContentType of uploaded archives
const ContentType = "application/octet-stream"

// Save packs the configured paths and uploads them under the primary key
// persisted by Restore. It does nothing on events without a ref or when the
// restore already hit the primary key exactly.
func (c *Cache) Save(ctx context.Context) error {
	l := c.logger()

	if c.cfg.Runner.Ref == "" {
		l.Warn("event validation error: the event is not tied to a branch or tag ref, not saving",
			zap.String("event", c.cfg.Runner.EventName),
		)
		metrics.SaveCounter.WithLabelValues("skipped").Inc()
		return nil
	}

	key := c.primaryKey(ctx, l)
	if err := config.Required("key", key); err != nil {
		metrics.SaveCounter.WithLabelValues("failed").Inc()
		return err
	}

	if c.isExactKeyMatch(ctx, l, key) {
		l.Info("cache was an exact key match, not saving", zap.String("key", key))
		metrics.SaveCounter.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := config.Required("bucket", c.cfg.Bucket); err != nil {
		metrics.SaveCounter.WithLabelValues("failed").Inc()
		return err
	}

	err := c.save(ctx, l, key)
	if err == nil {
		metrics.SaveCounter.WithLabelValues("uploaded").Inc()
		return nil
	}

	l.Info("save to object store failed", zap.Error(err))
	if !c.fallbackEnabled(l) {
		metrics.SaveCounter.WithLabelValues("failed").Inc()
		return err
	}

	l.Info("saving cache using fallback cache")
	if ferr := c.fallback.Save(ctx, c.cfg.Paths, key); ferr != nil {
		metrics.SaveCounter.WithLabelValues("failed").Inc()
		return multierr.Append(err, errors.Wrap(ferr, "fallback save failed"))
	}
	l.Info("cache saved using fallback cache successfully", zap.String("key", key))
	metrics.SaveCounter.WithLabelValues("fallback").Inc()
	return nil
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// primaryKey prefers the key persisted by Restore over the current input.
func (c *Cache) primaryKey(ctx context.Context, l *zap.Logger) string {
	key, err := c.state.Get(ctx, state.PrimaryKey)
	if err != nil {
		l.Warn("failed to read state", zap.String("name", state.PrimaryKey), zap.Error(err))
	}
	if key == "" {
		key = c.cfg.Key
	}
	return key
}

func (c *Cache) isExactKeyMatch(ctx context.Context, l *zap.Logger, key string) bool {
	matchedKey, err := c.state.Get(ctx, state.MatchedKey)
	if err != nil {
		l.Warn("failed to read state", zap.String("name", state.MatchedKey), zap.Error(err))
		return false
	}
	return IsExactKeyMatch(matchedKey, key)
}

func (c *Cache) save(ctx context.Context, l *zap.Logger, key string) error {
	m := c.cfg.Compression

	paths, err := c.codec.ResolvePaths(c.cfg.Paths)
	if err != nil {
		return err
	}
	l.Debug("resolved cache paths", zap.Strings("paths", paths))

	dir, err := c.tempDir()
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			l.Debug("failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	object := path.Join(c.cfg.SubFolder, key, archive.FileName(m))

	start := time.Now()
	archivePath, err := c.codec.Pack(ctx, dir, paths, m)
	if err != nil {
		return &TransferError{Op: "pack", Object: object, Err: err}
	}
	metrics.TransferDuration.WithLabelValues("pack").Observe(time.Since(start).Seconds())

	c.listArchive(ctx, l, archivePath)
	if info, err := os.Stat(archivePath); err == nil {
		l.Info("archive size",
			zap.String("size", utils.FormatSize(info.Size(), utils.SizeFormatDecimal)),
			zap.Int64("bytes", info.Size()),
		)
		metrics.ArchiveSizeGauge.WithLabelValues("save").Set(float64(info.Size()))
	}

	l.Info("uploading archive", zap.String("bucket", c.cfg.Bucket), zap.String("object", object))
	start = time.Now()
	if err := c.client.FPutObject(ctx, c.cfg.Bucket, object, archivePath, store.PutOptions{ContentType: ContentType}); err != nil {
		return &TransferError{Op: "upload", Object: object, Err: err}
	}
	metrics.TransferDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	l.Info("cache saved successfully", zap.String("object", object))
	return nil
}
