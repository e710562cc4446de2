package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/foomo/actions-cache/pkg/archive"
	"github.com/foomo/actions-cache/pkg/config"
	"github.com/foomo/actions-cache/pkg/metrics"
	"github.com/foomo/actions-cache/pkg/state"
	"github.com/foomo/actions-cache/pkg/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Outcome describes where a restore got its data from.
type Outcome string

const (
	OutcomeExact    Outcome = "exact"
	OutcomePrefix   Outcome = "prefix"
	OutcomeFallback Outcome = "fallback"
	OutcomeMiss     Outcome = "miss"
)

// RestoreResult is reported to the workflow after a restore.
type RestoreResult struct {
	CacheHit   bool
	MatchedKey string
	Outcome    Outcome
}

// Restore persists the inputs needed by Save, resolves and downloads the best
// matching archive and unpacks it into the workspace. Any failure past input
// validation degrades to the fallback cache or a miss, so the returned error
// is always a validation error.
func (c *Cache) Restore(ctx context.Context) (RestoreResult, error) {
	l := c.logger()

	if err := multierr.Combine(
		config.Required("bucket", c.cfg.Bucket),
		config.Required("key", c.cfg.Key),
	); err != nil {
		return RestoreResult{}, err
	}

	c.persist(ctx, l)

	res, err := c.restore(ctx, l)
	if err != nil {
		l.Info("restore from object store failed", zap.Error(err))
		res = c.restoreFallback(ctx, l)
	}

	matchedKey := ""
	if res.Outcome == OutcomeExact || res.Outcome == OutcomePrefix {
		matchedKey = res.MatchedKey
	}
	if err := c.state.Set(ctx, state.MatchedKey, matchedKey); err != nil {
		l.Warn("failed to save state", zap.String("name", state.MatchedKey), zap.Error(err))
	}

	metrics.RestoreCounter.WithLabelValues(string(res.Outcome)).Inc()
	l.Info("restore finished",
		zap.String("outcome", string(res.Outcome)),
		zap.String("matched_key", res.MatchedKey),
		zap.Bool("cache_hit", res.CacheHit),
	)
	return res, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// persist keeps the values the post step needs since inputs may be
// re-evaluated by then.
func (c *Cache) persist(ctx context.Context, l *zap.Logger) {
	values := []struct{ name, value string }{
		{state.PrimaryKey, c.cfg.Key},
		{state.AccessKey, c.cfg.Storage.S3.AccessKey},
		{state.SecretKey, c.cfg.Storage.S3.SecretKey},
		{state.SessionToken, c.cfg.Storage.S3.SessionToken},
	}
	for _, v := range values {
		if err := c.state.Set(ctx, v.name, v.value); err != nil {
			l.Warn("failed to save state", zap.String("name", v.name), zap.Error(err))
		}
	}
}

func (c *Cache) restore(ctx context.Context, l *zap.Logger) (RestoreResult, error) {
	m := c.cfg.Compression

	// effective keys map back to the keys the workflow knows
	key := JoinKey(c.cfg.SubFolder, c.cfg.Key)
	originals := map[string]string{key: c.cfg.Key}
	restoreKeys := make([]string, 0, len(c.cfg.RestoreKeys))
	for _, k := range c.cfg.RestoreKeys {
		effective := JoinKey(c.cfg.SubFolder, k)
		restoreKeys = append(restoreKeys, effective)
		if _, ok := originals[effective]; !ok {
			originals[effective] = k
		}
	}
	l.Info("resolving cache", zap.String("bucket", c.cfg.Bucket), zap.String("key", key), zap.Strings("restore_keys", restoreKeys))

	match, err := c.resolver.FindObject(ctx, c.cfg.Bucket, key, restoreKeys, m)
	if err != nil {
		return RestoreResult{}, err
	}
	l.Info("found cache object", zap.String("object", match.Object.Name), zap.String("matched_key", match.MatchedKey))

	dir, err := c.tempDir()
	if err != nil {
		return RestoreResult{}, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			l.Debug("failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
		}
	}()
	archivePath := filepath.Join(dir, archive.FileName(m))

	c.downloader.DownloadWithRetry(ctx, c.cfg.Bucket, match.Object.Name, archivePath)
	if _, err := os.Stat(archivePath); err != nil {
		return RestoreResult{}, &TransferError{Op: "download", Object: match.Object.Name, Err: errArchiveMissing}
	}

	c.listArchive(ctx, l, archivePath)
	l.Info("cache size",
		zap.String("size", utils.FormatSize(match.Object.Size, utils.SizeFormatDecimal)),
		zap.Int64("bytes", match.Object.Size),
	)
	metrics.ArchiveSizeGauge.WithLabelValues("restore").Set(float64(match.Object.Size))

	start := time.Now()
	if err := c.codec.Unpack(ctx, archivePath, m); err != nil {
		return RestoreResult{}, &TransferError{Op: "unpack", Object: match.Object.Name, Err: err}
	}
	metrics.TransferDuration.WithLabelValues("unpack").Observe(time.Since(start).Seconds())

	res := RestoreResult{
		CacheHit:   match.MatchedKey == key,
		MatchedKey: originals[match.MatchedKey],
		Outcome:    OutcomePrefix,
	}
	if res.CacheHit {
		res.Outcome = OutcomeExact
	}
	l.Info("cache restored successfully", zap.String("matched_key", res.MatchedKey), zap.Bool("cache_hit", res.CacheHit))
	return res, nil
}

func (c *Cache) restoreFallback(ctx context.Context, l *zap.Logger) RestoreResult {
	res := RestoreResult{Outcome: OutcomeMiss}
	if !c.fallbackEnabled(l) {
		return res
	}

	l.Info("restoring cache using fallback cache")
	key, err := c.fallback.Restore(ctx, c.cfg.Paths, c.cfg.Key, c.cfg.RestoreKeys)
	switch {
	case err != nil:
		l.Info("fallback cache restore failed", zap.Error(err))
	case key == "":
		l.Info("fallback cache restore failed", zap.Error(ErrNotFound))
	default:
		l.Info("fallback cache restored successfully", zap.String("matched_key", key))
		res = RestoreResult{
			CacheHit:   key == c.cfg.Key,
			MatchedKey: key,
			Outcome:    OutcomeFallback,
		}
	}
	return res
}
