package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foomo/actions-cache/pkg/metrics"
	"github.com/foomo/actions-cache/pkg/store"
	"go.uber.org/zap"
)

const (
	// DefaultRetries is the number of retries after the initial download attempt
	DefaultRetries = 3
	// DefaultRetryInterval is the fixed pause between two download attempts
	DefaultRetryInterval = 5 * time.Second
)

type (
	Downloader struct {
		l        *zap.Logger
		client   store.Client
		retries  int
		interval time.Duration
		timer    backoff.Timer
	}
	DownloaderOption func(*Downloader)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewDownloader(l *zap.Logger, client store.Client, opts ...DownloaderOption) *Downloader {
	inst := &Downloader{
		l:        l.Named("downloader"),
		client:   client,
		retries:  DefaultRetries,
		interval: DefaultRetryInterval,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func DownloaderWithRetries(v int) DownloaderOption {
	return func(o *Downloader) {
		o.retries = v
	}
}

func DownloaderWithInterval(v time.Duration) DownloaderOption {
	return func(o *Downloader) {
		o.interval = v
	}
}

// DownloaderWithTimer replaces the timer used to wait between attempts.
func DownloaderWithTimer(v backoff.Timer) DownloaderOption {
	return func(o *Downloader) {
		o.timer = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// DownloadWithRetry fetches an object into filePath with one initial attempt
// and up to retries further attempts. Failures are logged, not returned:
// callers check for the file afterwards.
func (d *Downloader) DownloadWithRetry(ctx context.Context, bucket, name, filePath string) {
	l := d.l.With(zap.String("bucket", bucket), zap.String("object", name))

	var attempts int
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if d.retries > 0 {
		// zero max retries means unlimited
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(d.interval), uint64(d.retries))
	}
	b := backoff.WithContext(policy, ctx)
	operation := func() error {
		attempts++
		start := time.Now()
		if err := d.client.FGetObject(ctx, bucket, name, filePath); err != nil {
			metrics.DownloadAttemptCounter.WithLabelValues("error").Inc()
			return err
		}
		metrics.DownloadAttemptCounter.WithLabelValues("success").Inc()
		metrics.TransferDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
		return nil
	}
	notify := func(err error, next time.Duration) {
		l.Warn("failed to download object, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", next),
			zap.String("error_type", fmt.Sprintf("%T", err)),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotifyWithTimer(operation, b, notify, d.timer); err != nil {
		l.Error("download failed", zap.Int("attempts", attempts), zap.Error(err))
		return
	}
	l.Info("downloaded object successfully", zap.Int("attempts", attempts))
}
