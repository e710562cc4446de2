package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foomo/actions-cache/pkg/store/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDownloader_DownloadWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantGets  int
		wantWaits []time.Duration
		wantFile  bool
	}{
		{"first attempt", 0, 1, nil, true},
		{"third attempt", 2, 3, []time.Duration{5 * time.Second, 5 * time.Second}, true},
		{"last attempt", 3, 4, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, true},
		{"exhausted", 10, 4, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mock.New()
			client.Add(testBucket, "linux-rust/cache.tzst", time.Now(), []byte("data"))
			client.GetFailures = tt.failures
			timer := &fakeTimer{}
			d := NewDownloader(zaptest.NewLogger(t), client, DownloaderWithTimer(timer))

			dest := filepath.Join(t.TempDir(), "cache.tzst")
			d.DownloadWithRetry(context.Background(), testBucket, "linux-rust/cache.tzst", dest)

			assert.Len(t, client.Gets(), tt.wantGets)
			assert.Equal(t, tt.wantWaits, timer.durations)
			_, err := os.Stat(dest)
			assert.Equal(t, tt.wantFile, err == nil)
		})
	}
}

func TestDownloader_DownloadWithRetry_retries(t *testing.T) {
	client := mock.New()
	client.GetFailures = 10
	timer := &fakeTimer{}
	d := NewDownloader(zaptest.NewLogger(t), client,
		DownloaderWithTimer(timer),
		DownloaderWithRetries(1),
		DownloaderWithInterval(time.Second),
	)

	d.DownloadWithRetry(context.Background(), testBucket, "missing", filepath.Join(t.TempDir(), "cache.tzst"))
	assert.Len(t, client.Gets(), 2)
	assert.Equal(t, []time.Duration{time.Second}, timer.durations)
}

func TestDownloader_DownloadWithRetry_canceled(t *testing.T) {
	client := mock.New()
	client.GetFailures = 10
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDownloader(zaptest.NewLogger(t), client, DownloaderWithTimer(&fakeTimer{}))

	dest := filepath.Join(t.TempDir(), "cache.tzst")
	d.DownloadWithRetry(ctx, testBucket, "missing", dest)
	require.Len(t, client.Gets(), 1)
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}
