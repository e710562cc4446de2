package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foomo/actions-cache/pkg/archive"
	"github.com/foomo/actions-cache/pkg/config"
	"github.com/foomo/actions-cache/pkg/state"
	"github.com/foomo/actions-cache/pkg/store/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testBucket = "cache"

type (
	fakeTimer struct {
		c         chan time.Time
		durations []time.Duration
	}
	fakeFallback struct {
		key      string
		err      error
		restored []string
		saved    []string
	}
	fixture struct {
		t         *testing.T
		cfg       config.Config
		client    *mock.Client
		state     *state.FileStore
		timer     *fakeTimer
		fallback  *fakeFallback
		workspace string
	}
)

func (f *fakeTimer) Start(d time.Duration) {
	f.durations = append(f.durations, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Now()
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time {
	return f.c
}

func (f *fakeFallback) Restore(_ context.Context, _ []string, key string, _ []string) (string, error) {
	f.restored = append(f.restored, key)
	return f.key, f.err
}

func (f *fakeFallback) Save(_ context.Context, _ []string, key string) error {
	f.saved = append(f.saved, key)
	return f.err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := state.NewFileStore(t.TempDir(), "job")
	require.NoError(t, err)
	workspace := t.TempDir()
	return &fixture{
		t: t,
		cfg: config.Config{
			Bucket:      testBucket,
			Key:         "linux-rust",
			Paths:       []string{"target"},
			Compression: archive.MethodZstd,
			Runner: config.Runner{
				ServerURL: config.DefaultServerURL,
				Ref:       "refs/heads/main",
				EventName: "push",
				Workspace: workspace,
				TempDir:   t.TempDir(),
			},
		},
		client:    mock.New(),
		state:     st,
		timer:     &fakeTimer{},
		fallback:  &fakeFallback{},
		workspace: workspace,
	}
}

func (f *fixture) cache(opts ...Option) *Cache {
	l := zaptest.NewLogger(f.t)
	opts = append([]Option{
		WithDownloader(NewDownloader(l, f.client, DownloaderWithTimer(f.timer))),
		WithResolver(NewResolver(l, f.client, ResolverWithListTimeout(time.Second))),
	}, opts...)
	return New(l, f.cfg, f.client, archive.NewCodec(l, archive.CodecWithWorkspace(f.workspace)), f.state, opts...)
}

// archiveOf packs a workspace containing target/app with the given content.
func (f *fixture) archiveOf(content string) []byte {
	f.t.Helper()
	src := f.t.TempDir()
	require.NoError(f.t, os.MkdirAll(filepath.Join(src, "target"), 0o755))
	require.NoError(f.t, os.WriteFile(filepath.Join(src, "target", "app"), []byte(content), 0o644))

	codec := archive.NewCodec(zaptest.NewLogger(f.t), archive.CodecWithWorkspace(src))
	paths, err := codec.ResolvePaths([]string{"target"})
	require.NoError(f.t, err)
	archivePath, err := codec.Pack(context.Background(), f.t.TempDir(), paths, f.cfg.Compression)
	require.NoError(f.t, err)
	data, err := os.ReadFile(archivePath)
	require.NoError(f.t, err)
	return data
}

func (f *fixture) writeWorkspace(content string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Join(f.workspace, "target"), 0o755))
	require.NoError(f.t, os.WriteFile(filepath.Join(f.workspace, "target", "app"), []byte(content), 0o644))
}

func (f *fixture) workspaceContent() string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.workspace, "target", "app"))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) stateValue(name string) string {
	f.t.Helper()
	v, err := f.state.Get(context.Background(), name)
	require.NoError(f.t, err)
	return v
}
