package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job struct {
	t          *testing.T
	bucketsDir string
	workspace  string
	outputFile string
}

// newJob prepares the environment of one job using a file bucket and file
// state, optionally as plain run steps on a GitHub runner.
func newJob(t *testing.T, runner bool) *job {
	t.Helper()
	j := &job{
		t:          t,
		bucketsDir: t.TempDir(),
		workspace:  t.TempDir(),
		outputFile: filepath.Join(t.TempDir(), "output"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(j.bucketsDir, "cache"), 0o755))

	for k, v := range map[string]string{
		"INPUT_BUCKET":              "cache",
		"INPUT_KEY":                 "linux-rust",
		"INPUT_RESTORE-KEYS":        "",
		"INPUT_PATH":                "target",
		"INPUT_BUCKET_SUB_FOLDER":   "",
		"INPUT_STORAGE":             "blob",
		"INPUT_BLOB-URL":            "file://" + j.bucketsDir + "/{bucket}",
		"INPUT_COMPRESSION":         "",
		"INPUT_USE-FALLBACK":        "",
		"INPUT_FALLBACK-URL":        "",
		"INPUT_METRICS-PUSHGATEWAY": "",
		"GITHUB_REF":                "refs/heads/main",
		"GITHUB_EVENT_NAME":         "push",
		"GITHUB_WORKSPACE":          j.workspace,
		"GITHUB_OUTPUT":             j.outputFile,
		"GITHUB_RUN_ID":             "7",
		"RUNNER_TEMP":               t.TempDir(),
		"RUNNER_DEBUG":              "",
		"ACTIONS_CACHE_STATE_DIR":   t.TempDir(),
		"STATE_CACHE_KEY":           "",
		"STATE_CACHE_RESULT":        "",
		"GITHUB_ACTIONS":            "",
		"GITHUB_STATE":              "",
	} {
		t.Setenv(k, v)
	}
	if runner {
		t.Setenv("GITHUB_ACTIONS", "true")
		t.Setenv("GITHUB_STATE", filepath.Join(t.TempDir(), "state"))
	}
	return j
}

func (j *job) run(args ...string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func (j *job) writeApp(content string) {
	j.t.Helper()
	require.NoError(j.t, os.MkdirAll(filepath.Join(j.workspace, "target"), 0o755))
	require.NoError(j.t, os.WriteFile(filepath.Join(j.workspace, "target", "app"), []byte(content), 0o644))
}

func (j *job) readApp() string {
	j.t.Helper()
	data, err := os.ReadFile(filepath.Join(j.workspace, "target", "app"))
	require.NoError(j.t, err)
	return string(data)
}

func (j *job) object(key string) []byte {
	j.t.Helper()
	data, err := os.ReadFile(filepath.Join(j.bucketsDir, "cache", key, "cache.tzst"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(j.t, err)
	return data
}

func (j *job) output() string {
	j.t.Helper()
	data, err := os.ReadFile(j.outputFile)
	require.NoError(j.t, err)
	return string(data)
}

func TestRestoreSave_exactHit(t *testing.T) {
	for name, runner := range map[string]bool{"local": false, "runner": true} {
		t.Run(name, func(t *testing.T) {
			j := newJob(t, runner)

			// seed the bucket from an earlier job
			j.writeApp("v1")
			require.NoError(t, j.run("save"))
			seeded := j.object("linux-rust")
			require.NotNil(t, seeded)

			require.NoError(t, os.RemoveAll(filepath.Join(j.workspace, "target")))
			require.NoError(t, j.run("restore"))
			assert.Equal(t, "v1", j.readApp())
			assert.Contains(t, j.output(), "cache-hit<<")
			assert.Contains(t, j.output(), "\ntrue\n")

			// the key frozen by restore wins over a drifted input
			t.Setenv("INPUT_KEY", "linux-rust-drifted")
			j.writeApp("v2")
			require.NoError(t, j.run("save"))
			assert.Equal(t, seeded, j.object("linux-rust"))
			assert.Nil(t, j.object("linux-rust-drifted"))
		})
	}
}

func TestRestoreSave_prefixHit(t *testing.T) {
	j := newJob(t, false)
	j.writeApp("v1")
	require.NoError(t, j.run("save"))

	t.Setenv("INPUT_KEY", "linux-rust-next")
	t.Setenv("INPUT_RESTORE-KEYS", "linux-rust")
	require.NoError(t, os.RemoveAll(filepath.Join(j.workspace, "target")))
	require.NoError(t, j.run("restore"))
	assert.Equal(t, "v1", j.readApp())
	assert.Contains(t, j.output(), "\nfalse\n")

	j.writeApp("v2")
	require.NoError(t, j.run("save"))
	assert.NotNil(t, j.object("linux-rust-next"))
}

func TestRestore_validation(t *testing.T) {
	j := newJob(t, false)
	t.Setenv("INPUT_BUCKET", "")

	require.Error(t, j.run("restore"))
}

func TestRestore_pushesMetricsOnFailure(t *testing.T) {
	var pushes atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	j := newJob(t, false)
	t.Setenv("INPUT_BUCKET", "")
	t.Setenv("INPUT_METRICS-PUSHGATEWAY", gateway.URL)

	require.Error(t, j.run("restore"))
	assert.Equal(t, int32(1), pushes.Load())
}
