package store

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// s3Server is a minimal path style S3 endpoint for one bucket.
type s3Server struct {
	bucket   string
	objects  map[string][]byte
	modified map[string]time.Time
	denyList bool
	auth     []string
	mu       sync.Mutex
}

func (s *s3Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = append(s.auth, r.Header.Get("Authorization"))

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if parts[0] != s.bucket {
		http.Error(w, "", http.StatusNotFound)
		return
	}
	if len(parts) == 1 || parts[1] == "" {
		s.list(w, r.URL.Query())
		return
	}

	key := parts[1]
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		s.objects[key] = data
		s.modified[key] = time.Now().UTC()
		w.Header().Set("ETag", `"etag"`)
	case http.MethodHead, http.MethodGet:
		data, ok := s.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Last-Modified", s.modified[key].Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *s3Server) list(w http.ResponseWriter, query url.Values) {
	if s.denyList {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`)
		return
	}

	prefix := query.Get("prefix")
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", s.bucket, prefix, len(keys))
	for _, key := range keys {
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>"etag"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`,
			key, s.modified[key].Format("2006-01-02T15:04:05.000Z"), len(s.objects[key]))
	}
	b.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, b.String())
}

func newTestMinio(t *testing.T, creds ...credentials.Value) (*Minio, *s3Server) {
	t.Helper()
	srv := &s3Server{bucket: "cache", objects: map[string][]byte{}, modified: map[string]time.Time{}}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	c, err := NewMinio(MinioConfig{
		Endpoint:    host,
		Port:        p,
		Insecure:    true,
		Region:      "us-east-1",
		Credentials: creds,
	})
	require.NoError(t, err)
	return c, srv
}

func TestMinio_ListObjects(t *testing.T) {
	c, srv := newTestMinio(t)
	now := time.Now().UTC().Truncate(time.Second)
	srv.objects["linux-a/cache.tzst"] = []byte("a")
	srv.modified["linux-a/cache.tzst"] = now.Add(-time.Hour)
	srv.objects["linux-b/cache.tzst"] = []byte("bb")
	srv.modified["linux-b/cache.tzst"] = now
	srv.objects["darwin-a/cache.tzst"] = []byte("d")
	srv.modified["darwin-a/cache.tzst"] = now

	objects, err := List(context.Background(), c, "cache", "linux-", DefaultListTimeout)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "linux-a/cache.tzst", objects[0].Name)
	assert.Equal(t, int64(1), objects[0].Size)
	assert.True(t, now.Add(-time.Hour).Equal(objects[0].LastModified))
	assert.Equal(t, "linux-b/cache.tzst", objects[1].Name)
	assert.Equal(t, int64(2), objects[1].Size)
}

func TestMinio_ListObjects_error(t *testing.T) {
	c, srv := newTestMinio(t)
	srv.denyList = true

	var results []ListResult
	for res := range c.ListObjects(context.Background(), "cache", "linux-", true) {
		results = append(results, res)
	}
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	_, err := List(context.Background(), c, "cache", "linux-", DefaultListTimeout)
	require.Error(t, err)
}

func TestMinio_PutGet(t *testing.T) {
	ctx := context.Background()
	c, srv := newTestMinio(t)

	src := filepath.Join(t.TempDir(), "cache.tzst")
	require.NoError(t, os.WriteFile(src, []byte("test-data"), 0o600))
	require.NoError(t, c.FPutObject(ctx, "cache", "linux-rust/cache.tzst", src, PutOptions{ContentType: "application/octet-stream"}))
	assert.Equal(t, []byte("test-data"), srv.objects["linux-rust/cache.tzst"])

	dst := filepath.Join(t.TempDir(), "restore", "cache.tzst")
	require.NoError(t, c.FGetObject(ctx, "cache", "linux-rust/cache.tzst", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "test-data", string(data))
}

func TestMinio_FGetObject_missing(t *testing.T) {
	c, _ := newTestMinio(t)

	dst := filepath.Join(t.TempDir(), "cache.tzst")
	require.Error(t, c.FGetObject(context.Background(), "cache", "linux-rust/cache.tzst", dst))
	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestMinio_Credentials(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		c, srv := newTestMinio(t, credentials.Value{})
		_, err := List(context.Background(), c, "cache", "", DefaultListTimeout)
		require.NoError(t, err)
		assert.Equal(t, []string{""}, srv.auth)
	})

	t.Run("first complete set signs", func(t *testing.T) {
		c, srv := newTestMinio(t,
			credentials.Value{AccessKeyID: "env-id"},
			credentials.Value{AccessKeyID: "input-id", SecretAccessKey: "input-secret", SignerType: credentials.SignatureV4},
		)
		_, err := List(context.Background(), c, "cache", "", DefaultListTimeout)
		require.NoError(t, err)
		require.Len(t, srv.auth, 1)
		assert.Contains(t, srv.auth[0], "Credential=input-id/")
	})
}
