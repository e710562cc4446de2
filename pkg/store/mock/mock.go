package mock

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/foomo/actions-cache/pkg/store"
	"github.com/pkg/errors"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected failure")

type (
	// Client is an in-memory store.Client with failure injection.
	Client struct {
		// GetFailures makes the next n FGetObject calls fail
		GetFailures int
		// PutErr is returned by FPutObject when set
		PutErr error
		// ListErr is sent on every listing when set
		ListErr error
		// HangList keeps listings open until the context is canceled
		HangList bool

		objects  map[string]object
		gets     []string
		puts     []string
		listings []string
		mu       sync.Mutex
	}
	object struct {
		info store.ObjectInfo
		data []byte
	}
)

func New() *Client {
	return &Client{objects: map[string]object{}}
}

// Add stores an object with the given modification time.
func (c *Client) Add(bucket, name string, lastModified time.Time, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[bucket+"/"+name] = object{
		info: store.ObjectInfo{Name: name, LastModified: lastModified, Size: int64(len(data))},
		data: data,
	}
}

// Object returns a stored object's data.
func (c *Client) Object(bucket, name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.objects[bucket+"/"+name]
	return o.data, ok
}

// Gets returns the names of all FGetObject calls.
func (c *Client) Gets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.gets...)
}

// Puts returns the names of all FPutObject calls.
func (c *Client) Puts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.puts...)
}

// Listings returns the prefixes of all ListObjects calls.
func (c *Client) Listings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.listings...)
}

func (c *Client) ListObjects(ctx context.Context, bucket, prefix string, recursive bool) <-chan store.ListResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings = append(c.listings, prefix)

	var results []store.ListResult
	if c.ListErr != nil {
		results = append(results, store.ListResult{Err: c.ListErr})
	} else {
		for key, o := range c.objects {
			if strings.HasPrefix(key, bucket+"/"+prefix) {
				results = append(results, store.ListResult{Object: o.info})
			}
		}
		// object stores list lexicographically
		sort.Slice(results, func(i, j int) bool {
			return results[i].Object.Name < results[j].Object.Name
		})
	}

	ret := make(chan store.ListResult, len(results))
	for _, res := range results {
		ret <- res
	}
	if c.HangList {
		go func() {
			<-ctx.Done()
			close(ret)
		}()
	} else {
		close(ret)
	}
	return ret
}

func (c *Client) FGetObject(_ context.Context, bucket, name, filePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets = append(c.gets, name)
	if c.GetFailures > 0 {
		c.GetFailures--
		return ErrInjected
	}
	o, ok := c.objects[bucket+"/"+name]
	if !ok {
		return errors.Wrapf(store.ErrNotExist, "object %s", name)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filePath, o.data, 0o600)
}

func (c *Client) FPutObject(_ context.Context, bucket, name, filePath string, _ store.PutOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts = append(c.puts, name)
	if c.PutErr != nil {
		return c.PutErr
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	c.objects[bucket+"/"+name] = object{
		info: store.ObjectInfo{Name: name, LastModified: time.Now(), Size: int64(len(data))},
		data: data,
	}
	return nil
}
