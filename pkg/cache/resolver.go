package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/foomo/actions-cache/pkg/archive"
	"github.com/foomo/actions-cache/pkg/store"
	"go.uber.org/zap"
)

type (
	// MatchResult is the object chosen by the resolver and the key that matched it.
	MatchResult struct {
		Object     store.ObjectInfo
		MatchedKey string
	}
	Resolver struct {
		l           *zap.Logger
		client      store.Client
		listTimeout time.Duration
	}
	ResolverOption func(*Resolver)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewResolver(l *zap.Logger, client store.Client, opts ...ResolverOption) *Resolver {
	inst := &Resolver{
		l:           l.Named("resolver"),
		client:      client,
		listTimeout: store.DefaultListTimeout,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func ResolverWithListTimeout(v time.Duration) ResolverOption {
	return func(o *Resolver) {
		o.listTimeout = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// FindObject looks for an object stored under key first and takes the first
// one listed. Otherwise the restore keys are tried in order as prefixes: the
// first one with any archive written by method wins and its most recent
// archive is returned.
func (r *Resolver) FindObject(ctx context.Context, bucket, key string, restoreKeys []string, method archive.Method) (MatchResult, error) {
	r.l.Debug("finding exact match", zap.String("key", key), zap.Strings("restore_keys", restoreKeys))
	exact, err := store.List(ctx, r.client, bucket, key, r.listTimeout)
	if err != nil {
		return MatchResult{}, err
	}
	if len(exact) > 0 {
		r.l.Debug("using exact match", zap.String("object", exact[0].Name), zap.Int("found", len(exact)))
		return MatchResult{Object: exact[0], MatchedKey: key}, nil
	}

	fileName := archive.FileName(method)
	for _, restoreKey := range restoreKeys {
		r.l.Debug("finding object with prefix", zap.String("prefix", restoreKey))
		objects, err := store.List(ctx, r.client, bucket, restoreKey, r.listTimeout)
		if err != nil {
			return MatchResult{}, err
		}

		objects = filterByName(objects, fileName)
		if len(objects) == 0 {
			continue
		}
		sort.SliceStable(objects, func(i, j int) bool {
			return objects[i].LastModified.After(objects[j].LastModified)
		})
		r.l.Debug("using latest match", zap.String("object", objects[0].Name), zap.Time("last_modified", objects[0].LastModified))
		return MatchResult{Object: objects[0], MatchedKey: restoreKey}, nil
	}

	return MatchResult{}, ErrNotFound
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func filterByName(objects []store.ObjectInfo, marker string) []store.ObjectInfo {
	ret := objects[:0]
	for _, o := range objects {
		if strings.Contains(o.Name, marker) {
			ret = append(ret, o)
		}
	}
	return ret
}
