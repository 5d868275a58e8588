package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-integrations/core"
)

const syncOperationCacheKeyPrefix = "go-integrations::sync_operation::v1"

// SyncOperationBackend is the store surface the cache decorates.
type SyncOperationBackend interface {
	Get(ctx context.Context, id string) (core.SyncOperation, error)
	SaveSyncOperations(ctx context.Context, ops []core.SyncOperation) error
	LoadSyncOperations(ctx context.Context) ([]core.SyncOperation, error)
}

// CachedSyncOperationStore serves Get through a read-through cache and drops
// cached entries whenever an operation is saved.
type CachedSyncOperationStore struct {
	base  SyncOperationBackend
	cache repositorycache.CacheService
}

func NewCachedSyncOperationStore(
	base SyncOperationBackend,
	cacheService repositorycache.CacheService,
) (*CachedSyncOperationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base sync operation store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: sync operation cache service is required")
	}
	return &CachedSyncOperationStore{base: base, cache: cacheService}, nil
}

// SyncOperationCacheKey returns go-integrations::sync_operation::v1::<id> with
// the id URL-path escaped.
func SyncOperationCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", core.BadInputError("sqlstore: sync operation id is required", nil)
	}
	return syncOperationCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (s *CachedSyncOperationStore) Get(ctx context.Context, id string) (core.SyncOperation, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.SyncOperation{}, fmt.Errorf("sqlstore: cached sync operation store is not configured")
	}
	key, err := SyncOperationCacheKey(id)
	if err != nil {
		return core.SyncOperation{}, err
	}
	op, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.SyncOperation, error) {
		fetched, fetchErr := s.base.Get(ctx, strings.TrimSpace(id))
		if fetchErr != nil {
			return core.SyncOperation{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return core.SyncOperation{}, err
	}
	return op.Clone(), nil
}

func (s *CachedSyncOperationStore) SaveSyncOperations(ctx context.Context, ops []core.SyncOperation) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached sync operation store is not configured")
	}
	if err := s.base.SaveSyncOperations(ctx, ops); err != nil {
		return err
	}
	for _, op := range ops {
		key, err := SyncOperationCacheKey(op.ID)
		if err != nil {
			return err
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *CachedSyncOperationStore) LoadSyncOperations(ctx context.Context) ([]core.SyncOperation, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached sync operation store is not configured")
	}
	return s.base.LoadSyncOperations(ctx)
}
