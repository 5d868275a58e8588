package sqlstore

import (
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// Stores bundles the bun-backed stores that share one database.
type Stores struct {
	DB             *bun.DB
	SyncOperations *SyncOperationStore
	Deliveries     *WebhookDeliveryStore
}

// NewStores builds every store from a *bun.DB or from a client exposing
// DB() *bun.DB, such as a go-persistence-bun client.
func NewStores(source any) (*Stores, error) {
	db, err := bunDB(source)
	if err != nil {
		return nil, err
	}
	syncOperations, err := NewSyncOperationStore(db)
	if err != nil {
		return nil, err
	}
	deliveries, err := NewWebhookDeliveryStore(db)
	if err != nil {
		return nil, err
	}
	return &Stores{DB: db, SyncOperations: syncOperations, Deliveries: deliveries}, nil
}

// CachedSyncOperations puts the sync operation store behind a read-through
// cache.
func (s *Stores) CachedSyncOperations(cacheService repositorycache.CacheService) (*CachedSyncOperationStore, error) {
	if s == nil || s.SyncOperations == nil {
		return nil, fmt.Errorf("sqlstore: stores are not built")
	}
	return NewCachedSyncOperationStore(s.SyncOperations, cacheService)
}

func bunDB(source any) (*bun.DB, error) {
	switch typed := source.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: database is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: database is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		if db := typed.DB(); db != nil {
			return db, nil
		}
		return nil, fmt.Errorf("sqlstore: %T returned a nil bun db", source)
	default:
		return nil, fmt.Errorf("sqlstore: cannot resolve a bun db from %T", source)
	}
}
