// Package iocache persists diff stats and run history behind database/sql.
package iocache

import (
	"sync"

	"github.com/huangsam/kernscore/internal/contract"
)

// StoreManager manages the diff cache and the run history stores.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	diff         contract.CacheStore
	history      contract.HistoryStore
}

var _ contract.CacheManager = &StoreManager{} // Compile-time check

// GetDiffStore returns the diff CacheStore, or nil when caching is disabled.
func (mgr *StoreManager) GetDiffStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.diff
}

// GetHistoryStore returns the HistoryStore, or nil when history is disabled.
func (mgr *StoreManager) GetHistoryStore() contract.HistoryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.history
}
