// Package iocache is for durable storage of discovery results and run history.
package iocache

import (
	"sync"

	"github.com/huangsam/repoharvest/internal/contract"
)

// StoreManager manages the discovery cache and the run store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	discovery    contract.CacheStore
	runs         contract.RunStore
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// GetDiscoveryStore returns the discovery CacheStore.
func (mgr *StoreManager) GetDiscoveryStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.discovery
}

// GetRunStore returns the RunStore.
func (mgr *StoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}
