// Package iostore persists benchmark history behind the HistoryStore contract.
package iostore

import (
	"sync"

	"github.com/huangsam/benchtrail/internal/contract"
)

// HistoryStoreManager hands out the process-wide history store.
type HistoryStoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	history      contract.HistoryStore
}

var _ contract.StoreManager = &HistoryStoreManager{} // Compile-time check

// GetHistoryStore returns the configured HistoryStore.
func (mgr *HistoryStoreManager) GetHistoryStore() contract.HistoryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.history
}
