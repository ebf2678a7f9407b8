//go:build !unix

package cache

import (
	"os"
	"sync"
)

// dirLocks serializes access per key directory within this process.
// Cross-process locking is only available on unix.
var dirLocks sync.Map

func lockDir(dir string, exclusive bool) (func(), error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}

	v, _ := dirLocks.LoadOrStore(dir, &sync.RWMutex{})
	mu := v.(*sync.RWMutex)
	if exclusive {
		mu.Lock()
		return mu.Unlock, nil
	}
	mu.RLock()
	return mu.RUnlock, nil
}
