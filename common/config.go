package common

import (
	"sync"

	"sacctcollapse/config"
)

// Config objects are cached by file name and never evicted; the daemon and the worker pool ask
// for the same file repeatedly.

var (
	// MT: Locked
	configCacheLock sync.Mutex
	configCache     = make(map[string]*config.Config)
)

// GetConfig loads and caches the configuration.  The empty name means the default lookup.
func GetConfig(configName string) (*config.Config, error) {
	configCacheLock.Lock()
	defer configCacheLock.Unlock()

	if cfg := configCache[configName]; cfg != nil {
		return cfg, nil
	}

	cfg, err := config.Load(configName)
	if err != nil {
		return nil, err
	}
	configCache[configName] = cfg
	return cfg, nil
}
