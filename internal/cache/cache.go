package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daemonp/econnect2mqtt/internal/types"
)

const cacheFileName = "econnect2mqtt_cache.json"

// SaveCache writes the snapshot, stamping LastUpdate when unset.
func SaveCache(cacheData *types.CacheData) error {
	if cacheData == nil {
		return nil
	}
	if cacheData.LastUpdate.IsZero() {
		cacheData.LastUpdate = time.Now()
	}

	data, err := json.Marshal(cacheData)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	cacheDir, err := getCacheDir()
	if err != nil {
		return fmt.Errorf("failed to get cache directory: %w", err)
	}

	err = os.MkdirAll(cacheDir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	cacheFilePath := filepath.Join(cacheDir, cacheFileName)
	err = os.WriteFile(cacheFilePath, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// LoadCache returns nil without error when no snapshot exists.
func LoadCache() (*types.CacheData, error) {
	cacheDir, err := getCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache directory: %w", err)
	}

	cacheFilePath := filepath.Join(cacheDir, cacheFileName)
	data, err := os.ReadFile(cacheFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var cacheData types.CacheData
	err = json.Unmarshal(data, &cacheData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &cacheData, nil
}

func DeleteCache() error {
	cacheDir, err := getCacheDir()
	if err != nil {
		return fmt.Errorf("failed to get cache directory: %w", err)
	}

	cacheFilePath := filepath.Join(cacheDir, cacheFileName)
	err = os.Remove(cacheFilePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}

	return nil
}

func getCacheDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".cache", "econnect2mqtt"), nil
}
