package billing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/astralpost/astralpost/pkg/observability"
)

// PriceMap maps Stripe price ids to tiers. The backing YAML file is
// hot-reloaded so price changes do not need a deploy.
type PriceMap struct {
	mu     sync.RWMutex
	path   string
	prices map[string]Tier
	logger *observability.Logger
}

type priceMapFile struct {
	Prices map[string]string `yaml:"prices"`
}

// LoadPriceMap reads the price map file. A missing file yields an empty map
// and a warning rather than an error; every lookup then falls through to
// metadata and the configured default.
func LoadPriceMap(path string, logger *observability.Logger) (*PriceMap, error) {
	pm := &PriceMap{
		path:   path,
		prices: make(map[string]Tier),
		logger: logger,
	}

	if err := pm.reload(); err != nil {
		if os.IsNotExist(err) {
			logger.WithField("path", path).Warn("price map file missing, starting empty")
			return pm, nil
		}
		return nil, err
	}

	return pm, nil
}

func (pm *PriceMap) reload() error {
	data, err := os.ReadFile(pm.path)
	if err != nil {
		return err
	}

	var file priceMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse price map %s: %w", pm.path, err)
	}

	prices := make(map[string]Tier, len(file.Prices))
	for priceID, tierName := range file.Prices {
		tier := Tier(tierName)
		if !tier.Paid() {
			return fmt.Errorf("price map %s: price %s maps to non-paid tier %q", pm.path, priceID, tierName)
		}
		prices[priceID] = tier
	}

	pm.mu.Lock()
	pm.prices = prices
	pm.mu.Unlock()

	pm.logger.WithField("path", pm.path).WithField("entries", len(prices)).Info("price map loaded")
	return nil
}

// Resolve returns the tier for a price id.
func (pm *PriceMap) Resolve(priceID string) (Tier, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	tier, ok := pm.prices[priceID]
	return tier, ok
}

// Len returns the number of mapped prices.
func (pm *PriceMap) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.prices)
}

// Watch reloads the price map whenever the file changes, until the context
// is canceled. Editors and config mounts replace files rather than writing
// in place, so the parent directory is watched and events are filtered by
// name.
func (pm *PriceMap) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(pm.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		defer observability.RecoverPanic(pm.logger, "price map watcher")

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(pm.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := pm.reload(); err != nil {
					// Keep serving the previous map on a bad edit.
					pm.logger.WithError(err).Warn("price map reload failed, keeping previous mapping")
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				pm.logger.WithError(err).Warn("price map watcher error")

			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
