/*
Copyright 2026 Presslane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package newswire

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/database"
	"github.com/presslane/newswire/internal/blobstore"
	"github.com/presslane/newswire/model"
)

// storeTestConfig installs a configuration with production defaults so code
// under test can call config.Fetch.
func storeTestConfig(t *testing.T) *config.Configuration {
	t.Helper()
	enabled := true
	cnf := &config.Configuration{
		ProjectName: "Newswire Test",
		Delivery: config.DeliveryConfig{
			MaxRetryAttempts:         4,
			RetryDelaySeconds:        180,
			RetryDelayCapSeconds:     3600,
			ExponentialBackoff:       &enabled,
			SchedulerIntervalSeconds: 10,
			MaxTransmitQueryLimit:    500,
			MaxWorkers:               10,
			TransmitTimeoutSeconds:   30,
			StuckThresholdMinutes:    15,
			MaxPackageDepth:          5,
			InlinePayloadLimitBytes:  256 * 1024,
		},
	}
	config.ConfigStore.Store(cnf)
	return cnf
}

// stubLoader serves items from a map, standing in for the editorial store.
type stubLoader struct {
	items map[string]*model.Item
}

func (l *stubLoader) GetItem(_ context.Context, itemID string) (*model.Item, error) {
	if item, ok := l.items[itemID]; ok {
		return item, nil
	}
	return nil, errors.Errorf("item %s not found", itemID)
}

func newTestEngine(ds database.IDataSource, loader ItemLoader) *Newswire {
	return &Newswire{
		datasource: ds,
		blobs:      blobstore.NewMemoryStore(),
		filters:    NewFilterCache(ds),
		items:      loader,
	}
}
