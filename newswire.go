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
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/database"
	"github.com/presslane/newswire/internal/blobstore"
	redis_db "github.com/presslane/newswire/internal/redis-db"
	"github.com/presslane/newswire/model"
)

// ItemLoader resolves item references during package fan-out. The editorial
// store owns items; the engine only reads them.
type ItemLoader interface {
	GetItem(ctx context.Context, itemID string) (*model.Item, error)
}

// Newswire is the publish fan-out and delivery queue engine.
type Newswire struct {
	redis      redis.UniversalClient
	datasource database.IDataSource
	blobs      blobstore.Store
	filters    *FilterCache
	items      ItemLoader
}

// NewNewswire initializes the engine with the provided database datasource.
// It fetches the configuration and wires Redis, the blob store and the filter
// cache.
func NewNewswire(db database.IDataSource, items ItemLoader) (*Newswire, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}

	var blobs blobstore.Store
	if configuration.BlobStore.S3BucketName != "" {
		blobs, err = blobstore.NewS3Store(context.Background())
		if err != nil {
			return nil, err
		}
	} else {
		blobs = blobstore.NewMemoryStore()
	}

	engine := &Newswire{
		datasource: db,
		redis:      redisClient.Client(),
		blobs:      blobs,
		filters:    NewFilterCache(db),
		items:      items,
	}
	return engine, nil
}

// NewWithStores wires an engine from explicit dependencies, skipping the
// configuration driven setup. Embedders and tests use this.
func NewWithStores(db database.IDataSource, items ItemLoader, blobs blobstore.Store, redisClient redis.UniversalClient) *Newswire {
	return &Newswire{
		datasource: db,
		redis:      redisClient,
		blobs:      blobs,
		filters:    NewFilterCache(db),
		items:      items,
	}
}

// Datasource exposes the backing store for the API layer.
func (n *Newswire) Datasource() database.IDataSource {
	return n.datasource
}

// Blobs exposes the payload blob store.
func (n *Newswire) Blobs() blobstore.Store {
	return n.blobs
}
