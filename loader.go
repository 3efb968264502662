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
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/internal/cache"
	"github.com/presslane/newswire/internal/request"
	"github.com/presslane/newswire/model"
)

const itemCacheTTL = 5 * time.Minute

// ContentAPILoader resolves package references against the editorial content
// API. Fetched items are cached briefly so fanning one package out to many
// subscribers fetches each referenced item once.
type ContentAPILoader struct {
	baseURL string
	headers map[string]string
	cache   cache.Cache
}

// NewContentAPILoader builds a loader from the configured content API
// endpoint.
func NewContentAPILoader() (*ContentAPILoader, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if conf.ContentAPI.Url == "" {
		return nil, errors.New("content API url is not configured")
	}

	ca, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	return &ContentAPILoader{
		baseURL: strings.TrimRight(conf.ContentAPI.Url, "/"),
		headers: conf.ContentAPI.Headers,
		cache:   ca,
	}, nil
}

// GetItem fetches one item by id.
func (l *ContentAPILoader) GetItem(ctx context.Context, itemID string) (*model.Item, error) {
	cacheKey := fmt.Sprintf("newswire:item:%s", itemID)
	var cached model.Item
	if err := l.cache.Get(ctx, cacheKey, &cached); err == nil && cached.ItemID != "" {
		return &cached, nil
	}

	route := fmt.Sprintf("%s/items/%s", l.baseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, route, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range l.headers {
		req.Header.Set(key, value)
	}

	var item model.Item
	resp, err := request.Call(req, &item)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching item %s", itemID)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("content API returned %d for item %s", resp.StatusCode, itemID)
	}
	if item.ItemID == "" {
		return nil, errors.Errorf("content API returned no item for %s", itemID)
	}

	if err := l.cache.Set(ctx, cacheKey, item, itemCacheTTL); err != nil {
		return nil, err
	}
	return &item, nil
}
