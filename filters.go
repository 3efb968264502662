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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/presslane/newswire/database"
	"github.com/presslane/newswire/model"
)

// FilterCache keeps every content filter and condition in memory and only
// reloads when the database watermark moves. Filter evaluation runs once per
// subscriber per publish, so it must never touch the database per call.
type FilterCache struct {
	datasource database.IDataSource

	mu         sync.RWMutex
	filters    map[string]model.ContentFilter
	conditions map[string]model.FilterCondition
	watermark  time.Time
	loaded     bool
}

func NewFilterCache(db database.IDataSource) *FilterCache {
	return &FilterCache{
		datasource: db,
		filters:    map[string]model.ContentFilter{},
		conditions: map[string]model.FilterCondition{},
	}
}

// Refresh reloads filters and conditions when anything changed since the last
// load. Safe to call on every publish.
func (c *FilterCache) Refresh(ctx context.Context) error {
	watermark, err := c.datasource.FiltersLastModified(ctx)
	if err != nil {
		return err
	}

	c.mu.RLock()
	upToDate := c.loaded && !watermark.After(c.watermark)
	c.mu.RUnlock()
	if upToDate {
		return nil
	}

	filters, err := c.datasource.GetAllContentFilters(ctx)
	if err != nil {
		return err
	}
	conditions, err := c.datasource.GetAllFilterConditions(ctx)
	if err != nil {
		return err
	}

	filterMap := make(map[string]model.ContentFilter, len(filters))
	for _, f := range filters {
		filterMap[f.FilterID] = f
	}
	conditionMap := make(map[string]model.FilterCondition, len(conditions))
	for _, fc := range conditions {
		conditionMap[fc.ConditionID] = fc
	}

	c.mu.Lock()
	c.filters = filterMap
	c.conditions = conditionMap
	c.watermark = watermark
	c.loaded = true
	c.mu.Unlock()

	logrus.Debugf("filter cache refreshed: %d filters, %d conditions", len(filterMap), len(conditionMap))
	return nil
}

// GlobalFilters returns the filters applied to every subscriber.
func (c *FilterCache) GlobalFilters() []model.ContentFilter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []model.ContentFilter
	for _, f := range c.filters {
		if f.IsGlobal {
			out = append(out, f)
		}
	}
	return out
}

// Match evaluates a filter against an item. Statements are OR'd; within one
// statement every condition and nested filter must match.
func (c *FilterCache) Match(filterID string, item *model.Item) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.match(filterID, item, map[string]bool{})
}

// MatchFilter evaluates an already-loaded filter definition, resolving nested
// references through the cache.
func (c *FilterCache) MatchFilter(filter *model.ContentFilter, item *model.Item) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.matchStatements(filter, item, map[string]bool{filter.FilterID: true})
}

// visited guards against reference cycles between filters; a cyclic
// reference evaluates to no match rather than recursing forever.
func (c *FilterCache) match(filterID string, item *model.Item, visited map[string]bool) bool {
	if visited[filterID] {
		logrus.Warnf("content filter %s references itself through a cycle", filterID)
		return false
	}
	filter, ok := c.filters[filterID]
	if !ok {
		logrus.Warnf("content filter %s not found in cache", filterID)
		return false
	}
	visited[filterID] = true
	defer delete(visited, filterID)
	return c.matchStatements(&filter, item, visited)
}

func (c *FilterCache) matchStatements(filter *model.ContentFilter, item *model.Item, visited map[string]bool) bool {
	for _, statement := range filter.Statements {
		if c.matchStatement(statement, item, visited) {
			return true
		}
	}
	return false
}

func (c *FilterCache) matchStatement(statement model.FilterStatement, item *model.Item, visited map[string]bool) bool {
	if len(statement.ConditionIDs) == 0 && len(statement.FilterIDs) == 0 {
		return false
	}
	for _, conditionID := range statement.ConditionIDs {
		condition, ok := c.conditions[conditionID]
		if !ok {
			logrus.Warnf("filter condition %s not found in cache", conditionID)
			return false
		}
		if !condition.Matches(item) {
			return false
		}
	}
	for _, nestedID := range statement.FilterIDs {
		if !c.match(nestedID, item, visited) {
			return false
		}
	}
	return true
}

// TestFilter evaluates an ad hoc filter definition against an item using the
// currently stored conditions. Editors use this to preview a filter before
// saving it.
func (n *Newswire) TestFilter(ctx context.Context, filter *model.ContentFilter, item *model.Item) (bool, error) {
	if err := n.filters.Refresh(ctx); err != nil {
		return false, err
	}
	return n.filters.MatchFilter(filter, item), nil
}

// conformsContentFilter applies a product's content filter reference: a
// permitting filter must match, a blocking filter must not, and a product
// without a filter accepts everything.
func (c *FilterCache) conformsContentFilter(ref *model.ContentFilterRef, item *model.Item) bool {
	if ref == nil || ref.FilterID == "" {
		return true
	}
	matched := c.Match(ref.FilterID, item)
	if ref.FilterType == model.FilterTypeBlocking {
		return !matched
	}
	return matched
}
