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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/presslane/newswire/database/mocks"
	"github.com/presslane/newswire/model"
)

func sportsFilterFixtures() ([]model.ContentFilter, []model.FilterCondition) {
	conditions := []model.FilterCondition{
		{ConditionID: "fc_sports", Field: "subject", Operator: model.OperatorIn, Value: "15000000"},
		{ConditionID: "fc_urgent", Field: "urgency", Operator: model.OperatorLte, Value: "3"},
		{ConditionID: "fc_agency", Field: "source", Operator: model.OperatorEq, Value: "AAP"},
	}
	filters := []model.ContentFilter{
		{
			FilterID: "flt_sports",
			Name:     "urgent sports or agency copy",
			Statements: []model.FilterStatement{
				{ConditionIDs: []string{"fc_sports", "fc_urgent"}},
				{ConditionIDs: []string{"fc_agency"}},
			},
		},
	}
	return filters, conditions
}

func sportsItem() *model.Item {
	return &model.Item{
		ItemID:  "urn:newswire:story-1",
		Version: 2,
		Type:    model.ContentTypeText,
		State:   model.StatePublished,
		Urgency: 2,
		Source:  "Reuters",
		Subject: []model.Subject{{Qcode: "15000000", Name: "sport"}},
	}
}

func TestFilterCache_RefreshOnlyReloadsWhenWatermarkMoves(t *testing.T) {
	ds := &mocks.MockDataSource{}
	cache := NewFilterCache(ds)
	filters, conditions := sportsFilterFixtures()

	watermark := time.Now()
	ds.On("FiltersLastModified", mock.Anything).Return(watermark, nil).Twice()
	ds.On("GetAllContentFilters", mock.Anything).Return(filters, nil).Once()
	ds.On("GetAllFilterConditions", mock.Anything).Return(conditions, nil).Once()

	require.NoError(t, cache.Refresh(context.Background()))
	require.NoError(t, cache.Refresh(context.Background()))
	ds.AssertExpectations(t)
}

func TestFilterCache_StatementsAreORdConditionsAND(t *testing.T) {
	ds := &mocks.MockDataSource{}
	cache := NewFilterCache(ds)
	filters, conditions := sportsFilterFixtures()

	ds.On("FiltersLastModified", mock.Anything).Return(time.Now(), nil)
	ds.On("GetAllContentFilters", mock.Anything).Return(filters, nil)
	ds.On("GetAllFilterConditions", mock.Anything).Return(conditions, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	item := sportsItem()
	assert.True(t, cache.Match("flt_sports", item), "urgent sports story matches the first statement")

	item.Urgency = 5
	assert.False(t, cache.Match("flt_sports", item), "slow sports story fails both statements")

	item.Source = "AAP"
	assert.True(t, cache.Match("flt_sports", item), "agency copy matches the second statement")
}

func TestFilterCache_NestedFilterAndCycleGuard(t *testing.T) {
	ds := &mocks.MockDataSource{}
	cache := NewFilterCache(ds)

	_, conditions := sportsFilterFixtures()
	filters := []model.ContentFilter{
		{FilterID: "flt_inner", Statements: []model.FilterStatement{{ConditionIDs: []string{"fc_sports"}}}},
		{FilterID: "flt_outer", Statements: []model.FilterStatement{{
			ConditionIDs: []string{"fc_urgent"},
			FilterIDs:    []string{"flt_inner"},
		}}},
		// flt_loop references itself; evaluation must terminate.
		{FilterID: "flt_loop", Statements: []model.FilterStatement{{FilterIDs: []string{"flt_loop"}}}},
	}

	ds.On("FiltersLastModified", mock.Anything).Return(time.Now(), nil)
	ds.On("GetAllContentFilters", mock.Anything).Return(filters, nil)
	ds.On("GetAllFilterConditions", mock.Anything).Return(conditions, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	item := sportsItem()
	assert.True(t, cache.Match("flt_outer", item))
	assert.False(t, cache.Match("flt_loop", item))
}

func TestFilterCache_EmptyStatementNeverMatches(t *testing.T) {
	cache := NewFilterCache(&mocks.MockDataSource{})
	filter := &model.ContentFilter{FilterID: "flt_empty", Statements: []model.FilterStatement{{}}}
	assert.False(t, cache.MatchFilter(filter, sportsItem()))
}

func TestConformsContentFilter(t *testing.T) {
	ds := &mocks.MockDataSource{}
	cache := NewFilterCache(ds)
	filters, conditions := sportsFilterFixtures()

	ds.On("FiltersLastModified", mock.Anything).Return(time.Now(), nil)
	ds.On("GetAllContentFilters", mock.Anything).Return(filters, nil)
	ds.On("GetAllFilterConditions", mock.Anything).Return(conditions, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	item := sportsItem()
	assert.True(t, cache.conformsContentFilter(nil, item), "product without filter accepts everything")

	permitting := &model.ContentFilterRef{FilterID: "flt_sports", FilterType: model.FilterTypePermitting}
	assert.True(t, cache.conformsContentFilter(permitting, item))

	blocking := &model.ContentFilterRef{FilterID: "flt_sports", FilterType: model.FilterTypeBlocking}
	assert.False(t, cache.conformsContentFilter(blocking, item))

	item.Subject = nil
	item.Source = "Reuters"
	assert.False(t, cache.conformsContentFilter(permitting, item))
	assert.True(t, cache.conformsContentFilter(blocking, item))
}
