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

func mockFilterRefresh(ds *mocks.MockDataSource, filters []model.ContentFilter, conditions []model.FilterCondition) {
	ds.On("FiltersLastModified", mock.Anything).Return(time.Now(), nil)
	ds.On("GetAllContentFilters", mock.Anything).Return(filters, nil)
	ds.On("GetAllFilterConditions", mock.Anything).Return(conditions, nil)
}

func wireProduct() model.Product {
	return model.Product{ProductID: "prd_news", Name: "general news", Codes: "news,a-wire"}
}

func activeSubscriber(id string) model.Subscriber {
	return model.Subscriber{
		SubscriberID:   id,
		Name:           "Test Outlet",
		SubscriberType: model.SubscriberTypeAll,
		IsActive:       true,
		Products:       []string{"prd_news"},
		Codes:          "prm",
	}
}

func TestResolveSubscribers_PublishMatchesProducts(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)
	mockFilterRefresh(ds, nil, nil)

	sub := activeSubscriber("sub_1")
	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{sub}, nil)
	ds.On("GetProductsByIDs", mock.Anything, []string{"prd_news"}).Return([]model.Product{wireProduct()}, nil)

	recipients, err := engine.ResolveSubscribers(context.Background(), sportsItem(), model.ActionPublish)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "sub_1", recipients[0].Subscriber.SubscriberID)
	assert.ElementsMatch(t, []string{"news", "a-wire", "prm"}, recipients[0].Codes)
	assert.False(t, recipients[0].Retained)
}

func TestResolveSubscribers_NoProductMatchDropsSubscriber(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)
	filters, conditions := sportsFilterFixtures()
	mockFilterRefresh(ds, filters, conditions)

	sub := activeSubscriber("sub_1")
	product := wireProduct()
	product.ContentFilter = &model.ContentFilterRef{FilterID: "flt_sports", FilterType: model.FilterTypePermitting}
	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{sub}, nil)
	ds.On("GetProductsByIDs", mock.Anything, []string{"prd_news"}).Return([]model.Product{product}, nil)

	item := sportsItem()
	item.Subject = nil
	item.Source = "Reuters"

	recipients, err := engine.ResolveSubscribers(context.Background(), item, model.ActionPublish)
	require.NoError(t, err)
	assert.Empty(t, recipients)
}

func TestResolveSubscribers_WireSubscriberSkipsMedia(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)
	mockFilterRefresh(ds, nil, nil)

	wire := activeSubscriber("sub_wire")
	wire.SubscriberType = model.SubscriberTypeWire
	digital := activeSubscriber("sub_digital")
	digital.SubscriberType = model.SubscriberTypeDigital

	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{wire, digital}, nil)
	ds.On("GetProductsByIDs", mock.Anything, []string{"prd_news"}).Return([]model.Product{wireProduct()}, nil)

	picture := sportsItem()
	picture.Type = model.ContentTypePicture

	recipients, err := engine.ResolveSubscribers(context.Background(), picture, model.ActionPublish)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "sub_digital", recipients[0].Subscriber.SubscriberID)
}

func TestResolveSubscribers_TargetedItemGoesOnlyToNamedSubscribers(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)
	mockFilterRefresh(ds, nil, nil)

	one := activeSubscriber("sub_1")
	two := activeSubscriber("sub_2")
	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{one, two}, nil)

	item := sportsItem()
	item.TargetSubscribers = []model.TargetSubscriber{{ID: "sub_2"}}

	recipients, err := engine.ResolveSubscribers(context.Background(), item, model.ActionPublish)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "sub_2", recipients[0].Subscriber.SubscriberID)
	// Product matching is bypassed for directed items.
	ds.AssertNotCalled(t, "GetProductsByIDs", mock.Anything, mock.Anything)
}

func TestResolveSubscribers_GlobalFilterBlocksUnlessOptedOut(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	filters, conditions := sportsFilterFixtures()
	filters[0].IsGlobal = true
	mockFilterRefresh(ds, filters, conditions)

	blocked := activeSubscriber("sub_blocked")
	optedOut := activeSubscriber("sub_opted_out")
	optedOut.GlobalFilters = map[string]bool{"flt_sports": false}

	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{blocked, optedOut}, nil)
	ds.On("GetProductsByIDs", mock.Anything, []string{"prd_news"}).Return([]model.Product{wireProduct()}, nil)

	recipients, err := engine.ResolveSubscribers(context.Background(), sportsItem(), model.ActionPublish)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "sub_opted_out", recipients[0].Subscriber.SubscriberID)
}

func TestResolveSubscribers_KillGoesToPriorRecipientsOnly(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)
	mockFilterRefresh(ds, nil, nil)

	prior := activeSubscriber("sub_prior")
	prior.IsActive = false

	ds.On("GetPriorDeliverySubscriberIDs", mock.Anything, "urn:newswire:story-1").Return([]string{"sub_prior"}, nil)
	ds.On("GetSubscribersByIDs", mock.Anything, []string{"sub_prior"}).Return([]model.Subscriber{prior}, nil)

	recipients, err := engine.ResolveSubscribers(context.Background(), sportsItem(), model.ActionKill)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "sub_prior", recipients[0].Subscriber.SubscriberID)
	assert.True(t, recipients[0].Retained)
	// Kills bypass subscriber resolution entirely.
	ds.AssertNotCalled(t, "GetActiveSubscribers", mock.Anything)
}

func TestResolveSubscribers_CorrectRetainsPriorRecipients(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)
	mockFilterRefresh(ds, nil, nil)

	matching := activeSubscriber("sub_match")
	lapsed := activeSubscriber("sub_lapsed")
	lapsed.Products = nil // no longer matches anything

	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{matching, lapsed}, nil)
	ds.On("GetProductsByIDs", mock.Anything, []string{"prd_news"}).Return([]model.Product{wireProduct()}, nil)
	ds.On("GetPriorDeliverySubscriberIDs", mock.Anything, "urn:newswire:story-1").Return([]string{"sub_match", "sub_lapsed"}, nil)
	ds.On("GetSubscribersByIDs", mock.Anything, []string{"sub_lapsed"}).Return([]model.Subscriber{lapsed}, nil)

	recipients, err := engine.ResolveSubscribers(context.Background(), sportsItem(), model.ActionCorrect)
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	byID := map[string]Recipient{}
	for _, r := range recipients {
		byID[r.Subscriber.SubscriberID] = r
	}
	assert.False(t, byID["sub_match"].Retained, "still matching subscriber resolved normally")
	assert.True(t, byID["sub_lapsed"].Retained, "lapsed subscriber kept for the correction")
}

func TestResolveSubscribers_RewriteCarriesOriginalAudience(t *testing.T) {
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)
	mockFilterRefresh(ds, nil, nil)

	carried := activeSubscriber("sub_carried")
	carried.Products = nil

	ds.On("GetActiveSubscribers", mock.Anything).Return([]model.Subscriber{carried}, nil)
	ds.On("GetPriorDeliverySubscriberIDs", mock.Anything, "urn:newswire:original").Return([]string{"sub_carried"}, nil)
	ds.On("GetSubscribersByIDs", mock.Anything, []string{"sub_carried"}).Return([]model.Subscriber{carried}, nil)

	item := sportsItem()
	item.RewriteOf = "urn:newswire:original"

	recipients, err := engine.ResolveSubscribers(context.Background(), item, model.ActionPublish)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "sub_carried", recipients[0].Subscriber.SubscriberID)
	assert.True(t, recipients[0].Retained)
}

func TestConformsSubscriberTargets(t *testing.T) {
	wire := &model.Subscriber{SubscriberType: model.SubscriberTypeWire}
	digital := &model.Subscriber{SubscriberType: model.SubscriberTypeDigital}

	item := &model.Item{TargetTypes: []model.Target{{Qcode: "wire", Allow: true}}}
	assert.True(t, conformsSubscriberTargets(item, wire))
	assert.False(t, conformsSubscriberTargets(item, digital))

	item = &model.Item{TargetTypes: []model.Target{{Qcode: "wire", Allow: false}}}
	assert.False(t, conformsSubscriberTargets(item, wire))
	assert.True(t, conformsSubscriberTargets(item, digital))
}

func TestConformsProductTargets(t *testing.T) {
	national := &model.Product{GeoRestrictions: "NSW"}
	unrestricted := &model.Product{}

	item := &model.Item{TargetRegions: []model.Target{{Qcode: "NSW", Allow: true}}}
	assert.True(t, conformsProductTargets(item, national))
	assert.False(t, conformsProductTargets(item, unrestricted))

	item = &model.Item{TargetRegions: []model.Target{{Qcode: "VIC", Allow: false}}}
	assert.True(t, conformsProductTargets(item, national))
	assert.True(t, conformsProductTargets(item, unrestricted))

	item = &model.Item{TargetRegions: []model.Target{{Qcode: "NSW", Allow: false}}}
	assert.False(t, conformsProductTargets(item, national))
}
