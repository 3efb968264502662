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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/presslane/newswire/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Subscriber methods

func (m *MockDataSource) CreateSubscriber(ctx context.Context, sub model.Subscriber) (model.Subscriber, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(model.Subscriber), args.Error(1)
}

func (m *MockDataSource) GetSubscriberByID(ctx context.Context, id string) (*model.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscriber), args.Error(1)
}

func (m *MockDataSource) GetSubscribersByIDs(ctx context.Context, ids []string) ([]model.Subscriber, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Subscriber), args.Error(1)
}

func (m *MockDataSource) GetActiveSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Subscriber), args.Error(1)
}

func (m *MockDataSource) GetAllSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Subscriber), args.Error(1)
}

func (m *MockDataSource) UpdateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockDataSource) DeactivateSubscriber(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockDataSource) NextSequenceNumber(ctx context.Context, subscriberID string, min, max int) (int, error) {
	args := m.Called(ctx, subscriberID, min, max)
	return args.Int(0), args.Error(1)
}

// Product methods

func (m *MockDataSource) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *MockDataSource) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockDataSource) GetProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockDataSource) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockDataSource) UpdateProduct(ctx context.Context, p *model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockDataSource) DeleteProduct(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Content filter methods

func (m *MockDataSource) CreateContentFilter(ctx context.Context, f model.ContentFilter) (model.ContentFilter, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(model.ContentFilter), args.Error(1)
}

func (m *MockDataSource) GetContentFilterByID(ctx context.Context, id string) (*model.ContentFilter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentFilter), args.Error(1)
}

func (m *MockDataSource) GetAllContentFilters(ctx context.Context) ([]model.ContentFilter, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContentFilter), args.Error(1)
}

func (m *MockDataSource) UpdateContentFilter(ctx context.Context, f *model.ContentFilter) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockDataSource) DeleteContentFilter(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) CreateFilterCondition(ctx context.Context, c model.FilterCondition) (model.FilterCondition, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.FilterCondition), args.Error(1)
}

func (m *MockDataSource) GetAllFilterConditions(ctx context.Context) ([]model.FilterCondition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FilterCondition), args.Error(1)
}

func (m *MockDataSource) FiltersLastModified(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

// Queue methods

func (m *MockDataSource) EnqueueItem(ctx context.Context, entry *model.QueueItem) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) QueueEntryExists(ctx context.Context, itemID string, version int, subscriberID, destinationName string) (bool, error) {
	args := m.Called(ctx, itemID, version, subscriberID, destinationName)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetQueueItemByID(ctx context.Context, id string) (*model.QueueItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueItem), args.Error(1)
}

func (m *MockDataSource) GetQueueItemsForItem(ctx context.Context, itemID string) ([]model.QueueItem, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueItem), args.Error(1)
}

func (m *MockDataSource) GetQueueItemsForSubscriber(ctx context.Context, subscriberID string, limit, offset int) ([]model.QueueItem, error) {
	args := m.Called(ctx, subscriberID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueItem), args.Error(1)
}

func (m *MockDataSource) GetDueQueueItems(ctx context.Context, asOf time.Time, limit int) ([]model.QueueItem, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueItem), args.Error(1)
}

func (m *MockDataSource) GetPriorDeliverySubscriberIDs(ctx context.Context, itemID string) ([]string, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataSource) MarkInProgress(ctx context.Context, queueID string) (bool, error) {
	args := m.Called(ctx, queueID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) MarkSuccess(ctx context.Context, queueID string) error {
	args := m.Called(ctx, queueID)
	return args.Error(0)
}

func (m *MockDataSource) MarkRetrying(ctx context.Context, queueID string, nextAttemptAt time.Time, errMessage string) error {
	args := m.Called(ctx, queueID, nextAttemptAt, errMessage)
	return args.Error(0)
}

func (m *MockDataSource) MarkTerminal(ctx context.Context, queueID string, state model.QueueState, errMessage string) error {
	args := m.Called(ctx, queueID, state, errMessage)
	return args.Error(0)
}

func (m *MockDataSource) CancelTransmissions(ctx context.Context, itemID string) (int64, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) RequeueItem(ctx context.Context, queueID string) (*model.QueueItem, error) {
	args := m.Called(ctx, queueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueItem), args.Error(1)
}

func (m *MockDataSource) ResetStaleInProgress(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) DeleteQueueItemsByItem(ctx context.Context, itemID string) ([]string, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataSource) MarkMovedToLegal(ctx context.Context, itemID string) (int64, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) StorePackageRefs(ctx context.Context, itemID string, version int, residRefs []string) error {
	args := m.Called(ctx, itemID, version, residRefs)
	return args.Error(0)
}

func (m *MockDataSource) GetPackageRefs(ctx context.Context, itemID string, version int) ([]string, error) {
	args := m.Called(ctx, itemID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
