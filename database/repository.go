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

package database

import (
	"context"
	"time"

	"github.com/presslane/newswire/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	subscriber    // Interface for subscriber-related operations
	product       // Interface for product-related operations
	contentFilter // Interface for content filter operations
	queue         // Interface for delivery queue operations
}

// subscriber defines methods for handling subscribers.
type subscriber interface {
	CreateSubscriber(ctx context.Context, sub model.Subscriber) (model.Subscriber, error)
	GetSubscriberByID(ctx context.Context, id string) (*model.Subscriber, error)
	GetSubscribersByIDs(ctx context.Context, ids []string) ([]model.Subscriber, error)
	GetActiveSubscribers(ctx context.Context) ([]model.Subscriber, error)
	GetAllSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error)
	UpdateSubscriber(ctx context.Context, sub *model.Subscriber) error
	DeactivateSubscriber(ctx context.Context, id string, reason string) error // Used when a transmission error is marked critical for the subscriber
	NextSequenceNumber(ctx context.Context, subscriberID string, min, max int) (int, error)
}

// product defines methods for handling products.
type product interface {
	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	GetProductByID(ctx context.Context, id string) (*model.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// contentFilter defines methods for handling content filters and their conditions.
type contentFilter interface {
	CreateContentFilter(ctx context.Context, f model.ContentFilter) (model.ContentFilter, error)
	GetContentFilterByID(ctx context.Context, id string) (*model.ContentFilter, error)
	GetAllContentFilters(ctx context.Context) ([]model.ContentFilter, error)
	UpdateContentFilter(ctx context.Context, f *model.ContentFilter) error
	DeleteContentFilter(ctx context.Context, id string) error
	CreateFilterCondition(ctx context.Context, c model.FilterCondition) (model.FilterCondition, error)
	GetAllFilterConditions(ctx context.Context) ([]model.FilterCondition, error)
	FiltersLastModified(ctx context.Context) (time.Time, error) // Watermark across filters and conditions, drives cache refresh
}

// queue defines methods for handling delivery queue entries.
type queue interface {
	EnqueueItem(ctx context.Context, entry *model.QueueItem) (bool, error)
	QueueEntryExists(ctx context.Context, itemID string, version int, subscriberID, destinationName string) (bool, error)
	GetQueueItemByID(ctx context.Context, id string) (*model.QueueItem, error)
	GetQueueItemsForItem(ctx context.Context, itemID string) ([]model.QueueItem, error)
	GetQueueItemsForSubscriber(ctx context.Context, subscriberID string, limit, offset int) ([]model.QueueItem, error)
	GetDueQueueItems(ctx context.Context, asOf time.Time, limit int) ([]model.QueueItem, error)
	GetPriorDeliverySubscriberIDs(ctx context.Context, itemID string) ([]string, error)
	MarkInProgress(ctx context.Context, queueID string) (bool, error)
	MarkSuccess(ctx context.Context, queueID string) error
	MarkRetrying(ctx context.Context, queueID string, nextAttemptAt time.Time, errMessage string) error
	MarkTerminal(ctx context.Context, queueID string, state model.QueueState, errMessage string) error
	CancelTransmissions(ctx context.Context, itemID string) (int64, error)
	RequeueItem(ctx context.Context, queueID string) (*model.QueueItem, error)
	ResetStaleInProgress(ctx context.Context, olderThan time.Time) (int64, error)
	DeleteQueueItemsByItem(ctx context.Context, itemID string) ([]string, error)
	MarkMovedToLegal(ctx context.Context, itemID string) (int64, error)
	StorePackageRefs(ctx context.Context, itemID string, version int, residRefs []string) error
	GetPackageRefs(ctx context.Context, itemID string, version int) ([]string, error)
}
