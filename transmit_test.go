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

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/database/mocks"
	"github.com/presslane/newswire/model"
	"github.com/presslane/newswire/transmitter"
)

type stubTransmitter struct {
	err     error
	calls   int
	payload []byte
}

func (s *stubTransmitter) Transmit(_ context.Context, _ *model.QueueItem, payload []byte) error {
	s.calls++
	s.payload = payload
	return s.err
}

func queueEntry(deliveryType string) *model.QueueItem {
	return &model.QueueItem{
		QueueID:          "dq_1",
		ItemID:           "urn:newswire:story-1",
		ItemVersion:      2,
		SubscriberID:     "sub_1",
		Destination:      model.Destination{Name: "main", Format: "ninjs", DeliveryType: deliveryType},
		FormattedItem:    `{"guid":"urn:newswire:story-1"}`,
		PublishedSeqNum:  7,
		PublishingAction: model.ActionPublish,
		State:            model.StatePending,
	}
}

func TestTransmitQueueItem_Success(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	stub := &stubTransmitter{}
	transmitter.Register("stub-ok", stub)

	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(true, nil)
	ds.On("MarkSuccess", mock.Anything, "dq_1").Return(nil)

	entry := queueEntry("stub-ok")
	require.NoError(t, engine.TransmitQueueItem(context.Background(), entry))

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, []byte(entry.FormattedItem), stub.payload)
	ds.AssertExpectations(t)
}

func TestTransmitQueueItem_AlreadyClaimedIsNoop(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	stub := &stubTransmitter{}
	transmitter.Register("stub-claimed", stub)

	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(false, nil)

	require.NoError(t, engine.TransmitQueueItem(context.Background(), queueEntry("stub-claimed")))
	assert.Zero(t, stub.calls)
	ds.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything)
}

func TestTransmitQueueItem_PayloadFromBlobStore(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	stub := &stubTransmitter{}
	transmitter.Register("stub-blob", stub)

	entry := queueEntry("stub-blob")
	entry.FormattedItem = ""
	entry.EncodedItemID = "urn-newswire-story-1-2-sub_1-main"
	require.NoError(t, engine.blobs.Put(context.Background(), entry.EncodedItemID, []byte("offloaded payload")))

	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(true, nil)
	ds.On("MarkSuccess", mock.Anything, "dq_1").Return(nil)

	require.NoError(t, engine.TransmitQueueItem(context.Background(), entry))
	assert.Equal(t, []byte("offloaded payload"), stub.payload)
}

func TestTransmitQueueItem_RetryableFailureSchedulesRetry(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	stub := &stubTransmitter{err: transmitter.Retryable(transmitter.ErrCodeFTP, errors.New("connection refused"))}
	transmitter.Register("stub-retry", stub)

	sub := activeSubscriber("sub_1")
	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(true, nil)
	ds.On("GetSubscriberByID", mock.Anything, "sub_1").Return(&sub, nil)

	before := time.Now()
	ds.On("MarkRetrying", mock.Anything, "dq_1", mock.MatchedBy(func(next time.Time) bool {
		// First retry waits the base delay of 180s.
		return next.After(before.Add(179*time.Second)) && next.Before(before.Add(182*time.Second))
	}), mock.Anything).Return(nil)

	require.NoError(t, engine.TransmitQueueItem(context.Background(), queueEntry("stub-retry")))
	ds.AssertExpectations(t)
}

func TestTransmitQueueItem_ClientErrorFailsWithoutRetry(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	stub := &stubTransmitter{err: transmitter.Terminal(transmitter.ErrCodeHTTPPushClient, errors.New("403 forbidden"))}
	transmitter.Register("stub-terminal", stub)

	sub := activeSubscriber("sub_1")
	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(true, nil)
	ds.On("GetSubscriberByID", mock.Anything, "sub_1").Return(&sub, nil)
	// One attempt, then failed. Error stays reserved for critical failures.
	ds.On("MarkTerminal", mock.Anything, "dq_1", model.StateFailed, mock.Anything).Return(nil)

	require.NoError(t, engine.TransmitQueueItem(context.Background(), queueEntry("stub-terminal")))
	ds.AssertExpectations(t)
	ds.AssertNotCalled(t, "MarkRetrying", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ds.AssertNotCalled(t, "DeactivateSubscriber", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransmitQueueItem_ExhaustedRetriesFail(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	stub := &stubTransmitter{err: transmitter.Retryable(transmitter.ErrCodeFTP, errors.New("still down"))}
	transmitter.Register("stub-exhausted", stub)

	sub := activeSubscriber("sub_1")
	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(true, nil)
	ds.On("GetSubscriberByID", mock.Anything, "sub_1").Return(&sub, nil)
	ds.On("MarkTerminal", mock.Anything, "dq_1", model.StateFailed, mock.Anything).Return(nil)

	entry := queueEntry("stub-exhausted")
	entry.RetryAttempt = 3 // next attempt would be the 4th and last

	require.NoError(t, engine.TransmitQueueItem(context.Background(), entry))
	ds.AssertExpectations(t)
}

func TestTransmitQueueItem_CriticalErrorDeactivatesSubscriber(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	stub := &stubTransmitter{err: transmitter.Retryable(transmitter.ErrCodeFTP, errors.New("login refused"))}
	transmitter.Register("stub-critical", stub)

	sub := activeSubscriber("sub_1")
	sub.CriticalErrors = map[string]bool{transmitter.ErrCodeFTP: true}

	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(true, nil)
	ds.On("GetSubscriberByID", mock.Anything, "sub_1").Return(&sub, nil)
	ds.On("MarkTerminal", mock.Anything, "dq_1", model.StateError, mock.Anything).Return(nil)
	ds.On("DeactivateSubscriber", mock.Anything, "sub_1", mock.Anything).Return(nil)

	require.NoError(t, engine.TransmitQueueItem(context.Background(), queueEntry("stub-critical")))
	ds.AssertExpectations(t)
	ds.AssertNotCalled(t, "MarkRetrying", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransmitQueueItem_MissingPayloadIsTerminal(t *testing.T) {
	storeTestConfig(t)
	ds := &mocks.MockDataSource{}
	engine := newTestEngine(ds, nil)

	ds.On("MarkInProgress", mock.Anything, "dq_1").Return(true, nil)
	ds.On("MarkTerminal", mock.Anything, "dq_1", model.StateFailed, mock.Anything).Return(nil)

	entry := queueEntry("stub-none")
	entry.FormattedItem = ""

	require.NoError(t, engine.TransmitQueueItem(context.Background(), entry))
	ds.AssertExpectations(t)
}

func TestRetryDelay(t *testing.T) {
	enabled := true
	disabled := false
	conf := &config.DeliveryConfig{
		RetryDelaySeconds:    180,
		RetryDelayCapSeconds: 3600,
		ExponentialBackoff:   &enabled,
	}

	assert.Equal(t, 180*time.Second, retryDelay(conf, 0))
	assert.Equal(t, 360*time.Second, retryDelay(conf, 1))
	assert.Equal(t, 720*time.Second, retryDelay(conf, 2))
	assert.Equal(t, 3600*time.Second, retryDelay(conf, 10), "delay is capped")

	conf.ExponentialBackoff = &disabled
	assert.Equal(t, 180*time.Second, retryDelay(conf, 5), "constant delay when backoff disabled")
}
