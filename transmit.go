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
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/internal/notification"
	"github.com/presslane/newswire/model"
	"github.com/presslane/newswire/transmitter"
)

// TransmitQueueItem runs one delivery attempt for a queue entry. It claims
// the entry, loads the payload, hands it to the destination's transmitter and
// records the outcome on the state machine.
//
// Failures with a code the subscriber marked critical deactivate the
// subscriber and end the entry in error. Other non-retryable failures end in
// failed after the one attempt; retryable failures schedule another attempt
// until the retry budget runs out, after which the entry fails too.
func (n *Newswire) TransmitQueueItem(ctx context.Context, entry *model.QueueItem) error {
	ctx, span := otel.Tracer("newswire.delivery").Start(ctx, "Transmit Queue Entry")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	claimed, err := n.datasource.MarkInProgress(ctx, entry.QueueID)
	if err != nil {
		return err
	}
	if !claimed {
		logrus.Debugf("queue entry %s already claimed, skipping", entry.QueueID)
		return nil
	}

	payload, err := n.loadPayload(ctx, entry)
	if err != nil {
		return n.recordFailure(ctx, conf, entry, transmitter.Terminal("", err))
	}

	t, err := transmitter.Get(entry.Destination.DeliveryType)
	if err != nil {
		return n.recordFailure(ctx, conf, entry, transmitter.Terminal("", err))
	}

	transmitCtx, cancel := context.WithTimeout(ctx, conf.Delivery.TransmitTimeout())
	defer cancel()

	if err := t.Transmit(transmitCtx, entry, payload); err != nil {
		return n.recordFailure(ctx, conf, entry, err)
	}

	if err := n.datasource.MarkSuccess(ctx, entry.QueueID); err != nil {
		return err
	}
	logrus.Infof("delivered item %s v%d to subscriber %s via %s (seq %d)",
		entry.ItemID, entry.ItemVersion, entry.SubscriberID, entry.Destination.DeliveryType, entry.PublishedSeqNum)
	notifyQueueState(entry, model.StateSuccess)
	return nil
}

// EnqueueTransmission pushes a queue entry id onto the transmit worker queue
// so it is delivered ahead of the next scheduler pass.
func EnqueueTransmission(queueID string) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: conf.Redis.Dns})
	defer client.Close()

	payload, err := json.Marshal(queueID)
	if err != nil {
		return err
	}

	task := asynq.NewTask(conf.Queue.TransmitQueue, payload, asynq.Queue(conf.Queue.TransmitQueue))
	if _, err := client.Enqueue(task); err != nil {
		return err
	}
	return nil
}

// loadPayload resolves the rendered payload, inline or from the blob store.
func (n *Newswire) loadPayload(ctx context.Context, entry *model.QueueItem) ([]byte, error) {
	if entry.EncodedItemID != "" {
		payload, err := n.blobs.Get(ctx, entry.EncodedItemID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading payload %s from blob store", entry.EncodedItemID)
		}
		return payload, nil
	}
	if entry.FormattedItem == "" {
		return nil, errors.Errorf("queue entry %s carries no payload", entry.QueueID)
	}
	return []byte(entry.FormattedItem), nil
}

func (n *Newswire) recordFailure(ctx context.Context, conf *config.Configuration, entry *model.QueueItem, cause error) error {
	code := transmitter.ErrorCode(cause)

	if code != "" && entry.SubscriberID != "" {
		critical, err := n.isCriticalForSubscriber(ctx, entry.SubscriberID, code)
		if err != nil {
			return err
		}
		if critical {
			return n.failCritical(ctx, entry, code, cause)
		}
	}

	// Non-retryable failures get their one attempt and no more. The error
	// state stays reserved for critical failures.
	if !transmitter.IsRetryable(cause) {
		if err := n.datasource.MarkTerminal(ctx, entry.QueueID, model.StateFailed, cause.Error()); err != nil {
			return err
		}
		logrus.Errorf("delivery of %s to subscriber %s failed terminally: %v", entry.ItemID, entry.SubscriberID, cause)
		notifyQueueState(entry, model.StateFailed)
		return nil
	}

	nextAttempt := entry.RetryAttempt + 1
	if nextAttempt >= conf.Delivery.MaxRetryAttempts {
		if err := n.datasource.MarkTerminal(ctx, entry.QueueID, model.StateFailed, cause.Error()); err != nil {
			return err
		}
		logrus.Errorf("delivery of %s to subscriber %s failed after %d attempts: %v",
			entry.ItemID, entry.SubscriberID, nextAttempt, cause)
		notification.NotifyError(errors.Wrapf(cause, "delivery %s exhausted retries", entry.QueueID))
		notifyQueueState(entry, model.StateFailed)
		return nil
	}

	delay := retryDelay(&conf.Delivery, entry.RetryAttempt)
	nextAttemptAt := time.Now().Add(delay)
	if err := n.datasource.MarkRetrying(ctx, entry.QueueID, nextAttemptAt, cause.Error()); err != nil {
		return err
	}
	logrus.Warnf("delivery of %s to subscriber %s failed (attempt %d), retrying in %s: %v",
		entry.ItemID, entry.SubscriberID, nextAttempt, delay, cause)
	notifyQueueState(entry, model.StateRetrying)
	return nil
}

// failCritical ends the entry in error and deactivates the subscriber. The
// subscriber listed this code as one it cannot tolerate.
func (n *Newswire) failCritical(ctx context.Context, entry *model.QueueItem, code string, cause error) error {
	if err := n.datasource.MarkTerminal(ctx, entry.QueueID, model.StateError, cause.Error()); err != nil {
		return err
	}
	reason := fmt.Sprintf("critical transmission error %s delivering item %s: %v", code, entry.ItemID, cause)
	if err := n.datasource.DeactivateSubscriber(ctx, entry.SubscriberID, reason); err != nil {
		return err
	}
	notification.NotifyError(errors.Errorf("subscriber %s deactivated: %s", entry.SubscriberID, reason))
	notifyQueueState(entry, model.StateError)
	go func() {
		if err := SendWebhook(NewWebhook{Event: EventSubscriberDeactivated, Payload: map[string]interface{}{
			"subscriber_id": entry.SubscriberID,
			"reason":        reason,
			"timestamp":     time.Now(),
		}}); err != nil {
			logrus.WithError(err).Warn("failed to send deactivation webhook")
		}
	}()
	return nil
}

func (n *Newswire) isCriticalForSubscriber(ctx context.Context, subscriberID, code string) (bool, error) {
	sub, err := n.datasource.GetSubscriberByID(ctx, subscriberID)
	if err != nil {
		return false, err
	}
	if sub == nil || sub.CriticalErrors == nil {
		return false, nil
	}
	return sub.CriticalErrors[code], nil
}

// retryDelay computes the wait before the next attempt: the base delay grows
// exponentially per attempt up to the cap, or stays constant when exponential
// backoff is disabled.
func retryDelay(d *config.DeliveryConfig, attempt int) time.Duration {
	base := time.Duration(d.RetryDelaySeconds) * time.Second
	ceiling := time.Duration(d.RetryDelayCapSeconds) * time.Second
	if d.ExponentialBackoff != nil && !*d.ExponentialBackoff {
		return base
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > ceiling || delay <= 0 {
		return ceiling
	}
	return delay
}
