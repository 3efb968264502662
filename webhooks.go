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
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/internal/request"
	"github.com/presslane/newswire/model"
)

// Webhook events emitted over the delivery lifecycle.
const (
	EventDeliveryQueued        = "delivery.queued"
	EventDeliverySuccess       = "delivery.success"
	EventDeliveryRetrying      = "delivery.retrying"
	EventDeliveryFailed        = "delivery.failed"
	EventDeliveryCanceled      = "delivery.canceled"
	EventSubscriberDeactivated = "subscriber.deactivated"
)

// NewWebhook is the envelope posted to the configured webhook endpoint.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

func deliveryEvent(state model.QueueState) string {
	switch state {
	case model.StateSuccess:
		return EventDeliverySuccess
	case model.StateRetrying:
		return EventDeliveryRetrying
	case model.StateFailed, model.StateError:
		return EventDeliveryFailed
	case model.StateCanceled:
		return EventDeliveryCanceled
	default:
		return EventDeliveryQueued
	}
}

func processHTTP(data NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		logrus.Error("Error fetching config:", err)
		return err
	}

	// The endpoint is external; transient failures get a few retries before
	// asynq sees the task fail. The request is rebuilt per attempt so the
	// body buffer is fresh each time.
	operation := func() error {
		payload, err := request.ToJsonReq(&data)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		for key, value := range conf.Notification.Webhook.Headers {
			req.Header.Set(key, value)
		}

		var response map[string]interface{}
		resp, err := request.Call(req, &response)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
		logrus.Error("Error sending webhook:", err)
		return err
	}

	logrus.Infof("Webhook %s sent successfully", data.Event)
	return nil
}

// SendWebhook enqueues a webhook notification on the background queue. A
// missing webhook URL disables notifications silently.
func SendWebhook(newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		logrus.Error(err)
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: conf.Redis.Dns})
	defer client.Close()

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		logrus.Error(err)
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(conf.Queue.WebhookQueue)}
	task := asynq.NewTask(conf.Queue.WebhookQueue, payload, taskOptions...)
	info, err := client.Enqueue(task)
	if err != nil {
		logrus.WithError(err).Error("error enqueuing webhook")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"IsFound": info.Queue,
		"TaskID":  info.ID,
	}).Info("Enqueued webhook")
	return nil
}

// ProcessWebhook is the asynq handler draining the webhook queue.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Error("Error unmarshaling task payload:", err)
		return err
	}
	logrus.Printf("Processing webhook: %+v", payload.Event)
	return processHTTP(payload)
}

// notifyQueueState emits the lifecycle event for a queue entry without
// blocking the caller on the queue round trip.
func notifyQueueState(entry *model.QueueItem, state model.QueueState) {
	payload := map[string]interface{}{
		"queue_id":          entry.QueueID,
		"item_id":           entry.ItemID,
		"item_version":      entry.ItemVersion,
		"subscriber_id":     entry.SubscriberID,
		"destination":       entry.Destination.Name,
		"state":             state,
		"publishing_action": entry.PublishingAction,
		"timestamp":         time.Now(),
	}
	go func() {
		if err := SendWebhook(NewWebhook{Event: deliveryEvent(state), Payload: payload}); err != nil {
			logrus.WithError(err).Warn("failed to send delivery webhook")
		}
	}()
}
