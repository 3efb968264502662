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

package model

import "time"

// QueueState is the delivery state of one queue item.
type QueueState string

const (
	StatePending    QueueState = "pending"
	StateInProgress QueueState = "in-progress"
	StateRetrying   QueueState = "retrying"
	StateSuccess    QueueState = "success"
	StateCanceled   QueueState = "canceled"
	StateError      QueueState = "error"
	StateFailed     QueueState = "failed"
)

// queueTransitions encodes the delivery state machine. Only the transmitter
// dispatch and the retry scheduler drive these transitions.
var queueTransitions = map[QueueState][]QueueState{
	StatePending:    {StateInProgress, StateCanceled},
	StateInProgress: {StateSuccess, StateRetrying, StateError, StateFailed, StateCanceled, StatePending},
	StateRetrying:   {StateInProgress, StateCanceled},
}

// CanTransition reports whether the state machine permits moving from one
// queue state to another. Terminal states permit nothing.
func (s QueueState) CanTransition(to QueueState) bool {
	for _, next := range queueTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transmission attempt will occur.
func (s QueueState) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateError, StateCanceled:
		return true
	}
	return false
}

// QueueItem is one delivery record: a rendered payload bound to a subscriber
// destination, created once per (item version, subscriber, destination) and
// immutable except for its state machine fields.
type QueueItem struct {
	QueueID      string      `json:"queue_id"`
	ItemID       string      `json:"item_id"`
	ItemVersion  int         `json:"item_version"`
	SubscriberID string      `json:"subscriber_id"`
	Destination  Destination `json:"destination"`

	FormattedItem string `json:"formatted_item,omitempty"`
	// EncodedItemID references the blob store when the rendered payload was
	// too large to store inline.
	EncodedItemID string `json:"encoded_item_id,omitempty"`

	PublishedSeqNum  int      `json:"published_seq_num"`
	PublishingAction string   `json:"publishing_action"`
	Codes            []string `json:"codes,omitempty"`

	ContentType string `json:"content_type,omitempty"`
	Headline    string `json:"headline,omitempty"`
	UniqueName  string `json:"unique_name,omitempty"`

	// AssociatedItems lists ids of media items bundled with this delivery.
	AssociatedItems []string `json:"associated_items,omitempty"`

	State              QueueState `json:"state"`
	RetryAttempt       int        `json:"retry_attempt"`
	NextRetryAttemptAt *time.Time `json:"next_retry_attempt_at,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`

	PublishSchedule   *time.Time `json:"publish_schedule,omitempty"`
	TransmitStartedAt *time.Time `json:"transmit_started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`

	MovedToLegal bool      `json:"moved_to_legal"`
	CreatedAt    time.Time `json:"created_at"`
}
