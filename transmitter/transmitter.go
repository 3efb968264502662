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

// Package transmitter moves rendered payloads to subscriber destinations.
// One transmitter is registered per delivery type; the dispatcher picks the
// transmitter from the queue entry's destination.
package transmitter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/presslane/newswire/model"
)

// Transport error codes. Subscribers list the codes they consider critical;
// one occurrence of a critical code deactivates the subscriber.
const (
	ErrCodeFTP            = "12000"
	ErrCodeEmail          = "12001"
	ErrCodeHTTPPush       = "12002"
	ErrCodeHTTPPushClient = "12003"
	ErrCodeSQS            = "12004"
	ErrCodeFile           = "12005"
	ErrCodeContentAPI     = "12006"
)

// Error classifies a transmission failure. Retryable failures go back through
// the retry scheduler; the rest move the queue entry straight to error.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transmission error %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable wraps a transient failure (network, remote outage).
func Retryable(code string, err error) *Error {
	return &Error{Code: code, Retryable: true, Err: err}
}

// Terminal wraps a failure another attempt cannot fix (bad credentials,
// client-class HTTP response, malformed destination config).
func Terminal(code string, err error) *Error {
	return &Error{Code: code, Retryable: false, Err: err}
}

// IsRetryable reports whether the failure should be retried. Unclassified
// errors are treated as retryable so flaky transports get another chance.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return true
}

// ErrorCode extracts the transport error code, empty for unclassified errors.
func ErrorCode(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// Transmitter delivers one rendered payload to one destination.
type Transmitter interface {
	Transmit(ctx context.Context, entry *model.QueueItem, payload []byte) error
}

var (
	mu       sync.RWMutex
	registry = map[string]Transmitter{}
)

// Register binds a transmitter to a delivery type.
func Register(deliveryType string, t Transmitter) {
	mu.Lock()
	defer mu.Unlock()
	registry[deliveryType] = t
}

// Get returns the transmitter for a delivery type.
func Get(deliveryType string) (Transmitter, error) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := registry[deliveryType]
	if !ok {
		return nil, errors.Errorf("no transmitter registered for delivery type %s", deliveryType)
	}
	return t, nil
}

func init() {
	Register(model.DeliveryTypeFTP, &FTPTransmitter{})
	Register(model.DeliveryTypeEmail, &EmailTransmitter{})
	Register(model.DeliveryTypeHTTPPush, &HTTPPushTransmitter{})
	Register(model.DeliveryTypeSQSFifo, &SQSFifoTransmitter{})
	Register(model.DeliveryTypeFile, &FileTransmitter{})
	Register(model.DeliveryTypeContentAPI, &ContentAPITransmitter{})
}

var unsafeNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// PublishFileName builds the artifact name used by file based transports:
// item id, version and sequence number joined, unsafe characters collapsed.
func PublishFileName(entry *model.QueueItem, extension string) string {
	base := fmt.Sprintf("%s-%d-%d", entry.ItemID, entry.ItemVersion, entry.PublishedSeqNum)
	base = unsafeNamePattern.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if extension == "" {
		extension = "txt"
	}
	return base + "." + extension
}
