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

import (
	"strings"
	"time"
)

// Subscriber classes. Wire subscribers receive individual text stories only;
// digital subscribers receive packages and media; "all" receives both.
const (
	SubscriberTypeWire    = "wire"
	SubscriberTypeDigital = "digital"
	SubscriberTypeAll     = "all"
)

// Delivery types a destination can use. One transmitter is registered per
// type at startup.
const (
	DeliveryTypeFTP        = "ftp"
	DeliveryTypeEmail      = "email"
	DeliveryTypeHTTPPush   = "http_push"
	DeliveryTypeSQSFifo    = "amazon_sqs_fifo"
	DeliveryTypeFile       = "file"
	DeliveryTypeContentAPI = "content_api"
)

// Destination is one transport + format configuration of a subscriber.
// Config is free form; transmitters read the keys they understand (host,
// resource_url, queue_url, file_path, packaged, ...).
type Destination struct {
	Name         string                 `json:"name"`
	Format       string                 `json:"format"`
	DeliveryType string                 `json:"delivery_type"`
	Config       map[string]interface{} `json:"config"`
}

// ConfigString reads a string key from the destination config.
func (d Destination) ConfigString(key string) string {
	if d.Config == nil {
		return ""
	}
	if v, ok := d.Config[key].(string); ok {
		return v
	}
	return ""
}

// ConfigBool reads a boolean key from the destination config.
func (d Destination) ConfigBool(key string) bool {
	if d.Config == nil {
		return false
	}
	if v, ok := d.Config[key].(bool); ok {
		return v
	}
	return false
}

// SequenceNumSettings bounds a subscriber's published sequence numbers; the
// counter wraps back to Min after reaching Max.
type SequenceNumSettings struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// LastClosed records why a subscriber was last deactivated.
type LastClosed struct {
	ClosedAt time.Time `json:"closed_at"`
	Message  string    `json:"message"`
}

// Subscriber is a delivery target with its products, destinations and
// delivery policy.
type Subscriber struct {
	SubscriberID        string              `json:"subscriber_id"`
	Name                string              `json:"name"`
	SubscriberType      string              `json:"subscriber_type"`
	IsActive            bool                `json:"is_active"`
	Email               string              `json:"email,omitempty"`
	SequenceNumSettings SequenceNumSettings `json:"sequence_num_settings"`

	// CriticalErrors maps transport error codes to true when an occurrence
	// must deactivate the subscriber.
	CriticalErrors map[string]bool `json:"critical_errors,omitempty"`

	// GlobalFilters maps a global filter id to false when the subscriber has
	// opted out of it. Missing keys mean the filter applies.
	GlobalFilters map[string]bool `json:"global_filters,omitempty"`

	Products     []string      `json:"products,omitempty"`
	Destinations []Destination `json:"destinations,omitempty"`

	// Codes are subscriber level routing codes, comma separated, merged with
	// the codes of every accepting product.
	Codes string `json:"codes,omitempty"`

	LastClosed *LastClosed `json:"last_closed,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// CanReceivePackages reports whether the subscriber class accepts composite
// deliveries.
func (s *Subscriber) CanReceivePackages() bool {
	return s.SubscriberType == SubscriberTypeDigital || s.SubscriberType == SubscriberTypeAll
}

// CodeList splits the subscriber's comma separated codes.
func (s *Subscriber) CodeList() []string {
	return SplitCodes(s.Codes)
}

// GlobalFilterEnabled reports whether the named global filter still applies
// to this subscriber.
func (s *Subscriber) GlobalFilterEnabled(filterID string) bool {
	if s.GlobalFilters == nil {
		return true
	}
	enabled, ok := s.GlobalFilters[filterID]
	if !ok {
		return true
	}
	return enabled
}

// ContentFilterRef points a product at a content filter and records how a
// match is interpreted.
type ContentFilterRef struct {
	FilterID   string `json:"filter_id"`
	FilterType string `json:"filter_type"` // permitting or blocking
}

// Product is a named content bundle subscribers sign up for.
type Product struct {
	ProductID       string            `json:"product_id"`
	Name            string            `json:"name"`
	Codes           string            `json:"codes,omitempty"`
	GeoRestrictions string            `json:"geo_restrictions,omitempty"`
	ContentFilter   *ContentFilterRef `json:"content_filter,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CodeList splits the product's comma separated codes.
func (p *Product) CodeList() []string {
	return SplitCodes(p.Codes)
}

// SplitCodes splits a comma separated code string, trimming blanks.
func SplitCodes(codes string) []string {
	if codes == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(codes, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
