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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/presslane/newswire/model"
)

// CreateSubscriber is the request body for registering a subscriber.
type CreateSubscriber struct {
	Name                string                    `json:"name"`
	SubscriberType      string                    `json:"subscriber_type"`
	Email               string                    `json:"email"`
	SequenceNumSettings model.SequenceNumSettings `json:"sequence_num_settings"`
	CriticalErrors      map[string]bool           `json:"critical_errors"`
	GlobalFilters       map[string]bool           `json:"global_filters"`
	Products            []string                  `json:"products"`
	Destinations        []model.Destination       `json:"destinations"`
	Codes               string                    `json:"codes"`
	IsActive            *bool                     `json:"is_active"`
}

func (s *CreateSubscriber) ValidateCreateSubscriber() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.SubscriberType, validation.In(
			model.SubscriberTypeWire, model.SubscriberTypeDigital, model.SubscriberTypeAll, "")),
		validation.Field(&s.Destinations, validation.Required, validation.By(destinationsValidation(s))),
	)
}

func destinationsValidation(s *CreateSubscriber) validation.RuleFunc {
	return func(value interface{}) error {
		for _, d := range s.Destinations {
			if d.Name == "" {
				return errors.New("every destination needs a name")
			}
			if d.Format == "" {
				return errors.New("every destination needs a format")
			}
			switch d.DeliveryType {
			case model.DeliveryTypeFTP, model.DeliveryTypeEmail, model.DeliveryTypeHTTPPush,
				model.DeliveryTypeSQSFifo, model.DeliveryTypeFile, model.DeliveryTypeContentAPI:
			default:
				return errors.New("unknown delivery type: " + d.DeliveryType)
			}
		}
		return nil
	}
}

func (s *CreateSubscriber) ToSubscriber() model.Subscriber {
	active := true
	if s.IsActive != nil {
		active = *s.IsActive
	}
	return model.Subscriber{
		Name:                s.Name,
		SubscriberType:      s.SubscriberType,
		IsActive:            active,
		Email:               s.Email,
		SequenceNumSettings: s.SequenceNumSettings,
		CriticalErrors:      s.CriticalErrors,
		GlobalFilters:       s.GlobalFilters,
		Products:            s.Products,
		Destinations:        s.Destinations,
		Codes:               s.Codes,
	}
}

// CreateProduct is the request body for creating a product.
type CreateProduct struct {
	Name            string                  `json:"name"`
	Codes           string                  `json:"codes"`
	GeoRestrictions string                  `json:"geo_restrictions"`
	ContentFilter   *model.ContentFilterRef `json:"content_filter"`
}

func (p *CreateProduct) ValidateCreateProduct() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.ContentFilter, validation.By(contentFilterRefValidation(p.ContentFilter))),
	)
}

func contentFilterRefValidation(ref *model.ContentFilterRef) validation.RuleFunc {
	return func(value interface{}) error {
		if ref == nil {
			return nil
		}
		if ref.FilterID == "" {
			return errors.New("content_filter.filter_id is required")
		}
		if ref.FilterType != model.FilterTypePermitting && ref.FilterType != model.FilterTypeBlocking {
			return errors.New("content_filter.filter_type must be permitting or blocking")
		}
		return nil
	}
}

func (p *CreateProduct) ToProduct() model.Product {
	return model.Product{
		Name:            p.Name,
		Codes:           p.Codes,
		GeoRestrictions: p.GeoRestrictions,
		ContentFilter:   p.ContentFilter,
	}
}

// CreateContentFilter is the request body for creating a content filter.
type CreateContentFilter struct {
	Name       string                  `json:"name"`
	IsGlobal   bool                    `json:"is_global"`
	Statements []model.FilterStatement `json:"content_filter"`
}

func (f *CreateContentFilter) ValidateCreateContentFilter() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.Statements, validation.Required, validation.By(statementsValidation(f))),
	)
}

func statementsValidation(f *CreateContentFilter) validation.RuleFunc {
	return func(value interface{}) error {
		for _, s := range f.Statements {
			if len(s.ConditionIDs) == 0 && len(s.FilterIDs) == 0 {
				return errors.New("every statement needs at least one condition or nested filter")
			}
		}
		return nil
	}
}

func (f *CreateContentFilter) ToContentFilter() model.ContentFilter {
	return model.ContentFilter{
		Name:       f.Name,
		IsGlobal:   f.IsGlobal,
		Statements: f.Statements,
	}
}

// CreateFilterCondition is the request body for creating a filter condition.
type CreateFilterCondition struct {
	Name     string `json:"name"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

func (c *CreateFilterCondition) ValidateCreateFilterCondition() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Field, validation.Required),
		validation.Field(&c.Operator, validation.Required, validation.In(
			model.OperatorIn, model.OperatorNotIn, model.OperatorEq, model.OperatorNe,
			model.OperatorGt, model.OperatorGte, model.OperatorLt, model.OperatorLte,
			model.OperatorLike, model.OperatorNotLike, model.OperatorStartsWith,
			model.OperatorEndsWith, model.OperatorMatch)),
		validation.Field(&c.Value, validation.Required),
	)
}

func (c *CreateFilterCondition) ToFilterCondition() model.FilterCondition {
	return model.FilterCondition{
		Name:     c.Name,
		Field:    c.Field,
		Operator: c.Operator,
		Value:    c.Value,
	}
}

// PublishRequest carries an item through the fan-out entry point.
type PublishRequest struct {
	Action string      `json:"action"`
	Item   *model.Item `json:"item"`
}

func (p *PublishRequest) ValidatePublishRequest() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Action, validation.Required, validation.In(
			model.ActionPublish, model.ActionCorrect, model.ActionKill,
			model.ActionTakedown, model.ActionResend)),
		validation.Field(&p.Item, validation.Required, validation.By(itemValidation(p.Item))),
	)
}

func itemValidation(item *model.Item) validation.RuleFunc {
	return func(value interface{}) error {
		if item == nil {
			return nil
		}
		if item.ItemID == "" {
			return errors.New("item.item_id is required")
		}
		if item.Version <= 0 {
			return errors.New("item.version must be positive")
		}
		if item.Type == "" {
			return errors.New("item.type is required")
		}
		return nil
	}
}

// ResendRequest re-delivers an item to a named set of subscribers.
type ResendRequest struct {
	Item          *model.Item `json:"item"`
	SubscriberIDs []string    `json:"subscriber_ids"`
}

func (r *ResendRequest) ValidateResendRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Item, validation.Required, validation.By(itemValidation(r.Item))),
		validation.Field(&r.SubscriberIDs, validation.Required),
	)
}

// TestFilterRequest evaluates a filter definition against an item without
// persisting either.
type TestFilterRequest struct {
	Filter CreateContentFilter `json:"filter"`
	Item   *model.Item         `json:"item"`
}

func (r *TestFilterRequest) ValidateTestFilterRequest() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Item, validation.Required),
	)
}
