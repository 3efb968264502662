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
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/presslane/newswire/model"
)

// Recipient is one subscriber resolved for a delivery, together with the
// routing codes accumulated from the subscriber and its accepting products.
type Recipient struct {
	Subscriber model.Subscriber
	Codes      []string
	// Retained marks subscribers kept because they received an earlier
	// version, not because they match the current one. They bypass filtering
	// so corrections and kills always reach them.
	Retained bool
}

// ResolveSubscribers decides who receives an item for a publishing action.
//
// Publishes go to active subscribers that pass targeting, global filters and
// product matching. Corrections additionally retain everyone who received an
// earlier version. Kills and takedowns go only to prior recipients and skip
// filtering entirely. A story rewriting another carries the original's
// audience over.
func (n *Newswire) ResolveSubscribers(ctx context.Context, item *model.Item, action string) ([]Recipient, error) {
	if err := n.filters.Refresh(ctx); err != nil {
		return nil, err
	}

	switch action {
	case model.ActionKill, model.ActionTakedown:
		return n.priorRecipients(ctx, item.ItemID)
	}

	subscribers, err := n.datasource.GetActiveSubscribers(ctx)
	if err != nil {
		return nil, err
	}

	recipients := map[string]Recipient{}
	for _, sub := range subscribers {
		recipient, ok, err := n.evaluateSubscriber(ctx, item, sub)
		if err != nil {
			return nil, err
		}
		if ok {
			recipients[sub.SubscriberID] = recipient
		}
	}

	// Corrections and resends retain prior recipients even when the current
	// version no longer matches their filters.
	if action == model.ActionCorrect || action == model.ActionResend {
		if err := n.retainPrior(ctx, item.ItemID, recipients); err != nil {
			return nil, err
		}
	}

	// A rewrite follows the original story's audience.
	if item.RewriteOf != "" {
		if err := n.retainPrior(ctx, item.RewriteOf, recipients); err != nil {
			return nil, err
		}
	}

	return sortedRecipients(recipients), nil
}

// priorRecipients loads everyone who ever received the item, without any
// filtering. Inactive subscribers are included: they hold a copy too.
func (n *Newswire) priorRecipients(ctx context.Context, itemID string) ([]Recipient, error) {
	ids, err := n.datasource.GetPriorDeliverySubscriberIDs(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	subscribers, err := n.datasource.GetSubscribersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	recipients := map[string]Recipient{}
	for _, sub := range subscribers {
		recipients[sub.SubscriberID] = Recipient{
			Subscriber: sub,
			Codes:      sub.CodeList(),
			Retained:   true,
		}
	}
	return sortedRecipients(recipients), nil
}

func (n *Newswire) retainPrior(ctx context.Context, itemID string, recipients map[string]Recipient) error {
	ids, err := n.datasource.GetPriorDeliverySubscriberIDs(ctx, itemID)
	if err != nil {
		return err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := recipients[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	subscribers, err := n.datasource.GetSubscribersByIDs(ctx, missing)
	if err != nil {
		return err
	}
	for _, sub := range subscribers {
		recipients[sub.SubscriberID] = Recipient{
			Subscriber: sub,
			Codes:      sub.CodeList(),
			Retained:   true,
		}
	}
	return nil
}

// evaluateSubscriber runs the full acceptance chain for one subscriber.
func (n *Newswire) evaluateSubscriber(ctx context.Context, item *model.Item, sub model.Subscriber) (Recipient, bool, error) {
	// Items directed at named subscribers go to those and nobody else,
	// bypassing filters: the desk made the routing decision already.
	if len(item.TargetSubscribers) > 0 {
		for _, target := range item.TargetSubscribers {
			if target.ID == sub.SubscriberID {
				return Recipient{Subscriber: sub, Codes: sub.CodeList()}, true, nil
			}
		}
		return Recipient{}, false, nil
	}

	if !conformsContentType(item, &sub) {
		return Recipient{}, false, nil
	}
	if !conformsSubscriberTargets(item, &sub) {
		return Recipient{}, false, nil
	}
	if n.blockedByGlobalFilter(item, &sub) {
		return Recipient{}, false, nil
	}

	codes, accepted, err := n.matchProducts(ctx, item, &sub)
	if err != nil {
		return Recipient{}, false, err
	}
	if !accepted {
		return Recipient{}, false, nil
	}

	codes = mergeCodes(codes, sub.CodeList())
	return Recipient{Subscriber: sub, Codes: codes}, true, nil
}

// conformsContentType enforces subscriber classes: wire subscribers receive
// individual textual stories only.
func conformsContentType(item *model.Item, sub *model.Subscriber) bool {
	if item.IsComposite() {
		return sub.CanReceivePackages()
	}
	if !item.IsTextual() {
		return sub.SubscriberType != model.SubscriberTypeWire
	}
	return true
}

// conformsSubscriberTargets applies the item's target_types list against the
// subscriber class. An empty list targets everyone.
func conformsSubscriberTargets(item *model.Item, sub *model.Subscriber) bool {
	if len(item.TargetTypes) == 0 {
		return true
	}
	for _, target := range item.TargetTypes {
		if target.Qcode == sub.SubscriberType {
			return target.Allow
		}
	}
	// Not named: allowed only when the list holds deny rules.
	for _, target := range item.TargetTypes {
		if target.Allow {
			return false
		}
	}
	return true
}

// blockedByGlobalFilter applies every global blocking filter the subscriber
// has not opted out of.
func (n *Newswire) blockedByGlobalFilter(item *model.Item, sub *model.Subscriber) bool {
	for _, filter := range n.filters.GlobalFilters() {
		if !sub.GlobalFilterEnabled(filter.FilterID) {
			continue
		}
		if n.filters.Match(filter.FilterID, item) {
			logrus.Debugf("subscriber %s blocked by global filter %s for item %s",
				sub.SubscriberID, filter.FilterID, item.ItemID)
			return true
		}
	}
	return false
}

// matchProducts finds the subscriber products accepting the item and returns
// the union of their codes.
func (n *Newswire) matchProducts(ctx context.Context, item *model.Item, sub *model.Subscriber) ([]string, bool, error) {
	if len(sub.Products) == 0 {
		return nil, false, nil
	}
	products, err := n.datasource.GetProductsByIDs(ctx, sub.Products)
	if err != nil {
		return nil, false, err
	}

	var codes []string
	accepted := false
	for i := range products {
		product := &products[i]
		if !conformsProductTargets(item, product) {
			continue
		}
		if !n.filters.conformsContentFilter(product.ContentFilter, item) {
			continue
		}
		accepted = true
		codes = mergeCodes(codes, product.CodeList())
	}
	return codes, accepted, nil
}

// conformsProductTargets applies the item's regional targeting to a product's
// geo restriction. A product without a restriction only conforms when the
// item carries no allow rules.
func conformsProductTargets(item *model.Item, product *model.Product) bool {
	if len(item.TargetRegions) == 0 {
		return true
	}
	if product.GeoRestrictions == "" {
		for _, region := range item.TargetRegions {
			if region.Allow {
				return false
			}
		}
		return true
	}
	for _, region := range item.TargetRegions {
		if region.Allow && region.Qcode == product.GeoRestrictions {
			return true
		}
		if !region.Allow && region.Qcode != product.GeoRestrictions {
			return true
		}
	}
	return false
}

func mergeCodes(existing []string, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c] = true
	}
	for _, c := range extra {
		if !seen[c] {
			seen[c] = true
			existing = append(existing, c)
		}
	}
	return existing
}

func sortedRecipients(recipients map[string]Recipient) []Recipient {
	out := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Subscriber.SubscriberID < out[j].Subscriber.SubscriberID
	})
	return out
}
