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
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/formatter"
	"github.com/presslane/newswire/internal/notification"
	"github.com/presslane/newswire/model"
	"github.com/presslane/newswire/transmitter"
)

// PublishResult summarizes one fan-out: how many queue entries were written
// and how many recipient destinations were skipped.
type PublishResult struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

// Publish fans an item out to its resolved subscribers and writes one queue
// entry per accepting destination. Kills and takedowns cancel every live
// transmission of the item before queueing the notice to prior recipients.
func (n *Newswire) Publish(ctx context.Context, item *model.Item, action string) (*PublishResult, error) {
	ctx, span := otel.Tracer("newswire.fanout").Start(ctx, "Fan Out Published Item")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if action == model.ActionKill || action == model.ActionTakedown {
		canceled, err := n.datasource.CancelTransmissions(ctx, item.ItemID)
		if err != nil {
			return nil, errors.Wrap(err, "canceling live transmissions")
		}
		if canceled > 0 {
			logrus.Infof("canceled %d queued transmissions of item %s before %s", canceled, item.ItemID, action)
		}
	}

	// A package with no references left cannot go out; kills still can, the
	// retained recipients get the notice regardless of content.
	if item.IsComposite() && len(item.ResidRefs()) == 0 &&
		action != model.ActionKill && action != model.ActionTakedown {
		return nil, errors.Errorf("package %s has no content", item.ItemID)
	}

	// Corrections and kills of a package also go to the stories dropped since
	// the previous version, so their recipients see them leave.
	var removedRefs []string
	if item.IsComposite() {
		switch action {
		case model.ActionCorrect, model.ActionKill, model.ActionTakedown:
			if _, removedRefs, err = n.PackageRefDiff(ctx, item); err != nil {
				return nil, err
			}
		}
	}

	recipients, err := n.ResolveSubscribers(ctx, item, action)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		msg := fmt.Sprintf("item %s (%s) resolved to no subscribers", item.ItemID, action)
		if conf.Delivery.WarnOnUnqueued {
			logrus.Warn(msg)
		} else {
			notification.NotifyError(errors.New(msg))
		}
		return &PublishResult{}, nil
	}

	result := &PublishResult{}
	for _, recipient := range recipients {
		queued, skipped, err := n.queueForRecipient(ctx, conf, item, action, recipient, removedRefs)
		if err != nil {
			return result, err
		}
		result.Queued += queued
		result.Skipped += skipped
	}

	if item.IsComposite() {
		if err := n.datasource.StorePackageRefs(ctx, item.ItemID, item.Version, item.ResidRefs()); err != nil {
			return result, errors.Wrap(err, "storing package refs")
		}
	}

	logrus.Infof("item %s (%s) queued to %d destinations, %d skipped", item.ItemID, action, result.Queued, result.Skipped)
	return result, nil
}

// Resend re-delivers an item to an explicit set of subscribers. Targeting
// rules still apply; content filters do not, the operator already picked the
// audience.
func (n *Newswire) Resend(ctx context.Context, item *model.Item, subscriberIDs []string) (*PublishResult, error) {
	ctx, span := otel.Tracer("newswire.fanout").Start(ctx, "Resend Published Item")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if len(subscriberIDs) == 0 {
		return nil, errors.New("resend needs at least one subscriber id")
	}

	subscribers, err := n.datasource.GetSubscribersByIDs(ctx, subscriberIDs)
	if err != nil {
		return nil, err
	}

	result := &PublishResult{}
	for _, sub := range subscribers {
		if !conformsContentType(item, &sub) || !conformsSubscriberTargets(item, &sub) {
			logrus.Warnf("subscriber %s cannot receive item %s (%s), skipping resend",
				sub.SubscriberID, item.ItemID, item.Type)
			result.Skipped += len(sub.Destinations)
			continue
		}
		recipient := Recipient{Subscriber: sub, Codes: sub.CodeList(), Retained: true}
		queued, skipped, err := n.queueForRecipient(ctx, conf, item, model.ActionResend, recipient, nil)
		if err != nil {
			return result, err
		}
		result.Queued += queued
		result.Skipped += skipped
	}

	logrus.Infof("item %s resent to %d destinations, %d skipped", item.ItemID, result.Queued, result.Skipped)
	return result, nil
}

// delivery is one queue entry to write for a recipient: the item to render
// and the ids its rendition references.
type delivery struct {
	item       *model.Item
	associated []string
}

// queueForRecipient renders and enqueues the item for every destination of
// one subscriber. Packages additionally queue their not-yet-published
// children and any stories removed since the previous version, ahead of the
// package entry itself. A failing destination skips, it never blocks the
// rest of the fan-out.
func (n *Newswire) queueForRecipient(ctx context.Context, conf *config.Configuration, item *model.Item, action string, recipient Recipient, removedRefs []string) (queued int, skipped int, err error) {
	sub := recipient.Subscriber

	var deliveries []delivery
	if item.IsComposite() {
		plan, err := n.FanOutPackage(ctx, item, recipient, conf.Delivery.MaxPackageDepth)
		if err != nil {
			return 0, 0, err
		}
		// An empty rendition only goes out on a correction, where it tells
		// the recipient everything they held was removed.
		if len(plan.ResidRefs) == 0 && action != model.ActionCorrect {
			logrus.Infof("package %s empty for subscriber %s after pruning, skipping",
				item.ItemID, sub.SubscriberID)
			return 0, len(sub.Destinations), nil
		}
		for _, child := range plan.Children {
			if child.IsComposite() || itemWentOut(child) {
				continue
			}
			deliveries = append(deliveries, delivery{item: child})
		}
		for _, ref := range removedRefs {
			child, err := n.items.GetItem(ctx, ref)
			if err != nil {
				notification.NotifyError(errors.Wrapf(err, "loading removed package ref %s", ref))
				continue
			}
			deliveries = append(deliveries, delivery{item: child})
		}
		deliveries = append(deliveries, delivery{item: plan.Package, associated: plan.ResidRefs})
	} else {
		var associated []string
		for _, assoc := range item.Associations {
			if assoc != nil && assoc.ItemID != "" {
				associated = append(associated, assoc.ItemID)
			}
		}
		deliveries = []delivery{{item: item, associated: associated}}
	}

	for _, destination := range sub.Destinations {
		for _, d := range deliveries {
			ok, err := n.enqueueDelivery(ctx, conf, d, action, recipient, destination)
			if err != nil {
				return queued, skipped, err
			}
			if ok {
				queued++
			} else {
				skipped++
			}
		}
	}
	return queued, skipped, nil
}

// enqueueDelivery writes one queue entry for one destination. Returns false
// without an error when the destination is skipped.
func (n *Newswire) enqueueDelivery(ctx context.Context, conf *config.Configuration, d delivery, action string, recipient Recipient, destination model.Destination) (bool, error) {
	sub := recipient.Subscriber
	item := d.item

	f, err := formatter.Get(destination.Format)
	if err != nil {
		notification.NotifyError(errors.Wrapf(err, "subscriber %s destination %s", sub.SubscriberID, destination.Name))
		return false, nil
	}
	if !f.CanFormat(item) {
		logrus.Warnf("formatter %s cannot render item %s (%s), skipping destination %s of subscriber %s",
			f.Name(), item.ItemID, item.Type, destination.Name, sub.SubscriberID)
		return false, nil
	}

	// Content API deliveries happen synchronously at enqueue time; check for
	// an earlier record first so a replayed publish does not push twice.
	if destination.DeliveryType == model.DeliveryTypeContentAPI && action != model.ActionResend {
		exists, err := n.datasource.QueueEntryExists(ctx, item.ItemID, item.Version, sub.SubscriberID, destination.Name)
		if err != nil {
			return false, err
		}
		if exists {
			logrus.Debugf("item %s v%d already queued for subscriber %s destination %s",
				item.ItemID, item.Version, sub.SubscriberID, destination.Name)
			return false, nil
		}
	}

	seqNum, err := n.nextSequence(ctx, &sub)
	if err != nil {
		return false, err
	}

	payload, err := f.Format(item, &sub, recipient.Codes)
	if err != nil {
		notification.NotifyError(errors.Wrapf(err, "formatting item %s for subscriber %s", item.ItemID, sub.SubscriberID))
		return false, nil
	}

	entry := &model.QueueItem{
		ItemID:           item.ItemID,
		ItemVersion:      item.Version,
		SubscriberID:     sub.SubscriberID,
		Destination:      destination,
		PublishedSeqNum:  seqNum,
		PublishingAction: action,
		Codes:            recipient.Codes,
		ContentType:      item.Type,
		Headline:         item.Headline,
		UniqueName:       item.UniqueName,
		AssociatedItems:  d.associated,
		PublishSchedule:  publishSchedule(item),
	}

	if len(payload) > conf.Delivery.InlinePayloadLimitBytes {
		key := fmt.Sprintf("%s-%d-%s-%s", item.ItemID, item.Version, sub.SubscriberID, destination.Name)
		if err := n.blobs.Put(ctx, key, payload); err != nil {
			return false, errors.Wrap(err, "offloading payload to blob store")
		}
		entry.EncodedItemID = key
	} else {
		entry.FormattedItem = string(payload)
	}

	// Content API destinations deliver synchronously, so their record is
	// written already in success and the scheduler never touches it.
	state := model.StatePending
	if destination.DeliveryType == model.DeliveryTypeContentAPI {
		if err := n.deliverDirect(ctx, conf, entry, payload); err != nil {
			notification.NotifyError(errors.Wrapf(err, "direct delivery of %s to subscriber %s", item.ItemID, sub.SubscriberID))
			return false, nil
		}
		entry.State = model.StateSuccess
		state = model.StateSuccess
	}

	inserted, err := n.datasource.EnqueueItem(ctx, entry)
	if err != nil {
		return false, err
	}
	if !inserted {
		logrus.Debugf("item %s v%d already queued for subscriber %s destination %s",
			item.ItemID, item.Version, sub.SubscriberID, destination.Name)
		return false, nil
	}

	notifyQueueState(entry, state)
	return true, nil
}

// itemWentOut reports whether a story already left on its own, in which case
// a package delivery does not repeat it.
func itemWentOut(item *model.Item) bool {
	switch item.State {
	case model.StatePublished, model.StateCorrected, model.StateKilled, model.StateRecalled:
		return true
	}
	return false
}

// deliverDirect transmits a payload inline during enqueue.
func (n *Newswire) deliverDirect(ctx context.Context, conf *config.Configuration, entry *model.QueueItem, payload []byte) error {
	t, err := transmitter.Get(entry.Destination.DeliveryType)
	if err != nil {
		return err
	}
	transmitCtx, cancel := context.WithTimeout(ctx, conf.Delivery.TransmitTimeout())
	defer cancel()
	return t.Transmit(transmitCtx, entry, payload)
}

// nextSequence allocates the subscriber's next published sequence number,
// wrapping inside the subscriber's configured bounds.
func (n *Newswire) nextSequence(ctx context.Context, sub *model.Subscriber) (int, error) {
	min := sub.SequenceNumSettings.Min
	max := sub.SequenceNumSettings.Max
	if min <= 0 {
		min = 1
	}
	if max <= 0 {
		max = config.DEFAULT_MAX_SEQUENCE
	}
	return n.datasource.NextSequenceNumber(ctx, sub.SubscriberID, min, max)
}

// publishSchedule picks the moment before which the entry must not transmit.
// An embargo outranks a publish schedule.
func publishSchedule(item *model.Item) *time.Time {
	if item.EmbargoedAt != nil {
		return item.EmbargoedAt
	}
	return item.ScheduledAt
}
