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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/presslane/newswire/config"
	redlock "github.com/presslane/newswire/internal/lock"
	"github.com/presslane/newswire/model"
)

// schedulerLockKey serializes scheduler passes across engine instances. One
// instance drains the queue per tick; the rest skip.
const schedulerLockKey = "newswire:delivery-scheduler"

// DeliveryScheduler periodically picks up due queue entries (fresh pending
// items whose publish schedule passed and retrying items whose backoff
// elapsed) and transmits them. Entries of one subscriber transmit in order;
// different subscribers transmit in parallel.
type DeliveryScheduler struct {
	engine *Newswire

	interval       time.Duration
	maxWorkers     int
	batchSize      int
	stuckThreshold time.Duration

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewDeliveryScheduler(engine *Newswire) (*DeliveryScheduler, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &DeliveryScheduler{
		engine:         engine,
		interval:       conf.Delivery.SchedulerInterval(),
		maxWorkers:     conf.Delivery.MaxWorkers,
		batchSize:      conf.Delivery.MaxTransmitQueryLimit,
		stuckThreshold: time.Duration(conf.Delivery.StuckThresholdMinutes) * time.Minute,
	}, nil
}

// Start launches the scheduler loop. Calling Start on a running scheduler is
// a no-op.
func (s *DeliveryScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx)
	logrus.Infof("delivery scheduler started, polling every %s", s.interval)
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (s *DeliveryScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	logrus.Info("delivery scheduler stopped")
}

func (s *DeliveryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *DeliveryScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.processDueDeliveries(ctx)
		}
	}
}

// processDueDeliveries runs one scheduler pass under the cluster lock.
func (s *DeliveryScheduler) processDueDeliveries(ctx context.Context) {
	locker := redlock.NewLocker(s.engine.redis, schedulerLockKey, uuid.New().String())
	if err := locker.Lock(ctx, s.interval*2); err != nil {
		logrus.Debugf("skipping scheduler pass: %v", err)
		return
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Warnf("failed to release scheduler lock: %v", err)
		}
	}()

	// Watchdog: a crashed worker leaves entries in-progress forever; reset
	// them so they get picked up again.
	reset, err := s.engine.datasource.ResetStaleInProgress(ctx, time.Now().Add(-s.stuckThreshold))
	if err != nil {
		logrus.Errorf("failed to reset stale in-progress deliveries: %v", err)
	} else if reset > 0 {
		logrus.Warnf("reset %d stale in-progress deliveries back to pending", reset)
	}

	due, err := s.engine.datasource.GetDueQueueItems(ctx, time.Now(), s.batchSize)
	if err != nil {
		logrus.Errorf("failed to load due deliveries: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	logrus.Infof("scheduler pass picked up %d due deliveries", len(due))

	// Group by subscriber and serialize within each group so a subscriber
	// receives items in queue order.
	groups := groupBySubscriber(due)

	sem := make(chan struct{}, s.maxWorkers)
	var wg sync.WaitGroup
	for subscriberID, entries := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(subscriberID string, entries []model.QueueItem) {
			defer wg.Done()
			defer func() { <-sem }()
			s.transmitSequentially(ctx, subscriberID, entries)
		}(subscriberID, entries)
	}
	wg.Wait()
}

func (s *DeliveryScheduler) transmitSequentially(ctx context.Context, subscriberID string, entries []model.QueueItem) {
	for i := range entries {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}
		if err := s.engine.TransmitQueueItem(ctx, &entries[i]); err != nil {
			logrus.Errorf("transmit of queue entry %s for subscriber %s failed: %v",
				entries[i].QueueID, subscriberID, err)
		}
	}
}

func groupBySubscriber(entries []model.QueueItem) map[string][]model.QueueItem {
	groups := make(map[string][]model.QueueItem)
	for _, entry := range entries {
		groups[entry.SubscriberID] = append(groups[entry.SubscriberID], entry)
	}
	return groups
}
