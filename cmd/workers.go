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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/presslane/newswire"
	"github.com/presslane/newswire/config"
	redis_db "github.com/presslane/newswire/internal/redis-db"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// processTransmission delivers one queue entry pushed onto the transmit queue.
// Entries requeued through the API land here instead of waiting for the next
// scheduler pass.
func (n *newswireInstance) processTransmission(ctx context.Context, t *asynq.Task) error {
	var queueID string
	if err := json.Unmarshal(t.Payload(), &queueID); err != nil {
		logrus.Error(err)
		return err
	}

	entry, err := n.newswire.Datasource().GetQueueItemByID(ctx, queueID)
	if err != nil {
		return err
	}
	if entry == nil {
		logrus.Warnf("queue entry %s no longer exists, dropping task", queueID)
		return nil
	}

	if err := n.newswire.TransmitQueueItem(ctx, entry); err != nil {
		return err
	}

	log.Println(" [*] Transmission Processed", queueID)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.WebhookQueue] = 3
	queues[cfg.Queue.TransmitQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(n *newswireInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.WebhookQueue, newswire.ProcessWebhook)
	mux.HandleFunc(cfg.Queue.TransmitQueue, n.processTransmission)
}

// workerCommands defines the "workers" command. It runs the delivery
// scheduler alongside the asynq worker server and the asynqmon monitoring UI.
func workerCommands(n *newswireInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start newswire workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			// Scheduler scans the delivery queue for due entries.
			scheduler, err := newswire.NewDeliveryScheduler(n.newswire)
			if err != nil {
				log.Fatal(err)
			}
			scheduler.Start(ctx)
			defer scheduler.Stop()

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(n, mux)

			// asynqmon serves queue health and monitoring.
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
