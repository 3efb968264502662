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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5051"

	// DEFAULT_MAX_SEQUENCE is the upper bound for per subscriber published
	// sequence numbers when a subscriber carries no explicit settings.
	DEFAULT_MAX_SEQUENCE = 9999
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"NEWSWIRE_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"NEWSWIRE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"NEWSWIRE_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"NEWSWIRE_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"NEWSWIRE_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"NEWSWIRE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"NEWSWIRE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"NEWSWIRE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"NEWSWIRE_REDIS_SKIP_TLS_VERIFY"`
}

// DeliveryConfig drives the retry scheduler and the transmitter dispatch.
type DeliveryConfig struct {
	// MaxRetryAttempts is the number of failed transmissions after which a
	// queue item becomes terminally failed.
	MaxRetryAttempts int `json:"max_retry_attempts" envconfig:"NEWSWIRE_DELIVERY_MAX_RETRY_ATTEMPTS"`
	// RetryDelaySeconds is the base delay before the first retry. Subsequent
	// delays grow exponentially up to RetryDelayCapSeconds unless
	// ExponentialBackoff is disabled.
	RetryDelaySeconds    int   `json:"retry_delay_seconds" envconfig:"NEWSWIRE_DELIVERY_RETRY_DELAY_SECONDS"`
	RetryDelayCapSeconds int   `json:"retry_delay_cap_seconds" envconfig:"NEWSWIRE_DELIVERY_RETRY_DELAY_CAP_SECONDS"`
	ExponentialBackoff   *bool `json:"exponential_backoff" envconfig:"NEWSWIRE_DELIVERY_EXPONENTIAL_BACKOFF"`
	// SchedulerIntervalSeconds is how often the scheduler scans the queue.
	SchedulerIntervalSeconds int `json:"scheduler_interval_seconds" envconfig:"NEWSWIRE_DELIVERY_SCHEDULER_INTERVAL_SECONDS"`
	// MaxTransmitQueryLimit bounds how many queue items one scheduler pass picks up.
	MaxTransmitQueryLimit int `json:"max_transmit_query_limit" envconfig:"NEWSWIRE_DELIVERY_MAX_TRANSMIT_QUERY_LIMIT"`
	// MaxWorkers is the number of subscribers transmitted in parallel per pass.
	MaxWorkers int `json:"max_workers" envconfig:"NEWSWIRE_DELIVERY_MAX_WORKERS"`
	// TransmitTimeoutSeconds bounds one transport call.
	TransmitTimeoutSeconds int `json:"transmit_timeout_seconds" envconfig:"NEWSWIRE_DELIVERY_TRANSMIT_TIMEOUT_SECONDS"`
	// StuckThresholdMinutes is how long an item may stay in-progress before
	// the watchdog resets it back to pending.
	StuckThresholdMinutes int `json:"stuck_threshold_minutes" envconfig:"NEWSWIRE_DELIVERY_STUCK_THRESHOLD_MINUTES"`
	// MaxPackageDepth caps package recursion during fan-out.
	MaxPackageDepth int `json:"max_package_depth" envconfig:"NEWSWIRE_DELIVERY_MAX_PACKAGE_DEPTH"`
	// InlinePayloadLimitBytes is the largest rendered payload stored inline on
	// a queue row; anything bigger goes to the blob store.
	InlinePayloadLimitBytes int `json:"inline_payload_limit_bytes" envconfig:"NEWSWIRE_DELIVERY_INLINE_PAYLOAD_LIMIT_BYTES"`
	// WarnOnUnqueued logs a warning instead of an error when a publish
	// resolves to zero subscribers.
	WarnOnUnqueued bool `json:"warn_on_unqueued" envconfig:"NEWSWIRE_DELIVERY_WARN_ON_UNQUEUED"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"NEWSWIRE_QUEUE_WEBHOOK"`
	TransmitQueue  string `json:"transmit_queue" envconfig:"NEWSWIRE_QUEUE_TRANSMIT"`
	MonitoringPort string `json:"monitoring_port" envconfig:"NEWSWIRE_QUEUE_MONITORING_PORT"`
}

type BlobStoreConfig struct {
	AwsAccessKeyId     string `json:"aws_access_key_id"`
	AwsSecretAccessKey string `json:"aws_secret_access_key"`
	S3Endpoint         string `json:"s3_endpoint"`
	S3BucketName       string `json:"s3_bucket_name"`
	S3Region           string `json:"s3_region"`
}

type ContentAPIConfig struct {
	Url     string            `json:"url" envconfig:"NEWSWIRE_CONTENT_API_URL"`
	Headers map[string]string `json:"headers"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"NEWSWIRE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"NEWSWIRE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"NEWSWIRE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"NEWSWIRE_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Delivery     DeliveryConfig   `json:"delivery"`
	Queue        QueueConfig      `json:"queue"`
	BlobStore    BlobStoreConfig  `json:"blob_store"`
	ContentAPI   ContentAPIConfig `json:"content_api"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("newswire", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called newswire.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Newswire Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.TransmitQueue == "" {
		cnf.Queue.TransmitQueue = "new:transmit"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5556"
	}

	cnf.Delivery.applyDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (d *DeliveryConfig) applyDefaults() {
	if d.MaxRetryAttempts <= 0 {
		d.MaxRetryAttempts = 4
	}
	if d.RetryDelaySeconds <= 0 {
		d.RetryDelaySeconds = 180
	}
	if d.RetryDelayCapSeconds <= 0 {
		d.RetryDelayCapSeconds = 3600
	}
	if d.ExponentialBackoff == nil {
		enabled := true
		d.ExponentialBackoff = &enabled
	}
	if d.SchedulerIntervalSeconds <= 0 {
		d.SchedulerIntervalSeconds = 10
	}
	if d.MaxTransmitQueryLimit <= 0 {
		d.MaxTransmitQueryLimit = 500
	}
	if d.MaxWorkers <= 0 {
		d.MaxWorkers = 10
	}
	if d.TransmitTimeoutSeconds <= 0 {
		d.TransmitTimeoutSeconds = 30
	}
	if d.StuckThresholdMinutes <= 0 {
		d.StuckThresholdMinutes = 15
	}
	if d.MaxPackageDepth <= 0 {
		d.MaxPackageDepth = 5
	}
	if d.InlinePayloadLimitBytes <= 0 {
		d.InlinePayloadLimitBytes = 256 * 1024
	}
}

// SchedulerInterval returns the scheduler poll interval as a duration.
func (d DeliveryConfig) SchedulerInterval() time.Duration {
	return time.Duration(d.SchedulerIntervalSeconds) * time.Second
}

// TransmitTimeout returns the per transport call timeout as a duration.
func (d DeliveryConfig) TransmitTimeout() time.Duration {
	return time.Duration(d.TransmitTimeoutSeconds) * time.Second
}

func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
