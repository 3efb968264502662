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

package transmitter

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"

	"github.com/presslane/newswire/model"
)

// sqsAPI is the slice of the SQS client the transmitter uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSFifoTransmitter pushes the payload onto a subscriber owned FIFO queue.
// Messages for one item share a group id, so corrections arrive after the
// versions they correct. Destination config keys: queue_url, region,
// access_key_id, secret_access_key, endpoint.
type SQSFifoTransmitter struct {
	// ClientFunc is swapped in tests.
	ClientFunc func(ctx context.Context, entry *model.QueueItem) (sqsAPI, error)
}

func (t *SQSFifoTransmitter) Transmit(ctx context.Context, entry *model.QueueItem, payload []byte) error {
	queueURL := entry.Destination.ConfigString("queue_url")
	if queueURL == "" {
		return Terminal(ErrCodeSQS, errors.New("amazon_sqs_fifo destination has no queue_url"))
	}

	newClient := t.ClientFunc
	if newClient == nil {
		newClient = defaultSQSClient
	}
	client, err := newClient(ctx, entry)
	if err != nil {
		return Terminal(ErrCodeSQS, err)
	}

	_, err = client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(queueURL),
		MessageBody:            aws.String(string(payload)),
		MessageGroupId:         aws.String(entry.ItemID),
		MessageDeduplicationId: aws.String(entry.QueueID),
	})
	if err != nil {
		return Retryable(ErrCodeSQS, err)
	}
	return nil
}

func defaultSQSClient(ctx context.Context, entry *model.QueueItem) (sqsAPI, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region := entry.Destination.ConfigString("region"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if key := entry.Destination.ConfigString("access_key_id"); key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, entry.Destination.ConfigString("secret_access_key"), "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint := entry.Destination.ConfigString("endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
